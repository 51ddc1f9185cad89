package pricing

import (
	"context"
	"strings"

	"github.com/dmehra2102/furniture-store/pkg/apperr"
)

type CouponResolver interface {
	Resolve(ctx context.Context, code string) (*Coupon, error)
}

// StaticCoupons resolves flat-amount coupons from configuration.
type StaticCoupons map[string]int64

func (s StaticCoupons) Resolve(_ context.Context, code string) (*Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}
	amount, ok := s[code]
	if !ok {
		return nil, apperr.Newf(apperr.InvalidInput, "unknown coupon %q", code)
	}
	return &Coupon{Code: code, Discount: amount}, nil
}
