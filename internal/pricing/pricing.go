// Package pricing computes the price breakdown shown at checkout and frozen on
// orders. Amounts are whole currency units.
package pricing

import "github.com/shopspring/decimal"

const (
	FreeShippingThreshold int64 = 10000
	FlatShippingFee       int64 = 40
)

var (
	insuranceRate = decimal.RequireFromString("0.02")
	taxRate       = decimal.RequireFromString("0.18")
)

type Line struct {
	ProductID     string
	OriginalPrice int64
	FinalPrice    int64
	Quantity      int
}

type Coupon struct {
	Code     string
	Discount int64
}

type Breakdown struct {
	OriginalSubtotal int64  `json:"originalSubtotal"`
	ItemDiscount     int64  `json:"itemDiscount"`
	Subtotal         int64  `json:"subtotal"`
	TotalInsurance   int64  `json:"totalInsurance"`
	ShippingCost     int64  `json:"shippingCost"`
	Tax              int64  `json:"tax"`
	CouponCode       string `json:"couponCode,omitempty"`
	CouponDiscount   int64  `json:"couponDiscount"`
	GrandTotal       int64  `json:"grandTotal"`
	TotalSavings     int64  `json:"totalSavings"`
}

// Compute is pure: the same lines, insured set and coupon always give the
// same breakdown. insured is keyed by product id.
func Compute(lines []Line, insured map[string]bool, coupon *Coupon) Breakdown {
	var b Breakdown
	var finalSubtotal int64
	for _, l := range lines {
		qty := int64(l.Quantity)
		b.OriginalSubtotal += l.OriginalPrice * qty
		finalSubtotal += l.FinalPrice * qty
		if insured[l.ProductID] {
			b.TotalInsurance += InsuranceCost(l.FinalPrice, l.Quantity)
		}
	}
	b.ItemDiscount = b.OriginalSubtotal - finalSubtotal
	b.Subtotal = b.OriginalSubtotal - b.ItemDiscount

	if b.Subtotal < FreeShippingThreshold {
		b.ShippingCost = FlatShippingFee
	}
	b.Tax = round(decimal.NewFromInt(b.Subtotal).Mul(taxRate))

	total := b.Subtotal + b.TotalInsurance + b.ShippingCost + b.Tax
	if coupon != nil && coupon.Discount > 0 {
		b.CouponCode = coupon.Code
		b.CouponDiscount = min(coupon.Discount, total)
	}
	b.GrandTotal = total - b.CouponDiscount
	b.TotalSavings = b.ItemDiscount + b.CouponDiscount
	return b
}

// InsuranceCost is 2% of the line's final value, rounded per line.
func InsuranceCost(finalPrice int64, quantity int) int64 {
	return round(decimal.NewFromInt(finalPrice).Mul(decimal.NewFromInt(int64(quantity))).Mul(insuranceRate))
}

func round(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
