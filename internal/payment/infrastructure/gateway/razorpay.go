// Package gateway talks to a Razorpay-compatible payment provider.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmehra2102/furniture-store/internal/payment/application"
)

const name = "razorpay"

// Client creates provider orders and checks checkout signatures. Amounts are
// whole currency units here and minor units (x100) on the wire.
type Client struct {
	log       *slog.Logger
	http      *http.Client
	baseURL   string
	keyID     string
	keySecret string
}

func NewClient(log *slog.Logger, baseURL, keyID, keySecret string, timeout time.Duration) *Client {
	return &Client{
		log:       log,
		http:      &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
	}
}

func (c *Client) Name() string { return name }

type createOrderReq struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResp struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (application.GatewayOrder, error) {
	body, err := json.Marshal(createOrderReq{Amount: amount * 100, Currency: currency, Receipt: receipt})
	if err != nil {
		return application.GatewayOrder{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return application.GatewayOrder{}, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return application.GatewayOrder{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return application.GatewayOrder{}, err
	}
	if resp.StatusCode/100 != 2 {
		return application.GatewayOrder{}, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out createOrderResp
	if err := json.Unmarshal(raw, &out); err != nil {
		return application.GatewayOrder{}, fmt.Errorf("decode gateway order: %w", err)
	}
	if out.ID == "" {
		return application.GatewayOrder{}, fmt.Errorf("gateway order without id")
	}
	c.log.Debug("gateway order created", "gateway_order_id", out.ID, "receipt", receipt)
	return application.GatewayOrder{ID: out.ID, Amount: out.Amount / 100, Currency: out.Currency}, nil
}

func (c *Client) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	want := Sign(c.keySecret, gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(signature)))
}

// Sign returns hex(HMAC-SHA256(secret, orderID|paymentID)), the checkout signature.
func Sign(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
