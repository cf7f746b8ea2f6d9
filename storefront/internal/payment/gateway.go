package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnavailable means the hosted checkout could not be reached or is not configured.
	ErrUnavailable       = errors.New("payment gateway unavailable")
	ErrSignatureMismatch = errors.New("payment signature mismatch")
	ErrMissingPaymentID  = errors.New("payment response has no payment id")
)

// Request is what the hosted checkout widget is opened with.
type Request struct {
	Amount      decimal.Decimal
	AmountMinor int64
	Currency    string
	DisplayName string
	Description string
	// Receipt ties the gateway order to one checkout attempt.
	Receipt string
	Prefill domain.Contact
}

// Handle identifies an opened gateway order. KeyID is the public key the
// widget needs; it is safe to hand to the browser.
type Handle struct {
	GatewayOrderID string `json:"orderId"`
	KeyID          string `json:"key"`
}

// Response is the payload the widget hands back on completion.
type Response struct {
	PaymentID      string `json:"razorpay_payment_id"`
	GatewayOrderID string `json:"razorpay_order_id"`
	Signature      string `json:"razorpay_signature"`
}

type Gateway interface {
	Open(ctx context.Context, req Request) (Handle, error)
	// Verify checks that resp really completed the order behind h.
	Verify(h Handle, resp Response) error
}

// MinorUnits converts a decimal amount to paise/cents, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Sign computes the completion signature for orderID and paymentID.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(secret string, h Handle, resp Response) error {
	if resp.PaymentID == "" {
		return ErrMissingPaymentID
	}
	if resp.GatewayOrderID != h.GatewayOrderID {
		return ErrSignatureMismatch
	}
	want := Sign(secret, h.GatewayOrderID, resp.PaymentID)
	if !hmac.Equal([]byte(want), []byte(resp.Signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

// Disabled is the gateway used when no payment provider is configured.
type Disabled struct{}

func (Disabled) Open(context.Context, Request) (Handle, error) {
	return Handle{}, ErrUnavailable
}

func (Disabled) Verify(Handle, Response) error {
	return ErrUnavailable
}
