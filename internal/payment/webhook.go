package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/m3rciful/goroute/internal/domain"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Razorpay-Signature"

// Webhook event names acted upon.
const (
	EventOrderPaid     = "order.paid"
	EventPaymentFailed = "payment.failed"
)

// VerifySignature checks signature against the HMAC-SHA256 of body keyed
// by secret. An empty secret disables verification.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return nil
	}
	sig, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(sig) == 0 {
		return domain.InvalidInput("malformed webhook signature")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return domain.InvalidInput("webhook signature mismatch")
	}
	return nil
}

// Sign returns the signature VerifySignature expects.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Event is the part of a webhook delivery the reservation layer needs.
type Event struct {
	Type    string
	OrderID string
}

// Actionable reports whether the event settles an order.
func (e Event) Actionable() bool {
	return e.Type == EventOrderPaid || e.Type == EventPaymentFailed
}

type envelope struct {
	Event   string `json:"event"`
	Payload struct {
		Order *struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"order"`
		Payment *struct {
			Entity struct {
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseEvent decodes a webhook body. The order id is read from the order
// entity and falls back to the payment entity.
func ParseEvent(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Event{}, domain.InvalidInput("malformed webhook payload")
	}
	if env.Event == "" {
		return Event{}, domain.InvalidInput("webhook event name missing")
	}
	ev := Event{Type: env.Event}
	if o := env.Payload.Order; o != nil {
		ev.OrderID = o.Entity.ID
	}
	if ev.OrderID == "" && env.Payload.Payment != nil {
		ev.OrderID = env.Payload.Payment.Entity.OrderID
	}
	if ev.Actionable() && ev.OrderID == "" {
		return Event{}, domain.InvalidInput("webhook %s carries no order id", ev.Type)
	}
	return ev, nil
}
