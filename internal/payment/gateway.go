// Package payment talks to the payment gateway: order creation, webhook
// signature verification and webhook event parsing.
package payment

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// OrderRequest is an order to be created at the gateway. Amount is in minor units.
type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Order is the gateway's view of a created order.
type Order struct {
	ID         string
	Amount     int64
	Currency   string
	Receipt    string
	Status     string
	PaymentURL string
}

// Gateway creates payment orders.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
}

// Offline issues local order ids without calling any gateway. It backs
// development setups where no API keys are configured; payments are then
// confirmed manually or through the webhook endpoint.
type Offline struct {
	LinkBase string
}

func (o Offline) CreateOrder(_ context.Context, req OrderRequest) (Order, error) {
	id := "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	return Order{
		ID:         id,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Receipt:    req.Receipt,
		Status:     "created",
		PaymentURL: paymentURL(o.LinkBase, id),
	}, nil
}

// DefaultLinkBase prefixes order ids to build the link sent to the payer.
const DefaultLinkBase = "https://rzp.io/i/"

func paymentURL(base, orderID string) string {
	if base == "" {
		base = DefaultLinkBase
	}
	return base + orderID
}

// Receipt builds the receipt reference of a booking's order.
func Receipt(userID int64, bookingID string) string {
	return "rcpt_" + strconv.FormatInt(userID, 10) + "_" + bookingID
}
