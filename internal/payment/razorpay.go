package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/m3rciful/goroute/core/logger"
	"github.com/m3rciful/goroute/core/netutil"
	"github.com/m3rciful/goroute/internal/domain"
)

// DefaultBaseURL is the Razorpay REST API root.
const DefaultBaseURL = "https://api.razorpay.com"

// Config configures the Razorpay client.
type Config struct {
	BaseURL       string        `yaml:"base_url" envconfig:"BASE_URL"`
	KeyID         string        `yaml:"key_id" envconfig:"KEY_ID"`
	KeySecret     string        `yaml:"key_secret" envconfig:"KEY_SECRET"`
	WebhookSecret string        `yaml:"webhook_secret" envconfig:"WEBHOOK_SECRET"`
	LinkBase      string        `yaml:"link_base" envconfig:"LINK_BASE"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	RetryAttempts int           `yaml:"retry_attempts" envconfig:"RETRY_ATTEMPTS"`
}

// Enabled reports whether API keys are present.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.KeyID) != "" && strings.TrimSpace(c.KeySecret) != ""
}

// Razorpay creates orders through POST /v1/orders.
type Razorpay struct {
	baseURL   string
	keyID     string
	keySecret string
	linkBase  string
	http      *http.Client
}

// NewRazorpay builds a client. A nil httpClient uses netutil.NewClient.
func NewRazorpay(cfg Config, httpClient *http.Client) *Razorpay {
	if httpClient == nil {
		httpClient = netutil.NewClient(netutil.ClientOptions{
			ClientTimeout: cfg.Timeout,
			RetryAttempts: cfg.RetryAttempts,
		})
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Razorpay{
		baseURL:   base,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		linkBase:  cfg.LinkBase,
		http:      httpClient,
	}
}

type orderBody struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (order Order, err error) {
	start := time.Now()
	defer func() {
		logger.Info(ctx, logger.CompPayment, "order.create",
			slog.String("status", logger.Status(err)),
			slog.String("order_id", order.ID),
			slog.Int64("amount", req.Amount),
			slog.Duration("duration", logger.Took(start)),
			logger.Err(err),
		)
	}()

	if req.Amount <= 0 {
		return Order{}, domain.InvalidInput("order amount must be positive")
	}
	if req.Currency == "" {
		req.Currency = domain.DefaultCurrency
	}
	body, err := json.Marshal(orderBody{Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Notes: req.Notes})
	if err != nil {
		return Order{}, fmt.Errorf("encode order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return Order{}, domain.External(err, "payment gateway request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(r.keyID, r.keySecret)

	resp, err := r.http.Do(httpReq)
	if err != nil {
		return Order{}, domain.External(err, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Order{}, domain.External(err, "read payment gateway response")
	}
	if resp.StatusCode/100 != 2 {
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		return Order{}, domain.External(
			fmt.Errorf("status %d: %s %s", resp.StatusCode, e.Error.Code, e.Error.Description),
			"payment gateway rejected the order")
	}

	var out orderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Order{}, domain.External(err, "decode payment gateway response")
	}
	if out.ID == "" {
		return Order{}, domain.External(fmt.Errorf("empty order id"), "payment gateway returned no order")
	}
	return Order{
		ID:         out.ID,
		Amount:     out.Amount,
		Currency:   out.Currency,
		Receipt:    out.Receipt,
		Status:     out.Status,
		PaymentURL: paymentURL(r.linkBase, out.ID),
	}, nil
}
