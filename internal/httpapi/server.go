// Package httpapi serves the HTTP side of the service: the payment gateway
// webhook, a health probe and a manual scheduler tick.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/m3rciful/goroute/core/logger"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/payment"
	"github.com/m3rciful/goroute/internal/reservation"
	"github.com/m3rciful/goroute/internal/tracking"
)

const (
	DefaultAddr         = ":8080"
	DefaultMaxBodyBytes = 1 << 20
	RequestIDHeader     = "X-Request-Id"
)

type Config struct {
	Addr          string        `yaml:"addr" envconfig:"ADDR"`
	TickToken     string        `yaml:"tick_token" envconfig:"TICK_TOKEN"`
	RatePerSecond float64       `yaml:"rate_per_second" envconfig:"RATE_PER_SECOND"`
	Burst         int           `yaml:"burst" envconfig:"BURST"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
}

// Reconciler settles orders reported by the gateway.
type Reconciler interface {
	OnPaymentConfirmed(ctx context.Context, orderID string) (reservation.Outcome, error)
	OnPaymentFailed(ctx context.Context, orderID string) (reservation.Outcome, error)
}

// Ticker runs one scheduler pass on demand.
type Ticker interface {
	RunOnce(ctx context.Context, now time.Time) (tracking.TickReport, reservation.ExpireReport)
}

type Deps struct {
	Payments      Reconciler
	Ticker        Ticker
	WebhookSecret string
}

type Server struct {
	cfg      Config
	payments Reconciler
	ticker   Ticker
	secret   string
	limiter  *RateLimiter
	router   *httprouter.Router
	now      func() time.Time
}

func New(cfg Config, d Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	s := &Server{
		cfg:      cfg,
		payments: d.Payments,
		ticker:   d.Ticker,
		secret:   d.WebhookSecret,
		limiter:  NewRateLimiter(cfg.RatePerSecond, cfg.Burst),
		router:   httprouter.New(),
		now:      time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.health)
	s.router.POST("/webhooks/payment", s.limiter.Limit(s.webhook))
	if s.cfg.TickToken != "" && s.ticker != nil {
		s.router.POST("/internal/tick", s.limiter.Limit(s.tick))
	}
}

// Handler returns the router wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return requestLog(s.router)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, logger.CompHTTP, "listen", slog.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// webhook verifies and applies one gateway delivery before acknowledging it.
// Internal failures answer 500 so the gateway redelivers.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn(ctx, logger.CompPayment, "webhook.read",
				slog.String("reason", "too_large"),
				slog.Int64("limit", tooLarge.Limit),
			)
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		logger.Warn(ctx, logger.CompPayment, "webhook.read", logger.Err(err))
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}
	if err := payment.VerifySignature(s.secret, body, r.Header.Get(payment.SignatureHeader)); err != nil {
		logger.Warn(ctx, logger.CompPayment, "webhook.signature",
			slog.String("remote", clientIP(r)),
			logger.Err(err),
		)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}
	ev, err := payment.ParseEvent(body)
	if err != nil {
		logger.Warn(ctx, logger.CompPayment, "webhook.parse", logger.Err(err))
		http.Error(w, domain.UserMessage(err, "malformed payload"), http.StatusBadRequest)
		return
	}
	if !ev.Actionable() {
		logger.Debug(ctx, logger.CompPayment, "webhook.ignored", slog.String("event", ev.Type))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	var outcome reservation.Outcome
	if ev.Type == payment.EventOrderPaid {
		outcome, err = s.payments.OnPaymentConfirmed(ctx, ev.OrderID)
	} else {
		outcome, err = s.payments.OnPaymentFailed(ctx, ev.OrderID)
	}
	if err != nil {
		logger.Error(ctx, logger.CompPayment, "webhook.apply",
			slog.String("event", ev.Type),
			slog.String("order_id", ev.OrderID),
			logger.Err(err),
		)
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}

type tickResponse struct {
	Skipped         bool `json:"skipped"`
	Buses           int  `json:"buses"`
	Released        int  `json:"released"`
	Stopped         int  `json:"stopped"`
	Updated         int  `json:"updated"`
	ExpiredSessions int  `json:"expired_sessions"`
	ExpiredLocks    int  `json:"expired_locks"`
}

func (s *Server) tick(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	rep, swept := s.ticker.RunOnce(r.Context(), s.now())
	writeJSON(w, http.StatusOK, tickResponse{
		Skipped:         rep.Skipped,
		Buses:           rep.Buses,
		Released:        rep.Released,
		Stopped:         rep.Stopped,
		Updated:         rep.Updated,
		ExpiredSessions: swept.Sessions,
		ExpiredLocks:    swept.Locks,
	})
}

func (s *Server) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.cfg.TickToken)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLog tags every request with a correlation id and logs one line per request.
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rid := r.Header.Get(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx := logger.WithRID(r.Context(), rid)
		ctx = logger.WithLogger(ctx, logger.Component(logger.CompHTTP))
		w.Header().Set(RequestIDHeader, rid)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		logger.Info(ctx, logger.CompHTTP, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("code", rec.status),
			slog.Duration("duration", logger.Took(start)),
		)
	})
}
