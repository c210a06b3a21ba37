package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/goroute/internal/payment"
	"github.com/m3rciful/goroute/internal/reservation"
	"github.com/m3rciful/goroute/internal/tracking"
)

const secret = "whsec"

type fakeReconciler struct {
	mu        sync.Mutex
	confirmed map[string]int
	failed    []string
	err       error
}

func (f *fakeReconciler) OnPaymentConfirmed(_ context.Context, orderID string) (reservation.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.confirmed == nil {
		f.confirmed = make(map[string]int)
	}
	f.confirmed[orderID]++
	if f.confirmed[orderID] > 1 {
		return reservation.OutcomeNoop, nil
	}
	return reservation.OutcomeConfirmed, nil
}

func (f *fakeReconciler) OnPaymentFailed(_ context.Context, orderID string) (reservation.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, orderID)
	return reservation.OutcomeCancelled, nil
}

type fakeTicker struct{ calls int }

func (f *fakeTicker) RunOnce(context.Context, time.Time) (tracking.TickReport, reservation.ExpireReport) {
	f.calls++
	return tracking.TickReport{Buses: 2, Released: 1}, reservation.ExpireReport{Sessions: 3}
}

func newServer(rec Reconciler, tk Ticker) http.Handler {
	return New(Config{TickToken: "tok"}, Deps{Payments: rec, Ticker: tk, WebhookSecret: secret}).Handler()
}

func deliver(t *testing.T, h http.Handler, body, sig string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	req.Header.Set(payment.SignatureHeader, sig)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func status(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out["status"]
}

const paidBody = `{"event":"order.paid","payload":{"order":{"entity":{"id":"order_1"}}}}`

func TestWebhookRejectsBadSignature(t *testing.T) {
	rec := &fakeReconciler{}
	rr := deliver(t, newServer(rec, nil), paidBody, payment.Sign("other", []byte(paidBody)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rr.Code)
	}
	if len(rec.confirmed) != 0 {
		t.Fatalf("reconciler called on forged delivery")
	}
}

func TestWebhookOversizedBody(t *testing.T) {
	rec := &fakeReconciler{}
	h := New(Config{MaxBodyBytes: 32}, Deps{Payments: rec, WebhookSecret: secret}).Handler()
	rr := deliver(t, h, paidBody, payment.Sign(secret, []byte(paidBody)))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("code = %d, want 413", rr.Code)
	}
	if len(rec.confirmed) != 0 {
		t.Fatalf("reconciler called on truncated delivery")
	}
}

func TestWebhookRedeliveryIsNoop(t *testing.T) {
	rec := &fakeReconciler{}
	h := newServer(rec, nil)
	sig := payment.Sign(secret, []byte(paidBody))

	first := deliver(t, h, paidBody, sig)
	if first.Code != http.StatusOK || status(t, first) != string(reservation.OutcomeConfirmed) {
		t.Fatalf("first delivery = %d %s", first.Code, first.Body.String())
	}
	second := deliver(t, h, paidBody, sig)
	if second.Code != http.StatusOK || status(t, second) != string(reservation.OutcomeNoop) {
		t.Fatalf("second delivery = %d %s", second.Code, second.Body.String())
	}
	if first.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("request id header missing")
	}
}

func TestWebhookPaymentFailedReadsPaymentEntity(t *testing.T) {
	rec := &fakeReconciler{}
	body := `{"event":"payment.failed","payload":{"payment":{"entity":{"order_id":"order_9"}}}}`
	rr := deliver(t, newServer(rec, nil), body, payment.Sign(secret, []byte(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("code = %d", rr.Code)
	}
	if len(rec.failed) != 1 || rec.failed[0] != "order_9" {
		t.Fatalf("failed = %v", rec.failed)
	}
}

func TestWebhookUnknownEventAcknowledged(t *testing.T) {
	rec := &fakeReconciler{}
	body := `{"event":"refund.created","payload":{}}`
	rr := deliver(t, newServer(rec, nil), body, payment.Sign(secret, []byte(body)))
	if rr.Code != http.StatusOK || status(t, rr) != "ignored" {
		t.Fatalf("unknown event = %d %s", rr.Code, rr.Body.String())
	}
}

func TestWebhookMalformedPayload(t *testing.T) {
	body := `{"event":"order.paid","payload":{}}`
	rr := deliver(t, newServer(&fakeReconciler{}, nil), body, payment.Sign(secret, []byte(body)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rr.Code)
	}
}

func TestWebhookInternalFailureAsksForRetry(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("db down")}
	rr := deliver(t, newServer(rec, nil), paidBody, payment.Sign(secret, []byte(paidBody)))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", rr.Code)
	}
}

func TestTickRequiresToken(t *testing.T) {
	tk := &fakeTicker{}
	h := newServer(&fakeReconciler{}, tk)

	req := httptest.NewRequest(http.MethodPost, "/internal/tick", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized || tk.calls != 0 {
		t.Fatalf("unauthenticated tick = %d, calls %d", rr.Code, tk.calls)
	}

	req = httptest.NewRequest(http.MethodPost, "/internal/tick", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || tk.calls != 1 {
		t.Fatalf("tick = %d, calls %d", rr.Code, tk.calls)
	}
	var got tickResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Buses != 2 || got.Released != 1 || got.ExpiredSessions != 3 {
		t.Fatalf("report = %+v", got)
	}
}

func TestTickDisabledWithoutToken(t *testing.T) {
	h := New(Config{}, Deps{Payments: &fakeReconciler{}, Ticker: &fakeTicker{}}).Handler()
	req := httptest.NewRequest(http.MethodPost, "/internal/tick", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	newServer(&fakeReconciler{}, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || status(t, rr) != "ok" {
		t.Fatalf("health = %d %s", rr.Code, rr.Body.String())
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Unix(0, 0)
	rl.now = func() time.Time { return now }
	a, b := rl.getLimiter("10.0.0.1"), rl.getLimiter("10.0.0.2")
	if a == b {
		t.Fatalf("clients share a limiter")
	}
	if !a.Allow() || !a.Allow() {
		t.Fatalf("burst not honoured")
	}
	if a.Allow() {
		t.Fatalf("third request allowed")
	}
	if !b.Allow() {
		t.Fatalf("second client throttled")
	}
	now = now.Add(visitorTTL + 2*time.Minute)
	if rl.getLimiter("10.0.0.1") == a {
		t.Fatalf("stale visitor not swept")
	}
}

func TestWebhookThrottled(t *testing.T) {
	h := New(Config{RatePerSecond: 0.001, Burst: 1}, Deps{Payments: &fakeReconciler{}, WebhookSecret: secret}).Handler()
	sig := payment.Sign(secret, []byte(paidBody))
	if rr := deliver(t, h, paidBody, sig); rr.Code != http.StatusOK {
		t.Fatalf("first = %d", rr.Code)
	}
	if rr := deliver(t, h, paidBody, sig); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d, want 429", rr.Code)
	}
}
