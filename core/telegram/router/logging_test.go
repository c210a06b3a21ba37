package router

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"
)

type codedErr struct{ code string }

func (e codedErr) Error() string { return "coded" }
func (e codedErr) Code() string  { return e.code }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{codedErr{code: "safety_violation"}, "SAFETY_VIOLATION"},
		{codedErr{code: "payment failed"}, "PAYMENT_FAILED"},
		{fmt.Errorf("lock: %w", codedErr{code: "conflict"}), "CONFLICT"},
		{&plainErr{}, "PLAINERR"},
	}
	for _, tc := range cases {
		if got := deriveErrorCode(tc.err); got != tc.want {
			t.Fatalf("deriveErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
	if got := deriveErrorCode(errors.New("x")); got != "ERRORSTRING" {
		t.Fatalf("errors.New code = %q", got)
	}
}

func TestNormalizeHandlerName(t *testing.T) {
	if got := normalizeHandlerName("/Tick"); got != "tick" {
		t.Fatalf("got %q", got)
	}
	if got := normalizeHandlerName("  "); got != "unknown" {
		t.Fatalf("got %q", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err     error
		outcome string
		level   slog.Level
	}{
		{nil, "ok", slog.LevelInfo},
		{codedErr{code: "conflict"}, "rejected", slog.LevelInfo},
		{fmt.Errorf("lock seat: %w", codedErr{code: "safety_violation"}), "rejected", slog.LevelInfo},
		{codedErr{code: "external_failure"}, "fail", slog.LevelWarn},
		{errors.New("db closed"), "fail", slog.LevelWarn},
	}
	for _, tc := range cases {
		outcome, level := classify(deriveErrorCode(tc.err))
		if outcome != tc.outcome || level != tc.level {
			t.Fatalf("classify(%v) = %s/%v, want %s/%v", tc.err, outcome, level, tc.outcome, tc.level)
		}
	}
}

func TestSummaryAttrsKeepsExtras(t *testing.T) {
	extras := []slog.Attr{slog.String("cb_key", "seat"), slog.String("reason", "not_found")}
	level, attrs := summaryAttrs("callback.seat", codedErr{code: "conflict"}, "", 1, true, 12*time.Millisecond, extras)
	if level != slog.LevelInfo {
		t.Fatalf("level = %v", level)
	}
	got := map[string]string{}
	for _, a := range attrs {
		got[a.Key] = a.Value.String()
	}
	want := map[string]string{
		"status":      "ok",
		"outcome":     "rejected",
		"err_code":    "CONFLICT",
		"cb_key":      "seat",
		"reason":      "not_found",
		"duration_ms": "12",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s = %q, want %q (attrs %v)", k, got[k], v, attrs)
		}
	}
}
