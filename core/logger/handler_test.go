package logger

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestHandler(buf *bytes.Buffer, format logFormat) (*structuredHandler, *asyncWriter) {
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	return newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	}), aw
}

func drain(t *testing.T, aw *asyncWriter, buf *bytes.Buffer) string {
	t.Helper()
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	h, aw := newTestHandler(buf, formatKV)
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	LogEvent(ctx, slog.New(h).With("component", CompSeats), slog.LevelInfo, "seat.locked",
		slog.String("status", "ok"),
		slog.String("bus_id", "BUS1A2B3C4D"),
	)
	line := drain(t, aw, buf)

	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=svc.seats", "event=seat.locked", "status=ok", "rid=rid-123"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
	if !strings.Contains(line, "bus_id=BUS1A2B3C4D") {
		t.Fatalf("bus_id missing: %s", line)
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	h, aw := newTestHandler(buf, formatJSON)
	ctx := WithRID(Background(), "rid-json")

	LogEvent(ctx, slog.New(h).With("component", CompReservation), slog.LevelError, "order.commit",
		slog.String("status", "fail"),
		slog.String("order_id", "order_1"),
		slog.String("err", "boom"),
	)
	line := drain(t, aw, buf)

	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"svc.reservation"`, `"event":"order.commit"`, `"status":"fail"`, `"rid":"rid-json"`, `"order_id":"order_1"`, `"err":"boom"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	rawRID := "123:456:789"

	buf := &bytes.Buffer{}
	h, aw := newTestHandler(buf, formatKV)
	LogEvent(WithRID(Background(), rawRID), slog.New(h), slog.LevelInfo, "rid.test")
	line := drain(t, aw, buf)
	if !strings.Contains(line, "rid="+CompactRID(rawRID)) {
		t.Fatalf("expected compact rid, got %s", line)
	}
	if strings.Contains(line, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", line)
	}

	buf.Reset()
	h, aw = newTestHandler(buf, formatJSON)
	LogEvent(WithRID(Background(), rawRID), slog.New(h), slog.LevelInfo, "rid.test")
	line = drain(t, aw, buf)
	if !strings.Contains(line, `"rid_full":"`+rawRID+`"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", line)
	}
	if !strings.Contains(line, `"ts_unix_nano"`) {
		t.Fatalf("expected ts_unix_nano in JSON output, got %s", line)
	}
}

func TestStructuredHandlerDurationsAndEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	h, aw := newTestHandler(buf, formatKV)
	LogEvent(Background(), slog.New(h), slog.LevelInfo, "tick",
		slog.Duration("duration", 1500*time.Millisecond),
		slog.Duration("elapsed", 2*time.Second),
		slog.String("location", ""),
		Err(nil),
	)
	line := drain(t, aw, buf)
	if !strings.Contains(line, "duration_ms=1500") || !strings.Contains(line, "elapsed_ms=2000") {
		t.Fatalf("durations not normalized: %s", line)
	}
	if strings.Contains(line, "location=") || strings.Contains(line, "err=") {
		t.Fatalf("empty attributes should be pruned: %s", line)
	}
	if !strings.Contains(line, "component=app") {
		t.Fatalf("component should default to app: %s", line)
	}
}

func TestStructuredHandlerLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	h, aw := newTestHandler(buf, formatKV)
	LogEvent(Background(), slog.New(h), slog.LevelDebug, "hidden")
	if line := drain(t, aw, buf); line != "" {
		t.Fatalf("debug record should be filtered, got %s", line)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var allowed int
	for i := 0; i < 9; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("allowed = %d, want 3", allowed)
	}
	if num, den := parseRatioSpec("50"); num != 1 || den != 50 {
		t.Fatalf("parseRatioSpec(50) = %d/%d", num, den)
	}
}

func TestCompactRIDPassThrough(t *testing.T) {
	if got := CompactRID("not-a-rid"); got != "not-a-rid" {
		t.Fatalf("CompactRID = %q", got)
	}
	if got := CompactRID(BuildRID(36, 36, 35)); got != "10.10.z" {
		t.Fatalf("CompactRID = %q", got)
	}
}

func TestErrAttrOnlyOnFailure(t *testing.T) {
	// Before InitLogger events go through slog.Default, which does not prune.
	buf := &bytes.Buffer{}
	log := slog.New(slog.NewTextHandler(buf, nil))
	LogEvent(Background(), log, slog.LevelInfo, "tick", slog.String("status", "ok"), Err(nil))
	LogEvent(Background(), log, slog.LevelInfo, "tick", slog.String("status", "fail"), Err(errors.New("gps down")))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if strings.Contains(lines[0], "err=") {
		t.Fatalf("nil error logged: %s", lines[0])
	}
	if !strings.Contains(lines[1], `err="gps down"`) {
		t.Fatalf("error missing: %s", lines[1])
	}
}
