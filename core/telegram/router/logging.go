package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/goroute/core/logger"
	tghelpers "github.com/m3rciful/goroute/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Codes of errors caused by the user rather than the bot. The reply already
// explains them, so they are logged as rejections instead of failures.
var rejectionCodes = map[string]bool{
	"NOT_FOUND":         true,
	"INVALID_INPUT":     true,
	"PERMISSION_DENIED": true,
	"CONFLICT":          true,
	"SAFETY_VIOLATION":  true,
}

// handled runs fn under name and emits one handler.handled event.
func handled(c tele.Context, name string, start time.Time, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, name)
	err := fn()
	summarize(c, name, start, err, "", extras...)
	return err
}

// skipped records an update nothing was registered for.
func skipped(c tele.Context, name string, start time.Time) {
	summarize(c, name, start, nil, "skip")
}

func summarize(c tele.Context, name string, start time.Time, err error, outcome string, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, name)
	msgs, kb := tghelpers.ReplyStats(c)
	level, attrs := summaryAttrs(name, err, outcome, msgs, kb, logger.Took(start), extras)
	logger.LogEvent(ctx, logger.TG, level, "handler.handled", attrs...)
}

func summaryAttrs(name string, err error, outcome string, replies int, kb bool, took time.Duration, extras []slog.Attr) (slog.Level, []slog.Attr) {
	level := slog.LevelInfo
	code := deriveErrorCode(err)
	if outcome == "" {
		outcome, level = classify(code)
	}

	status := logger.Status(err)
	if outcome == "rejected" {
		status = "ok"
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", name),
		slog.String("outcome", outcome),
		slog.Int("replies", replies),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", took.Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", code),
		)
	}
	return level, append(attrs, extras...)
}

// classify maps an error code to the outcome and level of the summary event.
func classify(code string) (string, slog.Level) {
	switch {
	case code == "":
		return "ok", slog.LevelInfo
	case rejectionCodes[code]:
		return "rejected", slog.LevelInfo
	default:
		return "fail", slog.LevelWarn
	}
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

// deriveErrorCode prefers a Code() anywhere in the chain and falls back to
// the concrete type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var c interface{ Code() string }
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_").Replace(code))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
