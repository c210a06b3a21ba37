package middleware

import (
	"log/slog"

	"github.com/m3rciful/goroute/core/logger"
	"github.com/m3rciful/goroute/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/goroute/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// LoggerMiddleware prepares the update context and writes one sampled
// update.received line. Applying it again on a route is a no-op.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, fresh := tghelpers.Begin(c)
		if !fresh || !logger.ShouldSampleDebug() {
			return next(c)
		}

		attrs := []slog.Attr{slog.Int("update_id", c.Update().ID)}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
		}
		if user := c.Sender(); user != nil {
			if user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			if user.LanguageCode != "" {
				attrs = append(attrs, slog.String("lang", user.LanguageCode))
			}
		}
		if cb := c.Callback(); cb != nil {
			key, payload := callbacks.ParseCallbackData(cb)
			attrs = append(attrs,
				slog.String("cb_key", logger.SanitizeLimit(key, 128)),
				slog.String("payload", logger.SanitizeLimit(payload, 256)),
			)
		} else if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
		logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", attrs...)
		return next(c)
	}
}
