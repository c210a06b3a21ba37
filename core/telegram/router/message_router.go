package router

import (
	"strings"
	"time"

	tg "github.com/m3rciful/goroute/core/telegram"
	"github.com/m3rciful/goroute/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation receives every free-text message that is not a registered slash command.
type Conversation interface {
	HandleText(c tele.Context, text string) error
}

// TextOptions controls fallback behaviour for non-text updates.
type TextOptions struct {
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds handlers for text and document updates.
// Slash commands found in reg win; everything else goes to conv.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := strings.TrimSpace(c.Text())

		if reg != nil && strings.HasPrefix(text, "/") {
			name, _, _ := strings.Cut(text, " ")
			if key, cmd, ok := reg.LookupCommand(name); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handled(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
		}

		if conv != nil {
			return handled(c, "dialog", start, func() error {
				return conv.HandleText(c, text)
			})
		}

		skipped(c, "unknown_text", start)
		return nil
	}

	docHandler := func(c tele.Context) error {
		start := time.Now()
		if opts.UnknownDocument != nil {
			return handled(c, "unexpected_document", start, func() error {
				return opts.UnknownDocument(c)
			})
		}
		skipped(c, "unexpected_document", start)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
	}
}
