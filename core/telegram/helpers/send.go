package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/goroute/core/logger"
	"github.com/m3rciful/goroute/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by the helpers. With
// none set, sends run inline.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// enqueue hands run to the dispatcher lane of chatID. A saturated or
// closed queue degrades to an inline send.
func enqueue(ctx context.Context, chatID int64, action string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}
	err := disp.Enqueue(ctx, chatID, action, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, logger.CompSender, "queue.fallback",
			slog.String("action", action),
			slog.Int64("chat_id", chatID),
			logger.Err(err),
		)
		return run()
	}
	return err
}

func recipientOf(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

// SendText sends plain text to the current chat.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	noteReply(c, sendOpts != nil && sendOpts.ReplyMarkup != nil)
	return enqueue(BuildContext(c), recipientOf(c), "send.text", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// SendMD sends Markdown text with an optional keyboard.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return SendText(c, text, opts)
}

// MessageSender is the part of *tele.Bot used by Notify.
type MessageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notify sends Markdown text to chatID outside of an update: tickets,
// manager alerts and tracking notices.
func Notify(ctx context.Context, bot MessageSender, chatID int64, text string) error {
	if bot == nil {
		return errors.New("helpers: nil bot")
	}
	ctx = logger.WithUserID(ctx, chatID)
	return enqueue(ctx, chatID, "notify", func() error {
		_, err := bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
		return err
	})
}
