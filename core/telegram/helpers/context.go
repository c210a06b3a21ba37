package helpers

import (
	"context"
	"sync/atomic"

	"github.com/m3rciful/goroute/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	ctxKey     = "logger_ctx"
	ridKey     = "rid"
	repliesKey = "replies"
)

// replyStats counts replies queued while one update is handled.
type replyStats struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

// Begin prepares c for a new update: it derives the request id and the
// logging context once. It reports false if c was already prepared.
func Begin(c tele.Context) (context.Context, bool) {
	if ctx, ok := c.Get(ctxKey).(context.Context); ok {
		return ctx, false
	}
	upd := c.Update()
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	rid := logger.BuildRID(upd.ID, chatID, userID)
	ctx := logger.WithRID(logger.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.TG)
	c.Set(ridKey, rid)
	c.Set(ctxKey, ctx)
	c.Set(repliesKey, &replyStats{})
	return ctx, true
}

// BuildContext returns the logging context of the update behind c.
func BuildContext(c tele.Context) context.Context {
	ctx, _ := Begin(c)
	return ctx
}

// WithHandler tags the update context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(ctxKey, ctx)
	return ctx
}

func noteReply(c tele.Context, markup bool) {
	s, ok := c.Get(repliesKey).(*replyStats)
	if !ok {
		return
	}
	s.messages.Add(1)
	if markup {
		s.keyboard.Store(true)
	}
}

// ReplyStats reports how many replies were queued for the update and
// whether any carried a keyboard.
func ReplyStats(c tele.Context) (int, bool) {
	s, ok := c.Get(repliesKey).(*replyStats)
	if !ok {
		return 0, false
	}
	return int(s.messages.Load()), s.keyboard.Load()
}
