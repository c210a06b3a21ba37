package helpers

import (
	"testing"

	"github.com/m3rciful/goroute/core/logger"

	tele "gopkg.in/telebot.v4"
)

func TestBeginOncePerUpdate(t *testing.T) {
	c := tele.NewContext(nil, tele.Update{
		ID:      12,
		Message: &tele.Message{Sender: &tele.User{ID: 7}, Chat: &tele.Chat{ID: 7}, Text: "hi"},
	})
	ctx, fresh := Begin(c)
	if !fresh {
		t.Fatal("first Begin must be fresh")
	}
	if _, again := Begin(c); again {
		t.Fatal("second Begin must reuse the context")
	}
	if logger.RIDFrom(ctx) != logger.BuildRID(12, 7, 7) {
		t.Fatalf("rid = %q", logger.RIDFrom(ctx))
	}

	noteReply(c, false)
	noteReply(c, true)
	if n, kb := ReplyStats(c); n != 2 || !kb {
		t.Fatalf("stats = %d %v", n, kb)
	}
}

func TestReplyStatsWithoutBegin(t *testing.T) {
	c := tele.NewContext(nil, tele.Update{ID: 1})
	noteReply(c, true)
	if n, kb := ReplyStats(c); n != 0 || kb {
		t.Fatalf("stats = %d %v", n, kb)
	}
}
