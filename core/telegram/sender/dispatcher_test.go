package sender

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestDispatcherKeepsRecipientOrder(t *testing.T) {
	d := NewDispatcher(Options{Lanes: 3, LaneDepth: 100})
	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := 0; i < 50; i++ {
		for _, to := range []int64{7, -8, 42} {
			to, i := to, i
			err := d.Enqueue(context.Background(), to, "notify", func() error {
				mu.Lock()
				got[to] = append(got[to], i)
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}
	}
	d.Close()
	for to, seq := range got {
		if len(seq) != 50 {
			t.Fatalf("chat %d got %d jobs", to, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("chat %d out of order at %d: %v", to, i, seq)
			}
		}
	}
}

func TestDispatcherHonoursFloodWait(t *testing.T) {
	d := NewDispatcher(Options{Lanes: 1, MaxRetries: 2})
	var waited []time.Duration
	d.sleep = func(_ context.Context, wait time.Duration) error {
		waited = append(waited, wait)
		return nil
	}
	calls := 0
	done := make(chan struct{})
	err := d.Enqueue(context.Background(), 1, "notify", func() error {
		calls++
		if calls == 1 {
			return tele.FloodError{RetryAfter: 3}
		}
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	<-done
	d.Close()
	if calls != 2 || len(waited) != 1 || waited[0] != 3*time.Second {
		t.Fatalf("calls = %d, waited = %v", calls, waited)
	}
	if d.Failures() != 0 {
		t.Fatalf("failures = %d", d.Failures())
	}
}

func TestDispatcherGivesUpOnPermanentError(t *testing.T) {
	d := NewDispatcher(Options{Lanes: 1, MaxRetries: 3})
	calls := 0
	_ = d.Enqueue(context.Background(), 1, "notify", func() error {
		calls++
		return &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}
	})
	d.Close()
	if calls != 1 || d.Failures() != 1 {
		t.Fatalf("calls = %d, failures = %d", calls, d.Failures())
	}
}

func TestDispatcherClosed(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()
	if err := d.Enqueue(context.Background(), 1, "x", func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestClassifyAndRedact(t *testing.T) {
	if got := classify(&tele.Error{Code: 502}); got != "http_5xx" {
		t.Fatalf("classify 502 = %q", got)
	}
	if got := classify(context.DeadlineExceeded); got != "timeout" {
		t.Fatalf("classify deadline = %q", got)
	}
	msg := redact(errors.New(`Post "https://api.telegram.org/bot123:ABC-def/sendMessage": EOF`))
	if msg != `Post "https://api.telegram.org/bot<redacted>/sendMessage": EOF` {
		t.Fatalf("redact = %q", msg)
	}
}
