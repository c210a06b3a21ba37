// Package sender delivers outbound Telegram calls off the update path.
// Calls for one recipient run in order on a single lane so a ticket never
// overtakes the confirmation that precedes it.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/goroute/core/logger"
	"github.com/m3rciful/goroute/core/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	ErrQueueFull   = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the dispatcher. Zero values take defaults.
type Options struct {
	// Lanes is the number of parallel senders. A recipient always maps to
	// the same lane.
	Lanes        int
	LaneDepth    int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds retries of one job, flood waits included.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.Lanes <= 0 {
		o.Lanes = 4
	}
	if o.LaneDepth <= 0 {
		o.LaneDepth = 64
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 30 * time.Second
	}
	return o
}

type job struct {
	ctx    context.Context
	to     int64
	action string
	run    func() error
}

type Dispatcher struct {
	opts   Options
	lanes  []chan job
	closed atomic.Bool
	mu     sync.RWMutex
	wg     sync.WaitGroup
	errs   atomic.Uint64
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, sleep: sleepCtx}
	d.lanes = make([]chan job, opts.Lanes)
	for i := range d.lanes {
		d.lanes[i] = make(chan job, opts.LaneDepth)
		d.wg.Add(1)
		go d.drain(d.lanes[i])
	}
	return d
}

// Enqueue queues run for recipient to. run may be called several times.
func (d *Dispatcher) Enqueue(ctx context.Context, to int64, action string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case d.lanes[d.laneOf(to)] <- job{ctx: ctx, to: to, action: action, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) laneOf(to int64) int {
	n := int64(len(d.lanes))
	return int(((to % n) + n) % n)
}

// Failures is the number of jobs given up on.
func (d *Dispatcher) Failures() uint64 { return d.errs.Load() }

// Close drains queued jobs and stops the lanes.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed.Swap(true) {
		d.mu.Unlock()
		return
	}
	for _, l := range d.lanes {
		close(l)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) drain(lane <-chan job) {
	defer d.wg.Done()
	for j := range lane {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)
	deadline, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			logger.Debug(ctx, logger.CompSender, "send.ok", d.attrs(j, attempt, start)...)
			return
		}
		wait, retry := d.retryAfter(err, attempt)
		if !retry || attempt == attempts {
			break
		}
		logger.Debug(ctx, logger.CompSender, "send.retry",
			append(d.attrs(j, attempt, start), slog.Duration("delay", wait))...)
		if serr := d.sleep(deadline, wait); serr != nil {
			err = errors.Join(err, serr)
			break
		}
	}
	d.errs.Add(1)
	logger.Error(ctx, logger.CompSender, "send.fail",
		append(d.attrs(j, attempts, start),
			slog.String("error", redact(err)),
			slog.String("error_kind", classify(err)),
		)...)
}

// retryAfter honours Telegram flood waits and backs off linearly on
// transient network failures. Anything else is final.
func (d *Dispatcher) retryAfter(err error, attempt int) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	if netutil.ShouldRetry(err) {
		return d.opts.RetryBackoff * time.Duration(attempt), true
	}
	return 0, false
}

func (d *Dispatcher) attrs(j job, attempt int, start time.Time) []slog.Attr {
	return []slog.Attr{
		slog.String("action", j.action),
		slog.Int64("chat_id", j.to),
		slog.Int("attempt", attempt),
		slog.Duration("duration", logger.Took(start)),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func classify(err error) string {
	var flood tele.FloodError
	var apiErr *tele.Error
	switch {
	case errors.As(err, &flood):
		return "flood"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case netutil.ShouldRetry(err):
		return "network"
	case errors.As(err, &apiErr) && apiErr.Code >= http.StatusInternalServerError:
		return "http_5xx"
	case errors.As(err, &apiErr) && apiErr.Code >= http.StatusBadRequest:
		return "http_4xx"
	}
	return "unknown"
}

// redact keeps bot tokens out of logs.
func redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
