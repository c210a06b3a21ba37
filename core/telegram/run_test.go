package telegram

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePoller struct {
	stop    chan struct{}
	stopped chan struct{}
}

func newFakePoller() *fakePoller {
	return &fakePoller{stop: make(chan struct{}), stopped: make(chan struct{})}
}

func (p *fakePoller) Start() { <-p.stop }

func (p *fakePoller) Stop() {
	close(p.stop)
	close(p.stopped)
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := newFakePoller()
	serviceDone := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := runLoop(ctx, p, []Service{{
		Name: "scheduler",
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			close(serviceDone)
			return ctx.Err()
		},
	}})
	if err != nil {
		t.Fatalf("runLoop: %v", err)
	}
	select {
	case <-p.stopped:
	default:
		t.Fatal("poller not stopped")
	}
	select {
	case <-serviceDone:
	default:
		t.Fatal("service not cancelled")
	}
}

func TestRunLoopServiceFailureStopsBot(t *testing.T) {
	p := newFakePoller()
	boom := errors.New("bind: address already in use")
	err := runLoop(context.Background(), p, []Service{{
		Name: "http",
		Run:  func(context.Context) error { return boom },
	}})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	select {
	case <-p.stopped:
	default:
		t.Fatal("poller still running")
	}
}

type exitingPoller struct{}

func (exitingPoller) Start() {}
func (exitingPoller) Stop()  {}

func TestRunLoopPollerExit(t *testing.T) {
	if err := runLoop(context.Background(), exitingPoller{}, nil); !errors.Is(err, errPollerStopped) {
		t.Fatalf("err = %v", err)
	}
}
