package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	coreconfig "github.com/m3rciful/goroute/core/config"
	coretelegram "github.com/m3rciful/goroute/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type fakeApp struct {
	started, stopped bool
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { a.started = true; return nil },
		OnStop:  func(context.Context, coretelegram.Runtime) error { a.stopped = true; return nil },
	}, nil
}

func TestRunChainsLifecycleHooks(t *testing.T) {
	app := &fakeApp{}
	err := Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !app.started || !app.stopped {
		t.Fatalf("hooks not called: started=%v stopped=%v", app.started, app.stopped)
	}
}

func TestRunBootstrapError(t *testing.T) {
	err := Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) { return nil, errors.New("db down") },
	})
	if err == nil {
		t.Fatal("expected bootstrap error")
	}
}

func TestRunCheckSkipsBot(t *testing.T) {
	app := &fakeApp{}
	var loaded string
	err := Run(Options{
		Args:              []string{"--check", "-c", "prod.yaml"},
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loaded = path
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(context.Context, coretelegram.RunOptions) error {
			t.Fatal("bot started in check mode")
			return nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if loaded != "prod.yaml" {
		t.Fatalf("config path = %q", loaded)
	}
	if app.started || !app.stopped {
		t.Fatalf("check mode hooks: started=%v stopped=%v", app.started, app.stopped)
	}
}

func TestRunFlags(t *testing.T) {
	load := func(string) (ConfigCarrier, error) {
		t.Fatal("config loaded")
		return nil, nil
	}
	boot := func(ConfigCarrier) (TelegramApp, error) { return &fakeApp{}, nil }

	var out bytes.Buffer
	if err := Run(Options{Args: []string{"--help"}, Output: &out, LoadConfig: load, Bootstrap: boot}); err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(out.String(), "--config") {
		t.Fatalf("usage = %q", out.String())
	}

	err := Run(Options{Args: []string{"serve"}, Output: &out, LoadConfig: load, Bootstrap: boot})
	if err == nil || !strings.Contains(err.Error(), "serve") {
		t.Fatalf("positional arg err = %v", err)
	}
	if err := Run(Options{Args: []string{"--bogus"}, Output: &out, LoadConfig: load, Bootstrap: boot}); err == nil {
		t.Fatal("expected unknown flag error")
	}
}
