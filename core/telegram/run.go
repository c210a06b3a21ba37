package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	coreconfig "github.com/m3rciful/goroute/core/config"
	"github.com/m3rciful/goroute/core/logger"
	tghelpers "github.com/m3rciful/goroute/core/telegram/helpers"
	tgsender "github.com/m3rciful/goroute/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a global bot middleware registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to a telebot endpoint (command, tele.OnText, ...).
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// Service is a background loop that lives as long as the bot. A failing
// service stops the bot; the bot stopping cancels every service.
type Service struct {
	Name string
	Run  func(ctx context.Context) error
}

type RunOptions struct {
	Config            *coreconfig.Config
	Registry          *Registry
	DispatcherOptions tgsender.Options

	Middlewares []Middleware
	Routes      []Route
	Services    []Service

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes the running components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// poller is the part of *tele.Bot driven by runLoop.
type poller interface {
	Start()
	Stop()
}

// RunTelegram builds the bot, runs it together with opts.Services until
// ctx is done, and tears everything down.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	p := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	})
	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: p,
		Client: BuildHTTPClient(),
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	mode := coreconfig.RunModeLongpoll
	if _, ok := p.(*tele.Webhook); ok {
		mode = coreconfig.RunModeWebhook
	} else if err := bot.RemoveWebhook(); err != nil {
		logger.Warn(ctx, logger.CompTelegram, "webhook.remove", logger.Err(err))
	}
	logger.Info(ctx, logger.CompTelegram, "bot.ready",
		slog.String("mode", mode),
		slog.String("username", bot.Me.Username),
		slog.Duration("duration", logger.Took(start)),
	)

	disp := tgsender.NewDispatcher(opts.DispatcherOptions)
	tghelpers.SetDispatcher(disp)
	defer func() {
		disp.Close()
		tghelpers.SetDispatcher(nil)
	}()

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	InitBotCommands(bot, reg)

	rt := Runtime{Bot: bot, Dispatcher: disp, Registry: reg}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runErr := runLoop(ctx, bot, opts.Services)

	var stopErr error
	if opts.OnStop != nil {
		// ctx is already cancelled here; hooks get a bounded fresh one.
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		stopErr = opts.OnStop(stopCtx, rt)
		cancel()
	}
	return errors.Join(runErr, stopErr)
}

var errPollerStopped = errors.New("telegram: poller stopped")

func runLoop(ctx context.Context, bot poller, services []Service) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		if svc.Run == nil {
			continue
		}
		g.Go(func() error {
			err := svc.Run(gctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error(gctx, logger.CompApp, "service.fail", slog.String("service", svc.Name), logger.Err(err))
			return fmt.Errorf("%s: %w", svc.Name, err)
		})
	}

	done := make(chan struct{})
	go func() {
		bot.Start()
		close(done)
	}()
	g.Go(func() error {
		select {
		case <-gctx.Done():
			bot.Stop()
			<-done
			return nil
		case <-done:
			return errPollerStopped
		}
	})
	return g.Wait()
}
