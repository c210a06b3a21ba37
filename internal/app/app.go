// Package app wires storage, services, the Telegram runtime and the HTTP
// server into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/goroute/core/bootstrap"
	"github.com/m3rciful/goroute/core/cmd"
	"github.com/m3rciful/goroute/core/logger"
	coretelegram "github.com/m3rciful/goroute/core/telegram"
	tghelpers "github.com/m3rciful/goroute/core/telegram/helpers"
	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/dialog"
	"github.com/m3rciful/goroute/internal/httpapi"
	"github.com/m3rciful/goroute/internal/layout"
	"github.com/m3rciful/goroute/internal/payment"
	"github.com/m3rciful/goroute/internal/reservation"
	"github.com/m3rciful/goroute/internal/seats"
	"github.com/m3rciful/goroute/internal/storage"
	"github.com/m3rciful/goroute/internal/storage/memstore"
	"github.com/m3rciful/goroute/internal/storage/postgres"
	"github.com/m3rciful/goroute/internal/tracking"

	tele "gopkg.in/telebot.v4"
)

type App struct {
	cfg      *Config
	db       *sqlx.DB
	redis    *redis.Client
	store    storage.Store
	fin      *reservation.Finalizer
	tracker  *tracking.Scheduler
	engine   *dialog.Engine
	api      *httpapi.Server
	notifier *botNotifier
}

// Load adapts LoadConfig to cmd.Options.
func Load(path string) (cmd.ConfigCarrier, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Bootstrap initializes logging and the database, then builds the App.
func Bootstrap(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:       &cfg.Config,
		Database:     cfg.Database,
		SkipDatabase: cfg.Storage.Driver == StorageMemory,
	})
	if err != nil {
		return nil, err
	}
	return New(cfg, res.DB)
}

// New builds the services. A nil db selects the in-memory store.
func New(cfg *Config, db *sqlx.DB) (*App, error) {
	layouts, err := layout.NewSet(cfg.Layouts)
	if err != nil {
		return nil, err
	}

	var store storage.Store
	if db != nil {
		store = postgres.New(db)
	} else {
		logger.Warn(logger.Background(), logger.CompApp, "storage.memory",
			slog.String("reason", "no database; state is lost on restart"),
		)
		store = memstore.New()
	}

	a := &App{cfg: cfg, db: db, store: store, notifier: &botNotifier{}}
	locker := conversation.NewLocker()
	seatSvc := seats.New(store, layouts)
	a.fin = reservation.New(store, seatSvc, newGateway(cfg.Payment), a.notifier, locker, cfg.Reservation)

	opts := tracking.Options{Sweep: a.fin, Zone: a.fin.Zone()}
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts.Lease = tracking.NewRedisLease(a.redis, cfg.Tracking.LeaseKey, cfg.Tracking.LeaseTTL)
	}
	a.tracker = tracking.New(store, seatSvc, a.notifier, cfg.Tracking, opts)

	a.engine = dialog.New(dialog.Deps{
		Store:     store,
		Seats:     seatSvc,
		Finalizer: a.fin,
		Tracker:   a.tracker,
		Locker:    locker,
	})
	a.api = httpapi.New(cfg.HTTP, httpapi.Deps{
		Payments:      a.fin,
		Ticker:        a.tracker,
		WebhookSecret: cfg.Payment.WebhookSecret,
	})
	return a, nil
}

func newGateway(cfg payment.Config) payment.Gateway {
	if cfg.Enabled() {
		return payment.NewRazorpay(cfg, nil)
	}
	logger.Warn(logger.Background(), logger.CompPayment, "gateway.offline",
		slog.String("reason", "payment keys not configured"),
	)
	return payment.Offline{LinkBase: cfg.LinkBase}
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg, err := a.registry()
	if err != nil {
		return coretelegram.RunOptions{}, err
	}
	return coretelegram.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Config, onLimited),
		Routes:      a.routes(reg),
		Services: []coretelegram.Service{
			{Name: "http", Run: a.api.ListenAndServe},
			{Name: "tracking", Run: a.tracker.Run},
		},
		OnStart: a.start,
		OnStop:  a.stop,
	}, nil
}

// start binds the bot for out-of-update notifications.
func (a *App) start(_ context.Context, rt coretelegram.Runtime) error {
	a.notifier.bind(rt.Bot)
	return nil
}

func (a *App) stop(_ context.Context, _ coretelegram.Runtime) error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// botNotifier sends out-of-update messages once the bot is running.
type botNotifier struct {
	bot atomic.Pointer[tele.Bot]
}

func (n *botNotifier) bind(b *tele.Bot) { n.bot.Store(b) }

func (n *botNotifier) Notify(ctx context.Context, userID int64, text string) error {
	b := n.bot.Load()
	if b == nil {
		return errors.New("app: bot is not running")
	}
	return tghelpers.Notify(ctx, b, userID, text)
}
