// Package tracking runs live bus tracking: starting and stopping sessions,
// the periodic location tick, automatic stops and mid-route seat release.
package tracking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/goroute/core/logger"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/messages"
	"github.com/m3rciful/goroute/internal/reservation"
	"github.com/m3rciful/goroute/internal/seats"
	"github.com/m3rciful/goroute/internal/storage"
)

const (
	DefaultInterval    = 5 * time.Minute
	DefaultMinDuration = 15 * time.Minute
	DefaultTrackingURL = "https://goroute.app/track"
)

type Config struct {
	Interval    time.Duration `yaml:"interval" envconfig:"INTERVAL"`
	MinDuration time.Duration `yaml:"min_duration" envconfig:"MIN_DURATION"`
	TrackingURL string        `yaml:"tracking_url" envconfig:"TRACKING_URL"`
	Waypoints   []string      `yaml:"waypoints" envconfig:"WAYPOINTS"`
	LeaseKey    string        `yaml:"lease_key" envconfig:"LEASE_KEY"`
	LeaseTTL    time.Duration `yaml:"lease_ttl" envconfig:"LEASE_TTL"`
}

// Repo is the storage the scheduler needs.
type Repo interface {
	storage.Buses
	storage.Bookings
}

// HoldSweeper expires unpaid holds. Run calls it after every tick.
type HoldSweeper interface {
	ExpireHolds(ctx context.Context, now time.Time) (reservation.ExpireReport, error)
}

// TickReport summarizes one tick.
type TickReport struct {
	Skipped  bool
	Buses    int
	Released int
	Stopped  int
	Updated  int
}

type Scheduler struct {
	repo   Repo
	seats  *seats.Service
	source LocationSource
	notify reservation.Notifier
	lease  Lease
	sweep  HoldSweeper
	cfg    Config
	zone   *time.Location

	mu sync.Mutex
}

// Options carries the optional collaborators of a Scheduler.
type Options struct {
	Source LocationSource
	Lease  Lease
	Sweep  HoldSweeper
	Zone   *time.Location
}

func New(repo Repo, seatSvc *seats.Service, n reservation.Notifier, cfg Config, opts Options) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = DefaultMinDuration
	}
	if cfg.TrackingURL == "" {
		cfg.TrackingURL = DefaultTrackingURL
	}
	if opts.Source == nil {
		opts.Source = WaypointRotation{Stops: cfg.Waypoints}
	}
	if opts.Zone == nil {
		opts.Zone = messages.Zone("")
	}
	if n == nil {
		n = reservation.NotifierFunc(func(context.Context, int64, string) error { return nil })
	}
	return &Scheduler{
		repo:   repo,
		seats:  seatSvc,
		source: opts.Source,
		notify: n,
		lease:  opts.Lease,
		sweep:  opts.Sweep,
		cfg:    cfg,
		zone:   opts.Zone,
	}
}

// TrackingURL is the public link shown to managers and passengers.
func (s *Scheduler) TrackingURL() string { return s.cfg.TrackingURL }

// MinDuration is the shortest tracking session StartTracking accepts.
func (s *Scheduler) MinDuration() time.Duration { return s.cfg.MinDuration }

// Tick runs one scheduler pass. A tick that overlaps a running one, here
// or in another process holding the lease, is skipped. Failures on one
// bus never stop the others; they are joined into the returned error.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (rep TickReport, err error) {
	if !s.mu.TryLock() {
		logger.Debug(ctx, logger.CompTracking, "tick.skip", slog.String("reason", "running"))
		return TickReport{Skipped: true}, nil
	}
	defer s.mu.Unlock()

	if s.lease != nil {
		release, ok, err := s.lease.Acquire(ctx)
		if err != nil {
			return rep, err
		}
		if !ok {
			logger.Debug(ctx, logger.CompTracking, "tick.skip", slog.String("reason", "lease_held"))
			return TickReport{Skipped: true}, nil
		}
		defer release()
	}

	start := time.Now()
	var errs []error
	defer func() {
		logger.Info(ctx, logger.CompTracking, "tick",
			slog.String("status", logger.Status(err)),
			slog.Int("count", rep.Buses),
			slog.Int("released", rep.Released),
			slog.Int("stopped", rep.Stopped),
			slog.Int("updated", rep.Updated),
			slog.Duration("duration", logger.Took(start)),
			logger.Err(err),
		)
	}()

	buses, err := s.repo.TrackedBuses(ctx)
	if err != nil {
		return rep, err
	}
	rep.Buses = len(buses)

	// Phase 1 uses the location reported by the previous tick.
	for _, bus := range buses {
		n, err := s.releaseMidRoute(ctx, bus)
		rep.Released += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	for _, bus := range buses {
		if bus.TrackingStopAt != nil && now.After(*bus.TrackingStopAt) {
			stopped, err := s.autoStop(ctx, bus, now)
			if err != nil {
				errs = append(errs, err)
			} else if stopped {
				rep.Stopped++
			}
			continue
		}
		if err := s.advance(ctx, bus, now); err != nil {
			errs = append(errs, err)
			continue
		}
		rep.Updated++
	}
	return rep, errors.Join(errs...)
}

func (s *Scheduler) releaseMidRoute(ctx context.Context, bus domain.Bus) (int, error) {
	released, err := s.seats.ReleaseMidRoute(ctx, bus.ID, bus.LastLocation)
	if err != nil {
		logger.Warn(ctx, logger.CompTracking, "mid_route.release",
			slog.String("status", "fail"),
			slog.String("bus_id", bus.ID),
			logger.Err(err),
		)
		return 0, err
	}
	for _, seat := range released {
		userID := seat.HolderID
		if userID == 0 && seat.BookingID != "" {
			if b, err := s.repo.GetBooking(ctx, seat.BookingID); err == nil {
				userID = b.UserID
			}
		}
		s.send(ctx, userID, messages.Render(messages.MidRouteReleased,
			"location", messages.Esc(bus.LastLocation),
			"seatNo", seat.SeatNo,
			"busID", bus.ID,
		))
	}
	return len(released), nil
}

func (s *Scheduler) autoStop(ctx context.Context, bus domain.Bus, now time.Time) (bool, error) {
	before, ok, err := s.repo.StopTracking(ctx, bus.ID)
	if err != nil {
		logger.Warn(ctx, logger.CompTracking, "tracking.auto_stop",
			slog.String("status", "fail"),
			slog.String("bus_id", bus.ID),
			logger.Err(err),
		)
		return false, err
	}
	if !ok {
		return false, nil
	}
	elapsed := sessionLength(before)
	logger.Info(ctx, logger.CompTracking, "tracking.auto_stop",
		slog.String("bus_id", bus.ID),
		slog.Duration("elapsed", elapsed),
	)
	s.send(ctx, before.ManagerID, messages.Render(messages.TrackingAutoStopped,
		"busID", bus.ID,
		"time", messages.Clock(now, s.zone),
		"duration", domain.ElapsedLabel(elapsed),
	))
	return true, nil
}

func (s *Scheduler) advance(ctx context.Context, bus domain.Bus, now time.Time) error {
	location, err := s.source.Next(ctx, bus)
	if err == nil {
		err = s.repo.UpdateLocation(ctx, bus.ID, location, now)
	}
	if err != nil {
		logger.Warn(ctx, logger.CompTracking, "location.update",
			slog.String("status", "fail"),
			slog.String("bus_id", bus.ID),
			logger.Err(err),
		)
		return err
	}
	logger.Debug(ctx, logger.CompTracking, "location.update",
		slog.String("bus_id", bus.ID),
		slog.String("location", location),
	)
	return nil
}

// sessionLength is how long tracking ran until its scheduled stop.
func sessionLength(b domain.Bus) time.Duration {
	startedAt := b.TrackingStartedAt
	if startedAt == nil {
		startedAt = b.LastLocationAt
	}
	if startedAt == nil || b.TrackingStopAt == nil {
		return 0
	}
	return b.TrackingStopAt.Sub(*startedAt)
}

// StartTracking marks the bus departed and starts a session ending after
// d. Passengers with confirmed bookings are told once each.
func (s *Scheduler) StartTracking(ctx context.Context, actor domain.User, busID, location string, d time.Duration, now time.Time) (stopAt time.Time, err error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return time.Time{}, domain.InvalidInput("current location is required")
	}
	if d < s.cfg.MinDuration {
		return time.Time{}, domain.InvalidInput("tracking must run for at least %d minutes", int(s.cfg.MinDuration/time.Minute))
	}
	bus, err := s.authorize(ctx, actor, busID)
	if err != nil {
		return time.Time{}, err
	}
	stopAt = now.Add(d)
	err = s.repo.StartTracking(ctx, bus.ID, location, now, stopAt)
	logger.Info(ctx, logger.CompTracking, "tracking.start",
		slog.String("status", logger.Status(err)),
		slog.String("bus_id", bus.ID),
		slog.String("location", location),
		slog.Duration("period", d),
		logger.Err(err),
	)
	if err != nil {
		return time.Time{}, err
	}

	bookings, err := s.repo.BookingsByBus(ctx, bus.ID, domain.BookingConfirmed)
	if err != nil {
		logger.Warn(ctx, logger.CompTracking, "tracking.notify", slog.String("bus_id", bus.ID), logger.Err(err))
		return stopAt, nil
	}
	text := messages.Render(messages.PassengerTrackingStart,
		"busID", bus.ID,
		"location", messages.Esc(location),
		"time", messages.Clock(now, s.zone),
	)
	seen := make(map[int64]bool, len(bookings))
	for _, b := range bookings {
		if seen[b.UserID] {
			continue
		}
		seen[b.UserID] = true
		s.send(ctx, b.UserID, text)
	}
	return stopAt, nil
}

// StopTracking ends a session by hand. It reports false when the bus was
// not being tracked.
func (s *Scheduler) StopTracking(ctx context.Context, actor domain.User, busID string) (bool, error) {
	bus, err := s.authorize(ctx, actor, busID)
	if err != nil {
		return false, err
	}
	_, ok, err := s.repo.StopTracking(ctx, bus.ID)
	logger.Info(ctx, logger.CompTracking, "tracking.stop",
		slog.String("status", logger.Status(err)),
		slog.String("bus_id", bus.ID),
		slog.Bool("was_tracking", ok),
		logger.Err(err),
	)
	return ok, err
}

func (s *Scheduler) authorize(ctx context.Context, actor domain.User, busID string) (domain.Bus, error) {
	if !actor.Role.AtLeast(domain.RoleManager) {
		return domain.Bus{}, domain.PermissionDenied("only managers can control tracking")
	}
	bus, err := s.repo.GetBus(ctx, strings.ToUpper(strings.TrimSpace(busID)))
	if err != nil {
		return domain.Bus{}, err
	}
	if actor.Role != domain.RoleOwner && bus.ManagerID != 0 && bus.ManagerID != actor.ID {
		return domain.Bus{}, domain.PermissionDenied("bus %s is managed by someone else", bus.ID)
	}
	return bus, nil
}

// Run ticks every interval until ctx is done. Each tick is followed by
// the hold-expiry sweep when one is configured.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info(ctx, logger.CompTracking, "scheduler.start", slog.Duration("interval", s.cfg.Interval))
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info(logger.Background(), logger.CompTracking, "scheduler.stop")
			return nil
		case now := <-ticker.C:
			s.RunOnce(ctx, now)
		}
	}
}

// RunOnce performs one tick and one hold sweep, logging their failures.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (TickReport, reservation.ExpireReport) {
	rep, err := s.Tick(ctx, now)
	if err != nil {
		logger.Error(ctx, logger.CompTracking, "tick.errors", logger.Err(err))
	}
	var swept reservation.ExpireReport
	if s.sweep != nil {
		if swept, err = s.sweep.ExpireHolds(ctx, now); err != nil {
			logger.Error(ctx, logger.CompTracking, "hold.sweep", logger.Err(err))
		}
	}
	return rep, swept
}

func (s *Scheduler) send(ctx context.Context, userID int64, text string) {
	if userID == 0 {
		return
	}
	if err := s.notify.Notify(ctx, userID, text); err != nil {
		logger.Warn(ctx, logger.CompTracking, "notify", slog.Int64("user_id", userID), logger.Err(err))
	}
}
