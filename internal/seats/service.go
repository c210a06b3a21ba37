// Package seats owns seat inventory: locking with the adjacency rule,
// compensating releases, manager releases and bulk seat creation.
package seats

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/m3rciful/goroute/core/logger"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/layout"
	"github.com/m3rciful/goroute/internal/storage"
)

// MaxSeatsPerCall caps CreateSeats.
const MaxSeatsPerCall = 40

// Repo is the storage the service needs.
type Repo interface {
	storage.Buses
	storage.Seats
}

// LockRequest asks for one seat on behalf of Holder.
type LockRequest struct {
	BusID       string
	SeatNo      string
	Gender      domain.Gender
	Holder      int64
	Destination string
}

type Service struct {
	repo    Repo
	layouts *layout.Set
	now     func() time.Time
}

// New builds a Service. A nil layout set means the default 2x2 layout only.
func New(repo Repo, layouts *layout.Set) *Service {
	if layouts == nil {
		layouts = layout.Default()
	}
	return &Service{repo: repo, layouts: layouts, now: time.Now}
}

// LockSeat moves an available seat to locked. It fails with
// SafetyViolation when a male passenger asks for the seat paired with one
// held by a female passenger; the seat is left untouched in that case.
func (s *Service) LockSeat(ctx context.Context, req LockRequest) (domain.Seat, error) {
	start := time.Now()
	row, col, err := domain.ParseSeatNo(req.SeatNo)
	if err != nil {
		return domain.Seat{}, err
	}
	if req.Gender != domain.GenderMale && req.Gender != domain.GenderFemale {
		return domain.Seat{}, domain.InvalidInput("gender must be M or F")
	}
	bus, err := s.repo.GetBus(ctx, req.BusID)
	if err != nil {
		return domain.Seat{}, err
	}
	l, err := s.layouts.Get(bus.Layout)
	if err != nil {
		return domain.Seat{}, err
	}
	seatNo := domain.SeatNo(row, col)
	pair, _ := l.PairOf(seatNo)

	seat, err := s.repo.LockSeat(ctx, storage.LockRequest{
		BusID:       bus.ID,
		SeatNo:      seatNo,
		PairSeatNo:  pair,
		Gender:      req.Gender,
		Holder:      req.Holder,
		Destination: strings.TrimSpace(req.Destination),
		At:          s.now(),
	})
	logger.Info(ctx, logger.CompSeats, "seat.lock",
		slog.String("status", logger.Status(err)),
		slog.String("bus_id", bus.ID),
		slog.String("seat_no", seatNo),
		slog.String("gender", string(req.Gender)),
		slog.Duration("duration", logger.Took(start)),
		logger.Err(err),
	)
	return seat, err
}

// UnlockSeats resets the listed seats to available whatever their status.
func (s *Service) UnlockSeats(ctx context.Context, busID string, seatNos []string) error {
	if len(seatNos) == 0 {
		return nil
	}
	n, err := s.repo.UnlockSeats(ctx, busID, seatNos)
	logger.Info(ctx, logger.CompSeats, "seat.unlock",
		slog.String("status", logger.Status(err)),
		slog.String("bus_id", busID),
		slog.Any("seats", seatNos),
		slog.Int("count", n),
		logger.Err(err),
	)
	return err
}

// ReleaseHolds frees seats still locked by holder. Booked seats and seats
// held by someone else are left alone.
func (s *Service) ReleaseHolds(ctx context.Context, busID string, holder int64, seatNos []string) (int, error) {
	if busID == "" || len(seatNos) == 0 {
		return 0, nil
	}
	n, err := s.repo.ReleaseHolds(ctx, busID, holder, slices.Compact(slices.Sorted(slices.Values(seatNos))))
	if err != nil {
		logger.Warn(ctx, logger.CompSeats, "seat.release_holds",
			slog.String("status", "fail"),
			slog.String("bus_id", busID),
			slog.Any("seats", seatNos),
			logger.Err(err),
		)
		return 0, err
	}
	logger.Debug(ctx, logger.CompSeats, "seat.release_holds",
		slog.String("status", "ok"),
		slog.String("bus_id", busID),
		slog.Int("count", n),
	)
	return n, nil
}

// VerifyHeld fails with Conflict unless every seat is still locked by holder.
func (s *Service) VerifyHeld(ctx context.Context, busID string, holder int64, seatNos []string) error {
	if len(seatNos) == 0 {
		return domain.InvalidInput("no seats selected")
	}
	n, err := s.repo.CountHeld(ctx, busID, holder, seatNos)
	if err != nil {
		return err
	}
	if n != len(seatNos) {
		return domain.Conflict("your hold on seats %s has expired", strings.Join(seatNos, ", "))
	}
	return nil
}

// ReleaseMidRoute frees booked seats whose destination contains location.
// Bookings keep their status.
func (s *Service) ReleaseMidRoute(ctx context.Context, busID, location string) ([]domain.Seat, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, nil
	}
	released, err := s.repo.ReleaseMidRoute(ctx, busID, location)
	if err != nil {
		return nil, err
	}
	for _, seat := range released {
		logger.Info(ctx, logger.CompSeats, "seat.mid_route_release",
			slog.String("bus_id", busID),
			slog.String("seat_no", seat.SeatNo),
			slog.String("location", location),
			slog.String("booking_id", seat.BookingID),
		)
	}
	return released, nil
}

// ReleaseSeat frees one booked seat. Only the bus manager or an owner may do it.
func (s *Service) ReleaseSeat(ctx context.Context, actor domain.User, busID, seatNo string) (domain.Seat, error) {
	bus, err := s.authorize(ctx, actor, busID)
	if err != nil {
		return domain.Seat{}, err
	}
	row, col, err := domain.ParseSeatNo(seatNo)
	if err != nil {
		return domain.Seat{}, err
	}
	seat, err := s.repo.ReleaseBooked(ctx, bus.ID, domain.SeatNo(row, col))
	logger.Info(ctx, logger.CompSeats, "seat.release",
		slog.String("status", logger.Status(err)),
		slog.String("bus_id", bus.ID),
		slog.String("seat_no", domain.SeatNo(row, col)),
		slog.String("booking_id", seat.BookingID),
		logger.Err(err),
	)
	return seat, err
}

// ReleaseStale frees orphan locks taken before the cutoff.
func (s *Service) ReleaseStale(ctx context.Context, before time.Time) ([]domain.Seat, error) {
	released, err := s.repo.ReleaseStaleLocks(ctx, before)
	if err != nil {
		return nil, err
	}
	if len(released) > 0 {
		logger.Info(ctx, logger.CompSeats, "seat.release_stale", slog.Int("count", len(released)))
	}
	return released, nil
}

// CreateSeats lays out count seats on the bus following its layout columns
// and row types, and records count as the bus capacity. Existing seats are kept.
func (s *Service) CreateSeats(ctx context.Context, actor domain.User, busID string, count int) (int, error) {
	if count < 1 || count > MaxSeatsPerCall {
		return 0, domain.InvalidInput("seat count must be between 1 and %d", MaxSeatsPerCall)
	}
	bus, err := s.authorize(ctx, actor, busID)
	if err != nil {
		return 0, err
	}
	if len(bus.Rows) == 0 {
		return 0, domain.StateInconsistency("bus %s has no seat rows configured", bus.ID)
	}
	l, err := s.layouts.Get(bus.Layout)
	if err != nil {
		return 0, err
	}
	if c := l.Capacity(bus.Rows); count > c {
		return 0, domain.InvalidInput("bus %s has room for %d seats", bus.ID, c)
	}
	added, err := s.repo.InsertSeats(ctx, l.Plan(bus.ID, bus.Rows, count))
	if err != nil {
		return 0, err
	}
	if err := s.repo.SetTotalSeats(ctx, bus.ID, count); err != nil {
		return added, err
	}
	logger.Info(ctx, logger.CompSeats, "seat.create",
		slog.String("bus_id", bus.ID),
		slog.Int("count", count),
		slog.Int("added", added),
	)
	return added, nil
}

func (s *Service) authorize(ctx context.Context, actor domain.User, busID string) (domain.Bus, error) {
	if !actor.Role.AtLeast(domain.RoleManager) {
		return domain.Bus{}, domain.PermissionDenied("only managers can manage seats")
	}
	bus, err := s.repo.GetBus(ctx, busID)
	if err != nil {
		return domain.Bus{}, err
	}
	if actor.Role != domain.RoleOwner && bus.ManagerID != 0 && bus.ManagerID != actor.ID {
		return domain.Bus{}, domain.PermissionDenied("bus %s is managed by someone else", bus.ID)
	}
	return bus, nil
}
