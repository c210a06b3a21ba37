// Package storage declares the repositories used by the services. The
// postgres and memstore subpackages implement them; both make every
// compare-and-swap below atomic.
package storage

import (
	"context"
	"time"

	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/domain"
)

type Users interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	// CreateUser inserts u unless the id exists and returns the stored row.
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	UpdateProfile(ctx context.Context, id int64, name, aadhar, phone string) error
	UpdatePhone(ctx context.Context, id int64, phone string) error
	SetRole(ctx context.Context, id int64, role domain.Role) error
}

// SearchQuery filters scheduled buses. Empty fields match everything.
type SearchQuery struct {
	Origin      string
	Destination string
	Date        string
}

type Buses interface {
	CreateBus(ctx context.Context, b domain.Bus) error
	GetBus(ctx context.Context, id string) (domain.Bus, error)
	SearchBuses(ctx context.Context, q SearchQuery) ([]domain.Bus, error)
	// Destinations lists distinct destinations reachable from origin.
	Destinations(ctx context.Context, origin string) ([]string, error)
	BusesByManager(ctx context.Context, managerID int64) ([]domain.Bus, error)
	SetTotalSeats(ctx context.Context, id string, total int) error
	SetBusStatus(ctx context.Context, id string, st domain.BusStatus) error
	SetSync(ctx context.Context, id, endpoint, status string) error

	TrackedBuses(ctx context.Context) ([]domain.Bus, error)
	StartTracking(ctx context.Context, id, location string, startedAt, stopAt time.Time) error
	UpdateLocation(ctx context.Context, id, location string, at time.Time) error
	// StopTracking flips is_tracking off and marks the bus arrived. It
	// reports false when another caller stopped the bus first.
	StopTracking(ctx context.Context, id string) (domain.Bus, bool, error)
}

// LockRequest is a seat lock attempt. PairSeatNo is the layout-adjacent
// seat checked by the gender rule, empty when the seat has no pair.
type LockRequest struct {
	BusID       string
	SeatNo      string
	PairSeatNo  string
	Gender      domain.Gender
	Holder      int64
	Destination string
	At          time.Time
}

type Seats interface {
	GetSeat(ctx context.Context, busID, seatNo string) (domain.Seat, error)
	ListSeats(ctx context.Context, busID string) ([]domain.Seat, error)
	// InsertSeats adds seats that do not exist yet and returns how many were added.
	InsertSeats(ctx context.Context, seats []domain.Seat) (int, error)

	// LockSeat moves an available seat to locked after the pair check.
	LockSeat(ctx context.Context, req LockRequest) (domain.Seat, error)
	// UnlockSeats resets the listed seats to available regardless of status.
	UnlockSeats(ctx context.Context, busID string, seatNos []string) (int, error)
	// ReleaseHolds resets only seats still locked by holder.
	ReleaseHolds(ctx context.Context, busID string, holder int64, seatNos []string) (int, error)
	// CountHeld returns how many of seatNos are locked by holder.
	CountHeld(ctx context.Context, busID string, holder int64, seatNos []string) (int, error)
	// ReleaseBooked frees one booked seat and returns it as it was.
	ReleaseBooked(ctx context.Context, busID, seatNo string) (domain.Seat, error)
	// ReleaseMidRoute frees booked seats whose destination contains location.
	ReleaseMidRoute(ctx context.Context, busID, location string) ([]domain.Seat, error)
	// ReleaseStaleLocks frees locks older than before that no payment session covers.
	ReleaseStaleLocks(ctx context.Context, before time.Time) ([]domain.Seat, error)
}

// Commit is the outcome of a successful payment commit.
type Commit struct {
	Session domain.PaymentSession
	Booking domain.Booking
}

type Bookings interface {
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	BookingsByUser(ctx context.Context, userID int64, limit int) ([]domain.Booking, error)
	BookingsByBus(ctx context.Context, busID string, statuses ...domain.BookingStatus) ([]domain.Booking, error)
	// TransitionBooking moves a booking from one status to another and
	// fails with Conflict when it is no longer in from.
	TransitionBooking(ctx context.Context, id string, from, to domain.BookingStatus, at time.Time) (domain.Booking, error)
	// CancelConfirmed cancels a confirmed booking and frees its seats in one step.
	CancelConfirmed(ctx context.Context, id string, at time.Time) (domain.Booking, error)
	// Revenue sums total_paid of bookings confirmed on date (YYYY-MM-DD).
	Revenue(ctx context.Context, date string) (count int, total int64, err error)
}

type Payments interface {
	// CreatePending stores the pending booking, its session and the
	// awaiting-payment state together.
	CreatePending(ctx context.Context, b domain.Booking, s domain.PaymentSession, st conversation.State) error
	GetSession(ctx context.Context, orderID string) (domain.PaymentSession, error)
	// CommitPayment claims the session, books its held seats, confirms the
	// booking and clears the awaiting-payment state in one transaction.
	// ok is false when the session was already claimed. A seat that is no
	// longer held yields Conflict with nothing applied.
	CommitPayment(ctx context.Context, orderID string, at time.Time) (c Commit, ok bool, err error)
	// AbortPayment claims the session, releases its holds, cancels the
	// pending booking and clears the awaiting-payment state.
	AbortPayment(ctx context.Context, orderID string, at time.Time) (s domain.PaymentSession, ok bool, err error)
	ExpiredSessions(ctx context.Context, before time.Time) ([]domain.PaymentSession, error)
}

type Alerts interface {
	AddFareAlert(ctx context.Context, a domain.FareAlert) error
	RecentFareAlerts(ctx context.Context, limit int) ([]domain.FareAlert, error)
}

type Settings interface {
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
}

// Store bundles every repository plus the conversation state store.
type Store interface {
	Users
	Buses
	Seats
	Bookings
	Payments
	Alerts
	Settings
	States() conversation.Store
}
