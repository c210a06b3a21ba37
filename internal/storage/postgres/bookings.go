package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/goroute/internal/domain"
)

type bookingRow struct {
	ID            string         `db:"booking_id"`
	UserID        int64          `db:"user_id"`
	BusID         string         `db:"bus_id"`
	OrderID       string         `db:"order_id"`
	BoardingPoint string         `db:"boarding_point"`
	Destination   string         `db:"destination"`
	Phone         string         `db:"phone"`
	Seats         pq.StringArray `db:"seats"`
	Passengers    []byte         `db:"passengers"`
	TotalPaid     int64          `db:"total_paid"`
	Currency      string         `db:"currency"`
	Status        string         `db:"status"`
	CreatedAt     time.Time      `db:"created_at"`
	ConfirmedAt   *time.Time     `db:"confirmed_at"`
	CheckedInAt   *time.Time     `db:"checked_in_at"`
	CancelledAt   *time.Time     `db:"cancelled_at"`
}

const bookingCols = `booking_id, user_id, bus_id, order_id, boarding_point, destination, phone, seats,
	passengers, total_paid, currency, status, created_at, confirmed_at, checked_in_at, cancelled_at`

func toBookingRow(b domain.Booking) (bookingRow, error) {
	passengers, err := json.Marshal(b.Passengers)
	if err != nil {
		return bookingRow{}, err
	}
	return bookingRow{
		ID: b.ID, UserID: b.UserID, BusID: b.BusID, OrderID: b.OrderID,
		BoardingPoint: b.BoardingPoint, Destination: b.Destination, Phone: b.Phone,
		Seats: pq.StringArray(b.Seats), Passengers: passengers,
		TotalPaid: b.TotalPaid, Currency: b.Currency, Status: string(b.Status),
		CreatedAt: b.CreatedAt, ConfirmedAt: b.ConfirmedAt, CheckedInAt: b.CheckedInAt, CancelledAt: b.CancelledAt,
	}, nil
}

func (r bookingRow) toDomain() (domain.Booking, error) {
	b := domain.Booking{
		ID: r.ID, UserID: r.UserID, BusID: r.BusID, OrderID: r.OrderID,
		BoardingPoint: r.BoardingPoint, Destination: r.Destination, Phone: r.Phone,
		Seats: []string(r.Seats), TotalPaid: r.TotalPaid, Currency: r.Currency,
		Status:    domain.BookingStatus(r.Status),
		CreatedAt: r.CreatedAt, ConfirmedAt: r.ConfirmedAt, CheckedInAt: r.CheckedInAt, CancelledAt: r.CancelledAt,
	}
	if len(r.Passengers) > 0 {
		if err := json.Unmarshal(r.Passengers, &b.Passengers); err != nil {
			return domain.Booking{}, domain.Wrap(domain.KindStateInconsistency, err, "booking %s passengers", r.ID)
		}
	}
	return b, nil
}

func bookingsFrom(rows []bookingRow) ([]domain.Booking, error) {
	out := make([]domain.Booking, 0, len(rows))
	for _, r := range rows {
		b, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	var r bookingRow
	if err := s.db.GetContext(ctx, &r, `SELECT `+bookingCols+` FROM bookings WHERE booking_id = $1`, id); err != nil {
		return domain.Booking{}, mapErr(err, "booking %s not found", id)
	}
	return r.toDomain()
}

func (s *Store) BookingsByUser(ctx context.Context, userID int64, limit int) ([]domain.Booking, error) {
	var rows []bookingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+bookingCols+` FROM bookings
		WHERE user_id = $1 AND status <> 'cancelled'
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, mapErr(err, "bookings of user %d", userID)
	}
	return bookingsFrom(rows)
}

func (s *Store) BookingsByBus(ctx context.Context, busID string, statuses ...domain.BookingStatus) ([]domain.Booking, error) {
	names := make([]string, 0, len(statuses))
	for _, st := range statuses {
		names = append(names, string(st))
	}
	var rows []bookingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+bookingCols+` FROM bookings
		WHERE bus_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY created_at`, busID, pq.Array(names))
	if err != nil {
		return nil, mapErr(err, "bookings of bus %s", busID)
	}
	return bookingsFrom(rows)
}

var stampColumn = map[domain.BookingStatus]string{
	domain.BookingConfirmed: "confirmed_at",
	domain.BookingBoarded:   "checked_in_at",
	domain.BookingCancelled: "cancelled_at",
}

// transition applies a status CAS on q and reports Conflict or NotFound when it misses.
func transition(ctx context.Context, q sqlx.QueryerContext, id string, from, to domain.BookingStatus, at time.Time) (domain.Booking, error) {
	col, ok := stampColumn[to]
	if !ok {
		return domain.Booking{}, domain.InvalidInput("bookings cannot move to %s", to)
	}
	var r bookingRow
	err := sqlx.GetContext(ctx, q, &r, fmt.Sprintf(`
		UPDATE bookings SET status = $3, %s = $4
		WHERE booking_id = $1 AND status = $2
		RETURNING `+bookingCols, col), id, string(from), string(to), at)
	if errors.Is(err, sql.ErrNoRows) {
		var current string
		if getErr := sqlx.GetContext(ctx, q, &current, `SELECT status FROM bookings WHERE booking_id = $1`, id); getErr != nil {
			return domain.Booking{}, mapErr(getErr, "booking %s not found", id)
		}
		return domain.Booking{}, domain.Conflict("booking %s is %s", id, current)
	}
	if err != nil {
		return domain.Booking{}, mapErr(err, "update booking %s", id)
	}
	return r.toDomain()
}

func (s *Store) TransitionBooking(ctx context.Context, id string, from, to domain.BookingStatus, at time.Time) (domain.Booking, error) {
	return transition(ctx, s.db, id, from, to, at)
}

func (s *Store) CancelConfirmed(ctx context.Context, id string, at time.Time) (domain.Booking, error) {
	var out domain.Booking
	err := s.withTx(ctx, "booking.cancel", func(tx *sqlx.Tx) error {
		b, err := transition(ctx, tx, id, domain.BookingConfirmed, domain.BookingCancelled, at)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE seats SET `+clearSeat+` WHERE bus_id = $1 AND booking_id = $2 AND status = 'booked'`,
			b.BusID, b.ID); err != nil {
			return mapErr(err, "free seats of %s", id)
		}
		out = b
		return nil
	})
	return out, err
}

func (s *Store) Revenue(ctx context.Context, date string) (int, int64, error) {
	var row struct {
		Count int   `db:"count"`
		Total int64 `db:"total"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT COUNT(*) AS count, COALESCE(SUM(total_paid), 0) AS total FROM bookings
		WHERE status IN ('confirmed', 'boarded') AND confirmed_at::date = $1::date`, date)
	if err != nil {
		return 0, 0, mapErr(err, "revenue for %s", date)
	}
	return row.Count, row.Total, nil
}
