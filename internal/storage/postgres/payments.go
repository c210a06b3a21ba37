package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/goroute/core/logger"
	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/storage"
)

type sessionRow struct {
	OrderID   string    `db:"order_id"`
	UserID    int64     `db:"user_id"`
	BusID     string    `db:"bus_id"`
	BookingID string    `db:"booking_id"`
	Amount    int64     `db:"amount"`
	Currency  string    `db:"currency"`
	Draft     []byte    `db:"draft"`
	CreatedAt time.Time `db:"created_at"`
}

const sessionCols = `order_id, user_id, bus_id, booking_id, amount, currency, draft, created_at`

func (r sessionRow) toDomain() (domain.PaymentSession, error) {
	sess := domain.PaymentSession{
		OrderID: r.OrderID, UserID: r.UserID, BusID: r.BusID, BookingID: r.BookingID,
		Amount: r.Amount, Currency: r.Currency, CreatedAt: r.CreatedAt,
	}
	if err := json.Unmarshal(r.Draft, &sess.Draft); err != nil {
		return domain.PaymentSession{}, domain.Wrap(domain.KindStateInconsistency, err, "session %s draft", r.OrderID)
	}
	return sess, nil
}

func (s *Store) CreatePending(ctx context.Context, b domain.Booking, sess domain.PaymentSession, st conversation.State) error {
	brow, err := toBookingRow(b)
	if err != nil {
		return domain.Wrap(domain.KindInvalidInput, err, "encode booking %s", b.ID)
	}
	draft, err := json.Marshal(sess.Draft)
	if err != nil {
		return domain.Wrap(domain.KindInvalidInput, err, "encode draft %s", sess.OrderID)
	}
	payload, err := conversation.Encode(st.Payload)
	if err != nil {
		return err
	}
	return s.withTx(ctx, "payment.create", func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO bookings (`+bookingCols+`) VALUES (
				:booking_id, :user_id, :bus_id, :order_id, :boarding_point, :destination, :phone, :seats,
				:passengers, :total_paid, :currency, :status, :created_at, :confirmed_at, :checked_in_at, :cancelled_at)`,
			brow); err != nil {
			return mapErr(err, "booking %s already exists", b.ID)
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO payment_sessions (`+sessionCols+`) VALUES (
				:order_id, :user_id, :bus_id, :booking_id, :amount, :currency, :draft, :created_at)`,
			sessionRow{
				OrderID: sess.OrderID, UserID: sess.UserID, BusID: sess.BusID, BookingID: sess.BookingID,
				Amount: sess.Amount, Currency: sess.Currency, Draft: draft, CreatedAt: sess.CreatedAt,
			}); err != nil {
			return mapErr(err, "order %s already has a session", sess.OrderID)
		}
		return putState(ctx, tx, st.UserID, st.Step, payload)
	})
}

func (s *Store) GetSession(ctx context.Context, orderID string) (domain.PaymentSession, error) {
	var r sessionRow
	if err := s.db.GetContext(ctx, &r, `SELECT `+sessionCols+` FROM payment_sessions WHERE order_id = $1`, orderID); err != nil {
		return domain.PaymentSession{}, mapErr(err, "no payment session for %s", orderID)
	}
	return r.toDomain()
}

// claim deletes the session row. The row lock taken by DELETE makes
// concurrent claimers wait and then find nothing.
func claim(ctx context.Context, tx *sqlx.Tx, orderID string) (domain.PaymentSession, bool, error) {
	var r sessionRow
	err := tx.GetContext(ctx, &r, `DELETE FROM payment_sessions WHERE order_id = $1 RETURNING `+sessionCols, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PaymentSession{}, false, nil
	}
	if err != nil {
		return domain.PaymentSession{}, false, mapErr(err, "claim session %s", orderID)
	}
	sess, err := r.toDomain()
	return sess, err == nil, err
}

func clearAwaiting(ctx context.Context, tx *sqlx.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM conversation_state WHERE user_id = $1 AND step = $2`,
		userID, string(conversation.StepAwaitingPayment))
	return mapErr(err, "clear state of %d", userID)
}

func (s *Store) CommitPayment(ctx context.Context, orderID string, at time.Time) (storage.Commit, bool, error) {
	var (
		out     storage.Commit
		claimed bool
	)
	err := s.withTx(ctx, "payment.commit", func(tx *sqlx.Tx) error {
		sess, ok, err := claim(ctx, tx, orderID)
		if err != nil || !ok {
			return err
		}

		seatNos := sess.Draft.SeatNos()
		res, err := tx.ExecContext(ctx, `
			UPDATE seats SET status = 'booked', booking_id = $4
			WHERE bus_id = $1 AND seat_no = ANY($2) AND status = 'locked' AND holder_id = $3`,
			sess.BusID, pq.Array(seatNos), sess.UserID, sess.BookingID)
		if err != nil {
			return mapErr(err, "book seats of %s", orderID)
		}
		if n, _ := res.RowsAffected(); int(n) != len(seatNos) {
			logger.Warn(ctx, logger.CompDB, "payment.commit.seats",
				slog.String("order_id", orderID),
				slog.Int("count", int(n)),
				slog.Int("expected", len(seatNos)),
			)
			return domain.Conflict("seats %v are no longer held", seatNos)
		}

		var r bookingRow
		err = tx.GetContext(ctx, &r, `
			UPDATE bookings SET status = 'confirmed', total_paid = $2, confirmed_at = $3
			WHERE booking_id = $1 AND status = 'pending_payment'
			RETURNING `+bookingCols, sess.BookingID, sess.Amount, at)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StateInconsistency("booking %s is not pending", sess.BookingID)
		}
		if err != nil {
			return mapErr(err, "confirm booking %s", sess.BookingID)
		}
		b, err := r.toDomain()
		if err != nil {
			return err
		}
		if err := clearAwaiting(ctx, tx, sess.UserID); err != nil {
			return err
		}
		out = storage.Commit{Session: sess, Booking: b}
		claimed = true
		return nil
	})
	if err != nil {
		return storage.Commit{}, false, err
	}
	return out, claimed, nil
}

func (s *Store) AbortPayment(ctx context.Context, orderID string, at time.Time) (domain.PaymentSession, bool, error) {
	var (
		out     domain.PaymentSession
		claimed bool
	)
	err := s.withTx(ctx, "payment.abort", func(tx *sqlx.Tx) error {
		sess, ok, err := claim(ctx, tx, orderID)
		if err != nil || !ok {
			return err
		}
		holds := slices.Clone(sess.Draft.HeldSeats)
		for _, no := range sess.Draft.SeatNos() {
			if !slices.Contains(holds, no) {
				holds = append(holds, no)
			}
		}
		if _, err := releaseHolds(ctx, tx, sess.BusID, sess.UserID, holds); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE bookings SET status = 'cancelled', cancelled_at = $2
			WHERE booking_id = $1 AND status = 'pending_payment'`, sess.BookingID, at); err != nil {
			return mapErr(err, "cancel booking %s", sess.BookingID)
		}
		if err := clearAwaiting(ctx, tx, sess.UserID); err != nil {
			return err
		}
		out, claimed = sess, true
		return nil
	})
	if err != nil {
		return domain.PaymentSession{}, false, err
	}
	return out, claimed, nil
}

func (s *Store) ExpiredSessions(ctx context.Context, before time.Time) ([]domain.PaymentSession, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+sessionCols+` FROM payment_sessions WHERE created_at < $1 ORDER BY created_at`, before)
	if err != nil {
		return nil, mapErr(err, "expired sessions")
	}
	out := make([]domain.PaymentSession, 0, len(rows))
	for _, r := range rows {
		sess, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}
