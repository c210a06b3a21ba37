package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/storage"
)

const seatCols = `bus_id, seat_no, row_no, col, seat_type, status, gender, destination, holder_id, booking_id, locked_at`

// clearSeat resets every holder field.
const clearSeat = `status = 'available', gender = '', destination = '', holder_id = 0, booking_id = '', locked_at = NULL`

func (s *Store) GetSeat(ctx context.Context, busID, seatNo string) (domain.Seat, error) {
	var seat domain.Seat
	err := s.db.GetContext(ctx, &seat, `SELECT `+seatCols+` FROM seats WHERE bus_id = $1 AND seat_no = $2`, busID, seatNo)
	if err != nil {
		return domain.Seat{}, mapErr(err, "seat %s on %s not found", seatNo, busID)
	}
	return seat, nil
}

func (s *Store) ListSeats(ctx context.Context, busID string) ([]domain.Seat, error) {
	var out []domain.Seat
	err := s.db.SelectContext(ctx, &out, `SELECT `+seatCols+` FROM seats WHERE bus_id = $1 ORDER BY row_no, col`, busID)
	if err != nil {
		return nil, mapErr(err, "list seats %s", busID)
	}
	return out, nil
}

func (s *Store) InsertSeats(ctx context.Context, seats []domain.Seat) (int, error) {
	if len(seats) == 0 {
		return 0, nil
	}
	added := 0
	err := s.withTx(ctx, "seats.insert", func(tx *sqlx.Tx) error {
		for _, seat := range seats {
			res, err := tx.NamedExecContext(ctx, `
				INSERT INTO seats (bus_id, seat_no, row_no, col, seat_type, status)
				VALUES (:bus_id, :seat_no, :row_no, :col, :seat_type, 'available')
				ON CONFLICT (bus_id, seat_no) DO NOTHING`, seat)
			if err != nil {
				return mapErr(err, "insert seat %s", seat.SeatNo)
			}
			n, _ := res.RowsAffected()
			added += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// LockSeat row-locks the seat and its pair, applies the gender rule and then
// flips the seat with a status-gated update.
func (s *Store) LockSeat(ctx context.Context, req storage.LockRequest) (domain.Seat, error) {
	var locked domain.Seat
	err := s.withTx(ctx, "seats.lock", func(tx *sqlx.Tx) error {
		nos := []string{req.SeatNo}
		if req.PairSeatNo != "" {
			nos = append(nos, req.PairSeatNo)
		}
		var rows []domain.Seat
		if err := tx.SelectContext(ctx, &rows, `
			SELECT `+seatCols+` FROM seats
			WHERE bus_id = $1 AND seat_no = ANY($2)
			ORDER BY seat_no FOR UPDATE`, req.BusID, pq.Array(nos)); err != nil {
			return mapErr(err, "lock seat %s", req.SeatNo)
		}

		var target, pair *domain.Seat
		for i := range rows {
			switch rows[i].SeatNo {
			case req.SeatNo:
				target = &rows[i]
			case req.PairSeatNo:
				pair = &rows[i]
			}
		}
		if target == nil {
			return domain.NotFound("seat %s on %s not found", req.SeatNo, req.BusID)
		}
		if target.Status != domain.SeatAvailable {
			return domain.Conflict("seat %s is not available", req.SeatNo)
		}
		if err := domain.CheckPairSafety(req.Gender, pair); err != nil {
			return err
		}

		err := tx.GetContext(ctx, &locked, `
			UPDATE seats SET status = 'locked', gender = $3, destination = $4, holder_id = $5, locked_at = $6
			WHERE bus_id = $1 AND seat_no = $2 AND status = 'available'
			RETURNING `+seatCols,
			req.BusID, req.SeatNo, string(req.Gender), req.Destination, req.Holder, req.At)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Conflict("seat %s is not available", req.SeatNo)
		}
		return mapErr(err, "lock seat %s", req.SeatNo)
	})
	if err != nil {
		return domain.Seat{}, err
	}
	return locked, nil
}

func (s *Store) UnlockSeats(ctx context.Context, busID string, seatNos []string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE seats SET `+clearSeat+` WHERE bus_id = $1 AND seat_no = ANY($2)`,
		busID, pq.Array(seatNos))
	if err != nil {
		return 0, mapErr(err, "unlock seats on %s", busID)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func releaseHolds(ctx context.Context, ex sqlx.ExecerContext, busID string, holder int64, seatNos []string) (int, error) {
	res, err := ex.ExecContext(ctx,
		`UPDATE seats SET `+clearSeat+`
		WHERE bus_id = $1 AND seat_no = ANY($2) AND status = 'locked' AND holder_id = $3`,
		busID, pq.Array(seatNos), holder)
	if err != nil {
		return 0, mapErr(err, "release holds on %s", busID)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) ReleaseHolds(ctx context.Context, busID string, holder int64, seatNos []string) (int, error) {
	return releaseHolds(ctx, s.db, busID, holder, seatNos)
}

func (s *Store) CountHeld(ctx context.Context, busID string, holder int64, seatNos []string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM seats
		WHERE bus_id = $1 AND seat_no = ANY($2) AND status = 'locked' AND holder_id = $3`,
		busID, pq.Array(seatNos), holder)
	if err != nil {
		return 0, mapErr(err, "count held seats on %s", busID)
	}
	return n, nil
}

// releaseReturning frees the seats matched by cond and returns their prior state.
func (s *Store) releaseReturning(ctx context.Context, cond string, args ...any) ([]domain.Seat, error) {
	var out []domain.Seat
	err := s.db.SelectContext(ctx, &out, `
		WITH prev AS (
			SELECT `+seatCols+` FROM seats s WHERE `+cond+` FOR UPDATE
		)
		UPDATE seats t SET `+clearSeat+`
		FROM prev WHERE t.bus_id = prev.bus_id AND t.seat_no = prev.seat_no
		RETURNING `+prefixCols("prev", seatCols), args...)
	return out, err
}

func (s *Store) ReleaseBooked(ctx context.Context, busID, seatNo string) (domain.Seat, error) {
	seats, err := s.releaseReturning(ctx, `s.bus_id = $1 AND s.seat_no = $2 AND s.status = 'booked'`, busID, seatNo)
	if err != nil {
		return domain.Seat{}, mapErr(err, "release seat %s", seatNo)
	}
	if len(seats) == 0 {
		if _, err := s.GetSeat(ctx, busID, seatNo); err != nil {
			return domain.Seat{}, err
		}
		return domain.Seat{}, domain.Conflict("seat %s is not booked", seatNo)
	}
	return seats[0], nil
}

func (s *Store) ReleaseMidRoute(ctx context.Context, busID, location string) ([]domain.Seat, error) {
	if location == "" {
		return nil, nil
	}
	seats, err := s.releaseReturning(ctx,
		`s.bus_id = $1 AND s.status = 'booked' AND strpos(lower(s.destination), lower($2)) > 0`,
		busID, location)
	if err != nil {
		return nil, mapErr(err, "mid-route release on %s", busID)
	}
	return seats, nil
}

func (s *Store) ReleaseStaleLocks(ctx context.Context, before time.Time) ([]domain.Seat, error) {
	seats, err := s.releaseReturning(ctx, `s.status = 'locked' AND s.locked_at < $1
		AND NOT EXISTS (
			SELECT 1 FROM payment_sessions p WHERE p.bus_id = s.bus_id AND p.user_id = s.holder_id
		)`, before)
	if err != nil {
		return nil, mapErr(err, "release stale locks")
	}
	return seats, nil
}
