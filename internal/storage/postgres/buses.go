package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/storage"
)

type busRow struct {
	ID                string     `db:"bus_id"`
	Number            string     `db:"bus_number"`
	Name              string     `db:"bus_name"`
	OwnerName         string     `db:"owner_name"`
	Origin            string     `db:"origin"`
	Destination       string     `db:"destination"`
	DepartDate        string     `db:"depart_date"`
	DepartTime        string     `db:"depart_time"`
	ArriveTime        string     `db:"arrive_time"`
	ManagerID         int64      `db:"manager_id"`
	ManagerPhone      string     `db:"manager_phone"`
	PriceMinor        int64      `db:"price_minor"`
	Currency          string     `db:"currency"`
	Kind              string     `db:"kind"`
	Layout            string     `db:"layout"`
	Rows              []byte     `db:"seat_rows"`
	BoardingPoints    []byte     `db:"boarding_points"`
	TotalSeats        int        `db:"total_seats"`
	Rating            float64    `db:"rating"`
	Status            string     `db:"status"`
	IsTracking        bool       `db:"is_tracking"`
	LastLocation      string     `db:"last_location"`
	LastLocationAt    *time.Time `db:"last_location_at"`
	TrackingStartedAt *time.Time `db:"tracking_started_at"`
	TrackingStopAt    *time.Time `db:"tracking_stop_at"`
	SyncEndpoint      string     `db:"sync_endpoint"`
	SyncStatus        string     `db:"sync_status"`
	CreatedAt         time.Time  `db:"created_at"`
}

const busCols = `bus_id, bus_number, bus_name, owner_name, origin, destination, depart_date,
	depart_time, arrive_time, manager_id, manager_phone, price_minor, currency, kind, layout,
	seat_rows, boarding_points, total_seats, rating, status, is_tracking, last_location,
	last_location_at, tracking_started_at, tracking_stop_at, sync_endpoint, sync_status, created_at`

func toBusRow(b domain.Bus) (busRow, error) {
	rows, err := json.Marshal(b.Rows)
	if err != nil {
		return busRow{}, err
	}
	points, err := json.Marshal(b.BoardingPoints)
	if err != nil {
		return busRow{}, err
	}
	return busRow{
		ID: b.ID, Number: b.Number, Name: b.Name, OwnerName: b.OwnerName,
		Origin: b.Origin, Destination: b.Destination,
		DepartDate: b.DepartDate, DepartTime: b.DepartTime, ArriveTime: b.ArriveTime,
		ManagerID: b.ManagerID, ManagerPhone: b.ManagerPhone,
		PriceMinor: b.PriceMinor, Currency: b.Currency, Kind: b.Kind, Layout: b.Layout,
		Rows: rows, BoardingPoints: points, TotalSeats: b.TotalSeats, Rating: b.Rating,
		Status: string(b.Status), IsTracking: b.IsTracking, LastLocation: b.LastLocation,
		LastLocationAt: b.LastLocationAt, TrackingStartedAt: b.TrackingStartedAt, TrackingStopAt: b.TrackingStopAt,
		SyncEndpoint: b.SyncEndpoint, SyncStatus: b.SyncStatus, CreatedAt: b.CreatedAt,
	}, nil
}

func (r busRow) toDomain() (domain.Bus, error) {
	b := domain.Bus{
		ID: r.ID, Number: r.Number, Name: r.Name, OwnerName: r.OwnerName,
		Origin: r.Origin, Destination: r.Destination,
		DepartDate: r.DepartDate, DepartTime: r.DepartTime, ArriveTime: r.ArriveTime,
		ManagerID: r.ManagerID, ManagerPhone: r.ManagerPhone,
		PriceMinor: r.PriceMinor, Currency: r.Currency, Kind: r.Kind, Layout: r.Layout,
		TotalSeats: r.TotalSeats, Rating: r.Rating, Status: domain.BusStatus(r.Status),
		IsTracking: r.IsTracking, LastLocation: r.LastLocation, LastLocationAt: r.LastLocationAt,
		TrackingStartedAt: r.TrackingStartedAt, TrackingStopAt: r.TrackingStopAt,
		SyncEndpoint: r.SyncEndpoint, SyncStatus: r.SyncStatus, CreatedAt: r.CreatedAt,
	}
	if len(r.Rows) > 0 {
		if err := json.Unmarshal(r.Rows, &b.Rows); err != nil {
			return domain.Bus{}, domain.Wrap(domain.KindStateInconsistency, err, "bus %s seat rows", r.ID)
		}
	}
	if len(r.BoardingPoints) > 0 {
		if err := json.Unmarshal(r.BoardingPoints, &b.BoardingPoints); err != nil {
			return domain.Bus{}, domain.Wrap(domain.KindStateInconsistency, err, "bus %s boarding points", r.ID)
		}
	}
	return b, nil
}

func busesFrom(rows []busRow) ([]domain.Bus, error) {
	out := make([]domain.Bus, 0, len(rows))
	for _, r := range rows {
		b, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) CreateBus(ctx context.Context, b domain.Bus) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	row, err := toBusRow(b)
	if err != nil {
		return domain.Wrap(domain.KindInvalidInput, err, "encode bus %s", b.ID)
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO buses (`+busCols+`) VALUES (
			:bus_id, :bus_number, :bus_name, :owner_name, :origin, :destination, :depart_date,
			:depart_time, :arrive_time, :manager_id, :manager_phone, :price_minor, :currency, :kind, :layout,
			:seat_rows, :boarding_points, :total_seats, :rating, :status, :is_tracking, :last_location,
			:last_location_at, :tracking_started_at, :tracking_stop_at, :sync_endpoint, :sync_status, :created_at)`, row)
	return mapErr(err, "bus %s already exists", b.ID)
}

func (s *Store) GetBus(ctx context.Context, id string) (domain.Bus, error) {
	var r busRow
	if err := s.db.GetContext(ctx, &r, `SELECT `+busCols+` FROM buses WHERE bus_id = $1`, id); err != nil {
		return domain.Bus{}, mapErr(err, "bus %s not found", id)
	}
	return r.toDomain()
}

func (s *Store) selectBuses(ctx context.Context, op, where string, args ...any) ([]domain.Bus, error) {
	var rows []busRow
	query := `SELECT ` + busCols + ` FROM buses WHERE ` + where + ` ORDER BY depart_date, depart_time, bus_id`
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapErr(err, "%s", op)
	}
	return busesFrom(rows)
}

func (s *Store) SearchBuses(ctx context.Context, q storage.SearchQuery) ([]domain.Bus, error) {
	return s.selectBuses(ctx, "search buses", `status = 'scheduled'
		AND ($1 = '' OR lower(origin) = lower($1))
		AND ($2 = '' OR lower(destination) = lower($2))
		AND ($3 = '' OR depart_date = $3)`,
		q.Origin, q.Destination, q.Date)
}

func (s *Store) Destinations(ctx context.Context, origin string) ([]string, error) {
	var out []string
	err := s.db.SelectContext(ctx, &out, `
		SELECT DISTINCT ON (lower(destination)) destination FROM buses
		WHERE status = 'scheduled' AND lower(origin) = lower($1)
		ORDER BY lower(destination), destination`, origin)
	if err != nil {
		return nil, mapErr(err, "list destinations")
	}
	return out, nil
}

func (s *Store) BusesByManager(ctx context.Context, managerID int64) ([]domain.Bus, error) {
	return s.selectBuses(ctx, "buses by manager", `manager_id = $1`, managerID)
}

func (s *Store) TrackedBuses(ctx context.Context) ([]domain.Bus, error) {
	return s.selectBuses(ctx, "tracked buses", `is_tracking`)
}

func (s *Store) execBus(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return mapErr(err, "update bus %s", id)
	}
	return expectOne(res, domain.NotFound("bus %s not found", id))
}

func (s *Store) SetTotalSeats(ctx context.Context, id string, total int) error {
	return s.execBus(ctx, id, `UPDATE buses SET total_seats = $2 WHERE bus_id = $1`, total)
}

func (s *Store) SetBusStatus(ctx context.Context, id string, st domain.BusStatus) error {
	return s.execBus(ctx, id,
		`UPDATE buses SET status = $2, is_tracking = CASE WHEN $3::boolean THEN false ELSE is_tracking END WHERE bus_id = $1`,
		string(st), st.StopsTracking())
}

func (s *Store) SetSync(ctx context.Context, id, endpoint, status string) error {
	return s.execBus(ctx, id, `UPDATE buses SET sync_endpoint = $2, sync_status = $3 WHERE bus_id = $1`, endpoint, status)
}

func (s *Store) StartTracking(ctx context.Context, id, location string, startedAt, stopAt time.Time) error {
	return s.execBus(ctx, id, `
		UPDATE buses SET is_tracking = true, status = 'departed', last_location = $2,
			last_location_at = $3, tracking_started_at = $3, tracking_stop_at = $4
		WHERE bus_id = $1`, location, startedAt, stopAt)
}

func (s *Store) UpdateLocation(ctx context.Context, id, location string, at time.Time) error {
	return s.execBus(ctx, id,
		`UPDATE buses SET last_location = $2, last_location_at = $3 WHERE bus_id = $1`,
		location, at)
}

// StopTracking returns the bus as it was before the stop so callers can
// report the tracked duration.
func (s *Store) StopTracking(ctx context.Context, id string) (domain.Bus, bool, error) {
	var r busRow
	err := s.db.GetContext(ctx, &r, `
		WITH prev AS (
			SELECT `+busCols+` FROM buses WHERE bus_id = $1 AND is_tracking FOR UPDATE
		)
		UPDATE buses b SET is_tracking = false, status = 'arrived', tracking_stop_at = NULL
		FROM prev WHERE b.bus_id = prev.bus_id
		RETURNING `+prefixCols("prev", busCols), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			b, getErr := s.GetBus(ctx, id)
			return b, false, getErr
		}
		return domain.Bus{}, false, mapErr(err, "stop tracking %s", id)
	}
	b, err := r.toDomain()
	return b, err == nil, err
}
