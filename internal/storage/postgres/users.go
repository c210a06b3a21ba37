package postgres

import (
	"context"
	"time"

	"github.com/m3rciful/goroute/internal/domain"
)

const userCols = `id, name, phone, aadhar, role, status, joined_at`

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
	if err != nil {
		return domain.User{}, mapErr(err, "user %d not found", id)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if u.JoinedAt.IsZero() {
		u.JoinedAt = time.Now()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userCols+`)
		VALUES (:id, :name, :phone, :aadhar, :role, :status, :joined_at)
		ON CONFLICT (id) DO NOTHING`, u)
	if err != nil {
		return domain.User{}, mapErr(err, "create user %d", u.ID)
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) UpdateProfile(ctx context.Context, id int64, name, aadhar, phone string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = $2, aadhar = $3, phone = $4, status = $5 WHERE id = $1`,
		id, name, aadhar, phone, domain.UserActive)
	if err != nil {
		return mapErr(err, "update profile %d", id)
	}
	return expectOne(res, domain.NotFound("user %d not found", id))
}

func (s *Store) UpdatePhone(ctx context.Context, id int64, phone string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET phone = $2 WHERE id = $1`, id, phone)
	if err != nil {
		return mapErr(err, "update phone %d", id)
	}
	return expectOne(res, domain.NotFound("user %d not found", id))
}

func (s *Store) SetRole(ctx context.Context, id int64, role domain.Role) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return mapErr(err, "set role %d", id)
	}
	return expectOne(res, domain.NotFound("user %d not found", id))
}

func (s *Store) AddFareAlert(ctx context.Context, a domain.FareAlert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO fare_alerts (user_id, origin, destination, alert_time, created_at)
		VALUES (:user_id, :origin, :destination, :alert_time, :created_at)`, a)
	return mapErr(err, "add fare alert")
}

func (s *Store) RecentFareAlerts(ctx context.Context, limit int) ([]domain.FareAlert, error) {
	var out []domain.FareAlert
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, user_id, origin, destination, alert_time, created_at
		FROM fare_alerts ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, mapErr(err, "list fare alerts")
	}
	return out, nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	if err := s.db.GetContext(ctx, &v, `SELECT value FROM settings WHERE key = $1`, key); err != nil {
		return "", mapErr(err, "setting %s is not configured", key)
	}
	return v, nil
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value)
	return mapErr(err, "put setting %s", key)
}
