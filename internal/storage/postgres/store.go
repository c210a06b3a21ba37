// Package postgres implements storage.Store on sqlx and lib/pq. Compound
// operations run in one transaction and gate every transition on the
// current row status.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/goroute/core/logger"
	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/storage"
)

type Store struct {
	db     *sqlx.DB
	states *stateStore
}

var _ storage.Store = (*Store)(nil)

func New(db *sqlx.DB) *Store {
	return &Store{db: db, states: &stateStore{db: db}}
}

func (s *Store) States() conversation.Store { return s.states }

// withTx runs fn in a transaction and commits when fn returns nil.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) (err error) {
	start := time.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.External(err, "%s: begin", op)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.Warn(ctx, logger.CompDB, "tx.rollback",
					slog.String("op", op),
					logger.Err(rbErr),
				)
			}
		}
		logger.Debug(ctx, logger.CompDB, "tx",
			slog.String("status", logger.Status(err)),
			slog.String("op", op),
			slog.Duration("duration", logger.Took(start)),
		)
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return domain.External(err, "%s: commit", op)
	}
	return nil
}

const uniqueViolation = "23505"

// mapErr turns driver errors into domain kinds. Domain errors pass through.
func mapErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(format, args...)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return domain.Wrap(domain.KindConflict, err, format, args...)
	}
	return domain.External(err, "%s", fmt.Sprintf(format, args...))
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return domain.External(err, "rows affected")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// prefixCols qualifies a comma separated column list with alias.
func prefixCols(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
