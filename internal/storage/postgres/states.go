package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/domain"
)

// stateStore keeps conversation state in the conversation_state table.
type stateStore struct {
	db *sqlx.DB
}

type stateRow struct {
	Step      string    `db:"step"`
	Payload   []byte    `db:"payload"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (s *stateStore) Get(ctx context.Context, userID int64) (conversation.State, error) {
	var r stateRow
	err := s.db.GetContext(ctx, &r, `SELECT step, payload, updated_at FROM conversation_state WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return conversation.Idle(userID), nil
	}
	if err != nil {
		return conversation.State{}, mapErr(err, "load state of %d", userID)
	}
	step := conversation.Step(r.Step)
	p, err := conversation.Decode(step, r.Payload)
	if err != nil {
		return conversation.State{}, err
	}
	return conversation.State{UserID: userID, Step: step, Payload: p, UpdatedAt: r.UpdatedAt}, nil
}

func (s *stateStore) Set(ctx context.Context, st conversation.State) error {
	if st.IsIdle() {
		return s.Clear(ctx, st.UserID)
	}
	if _, err := conversation.New(st.UserID, st.Step, st.Payload); err != nil {
		return err
	}
	payload, err := conversation.Encode(st.Payload)
	if err != nil {
		return err
	}
	return putState(ctx, s.db, st.UserID, st.Step, payload)
}

func (s *stateStore) Clear(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_state WHERE user_id = $1`, userID)
	return mapErr(err, "clear state of %d", userID)
}

func putState(ctx context.Context, ex sqlx.ExecerContext, userID int64, step conversation.Step, payload []byte) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO conversation_state (user_id, step, payload, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE SET step = EXCLUDED.step, payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		userID, string(step), payload)
	if err != nil {
		return domain.External(err, "save state of %d", userID)
	}
	return nil
}
