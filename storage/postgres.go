package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/youssefsiam38/contextfit/types"
)

// Schema is the DDL for the tables used by PostgresStore. Apply it once
// per database; every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS contextfit_trajectories (
	session_id TEXT PRIMARY KEY,
	turns      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS contextfit_compaction_events (
	id              TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	original_tokens INTEGER NOT NULL,
	fitted_tokens   INTEGER NOT NULL,
	turns_before    INTEGER NOT NULL,
	turns_after     INTEGER NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_contextfit_compaction_events_session
	ON contextfit_compaction_events (session_id, created_at);

CREATE TABLE IF NOT EXISTS contextfit_turn_archive (
	id                  BIGSERIAL PRIMARY KEY,
	compaction_event_id TEXT NOT NULL,
	position            INTEGER NOT NULL,
	turn                JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contextfit_turn_archive_event
	ON contextfit_turn_archive (compaction_event_id);
`

// txContextKey is the context key for storing pgx.Tx
type txContextKey struct{}

// WithTx returns a new context with the given transaction
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext retrieves the transaction from context, or nil if not present
func TxFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// querier is a common interface for pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using PostgreSQL with pgx
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore on the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// CreateSchema applies the Schema DDL.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// getQuerier returns the transaction from context if present, otherwise the pool.
func (s *PostgresStore) getQuerier(ctx context.Context) querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

// SaveTrajectory upserts the full turn sequence for a session.
func (s *PostgresStore) SaveTrajectory(ctx context.Context, sessionID string, turns []types.Turn) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}

	turnsJSON, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to marshal turns: %w", err)
	}

	query := `
		INSERT INTO contextfit_trajectories (session_id, turns, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (session_id) DO UPDATE SET turns = EXCLUDED.turns, updated_at = NOW()
	`
	if _, err := s.getQuerier(ctx).Exec(ctx, query, sessionID, turnsJSON); err != nil {
		return fmt.Errorf("failed to save trajectory: %w", err)
	}
	return nil
}

// GetTrajectory returns the stored turn sequence for a session, or an
// empty sequence when none is stored.
func (s *PostgresStore) GetTrajectory(ctx context.Context, sessionID string) ([]types.Turn, error) {
	query := `SELECT turns FROM contextfit_trajectories WHERE session_id = $1`

	var turnsJSON []byte
	err := s.getQuerier(ctx).QueryRow(ctx, query, sessionID).Scan(&turnsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trajectory: %w", err)
	}

	var turns []types.Turn
	if err := json.Unmarshal(turnsJSON, &turns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal turns: %w", err)
	}
	return turns, nil
}

// SaveCompactionEvent persists one compaction event.
func (s *PostgresStore) SaveCompactionEvent(ctx context.Context, event *CompactionEvent) error {
	query := `
		INSERT INTO contextfit_compaction_events
			(id, session_id, original_tokens, fitted_tokens, turns_before, turns_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err := s.getQuerier(ctx).Exec(ctx, query,
		event.ID, event.SessionID, event.OriginalTokens, event.FittedTokens,
		event.TurnsBefore, event.TurnsAfter)
	if err != nil {
		return fmt.Errorf("failed to save compaction event: %w", err)
	}
	return nil
}

// GetCompactionHistory returns all compaction events for a session,
// oldest first.
func (s *PostgresStore) GetCompactionHistory(ctx context.Context, sessionID string) ([]*CompactionEvent, error) {
	query := `
		SELECT id, session_id, original_tokens, fitted_tokens, turns_before, turns_after, created_at
		FROM contextfit_compaction_events
		WHERE session_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.getQuerier(ctx).Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get compaction history: %w", err)
	}
	defer rows.Close()

	var events []*CompactionEvent
	for rows.Next() {
		var event CompactionEvent
		if err := rows.Scan(
			&event.ID, &event.SessionID, &event.OriginalTokens, &event.FittedTokens,
			&event.TurnsBefore, &event.TurnsAfter, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan compaction event: %w", err)
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// ArchiveTurns stores turns removed by a compaction run.
func (s *PostgresStore) ArchiveTurns(ctx context.Context, compactionEventID string, turns []types.Turn) error {
	q := s.getQuerier(ctx)
	query := `
		INSERT INTO contextfit_turn_archive (compaction_event_id, position, turn)
		VALUES ($1, $2, $3)
	`
	for i, turn := range turns {
		turnJSON, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("failed to marshal turn %d: %w", i, err)
		}
		if _, err := q.Exec(ctx, query, compactionEventID, i, turnJSON); err != nil {
			return fmt.Errorf("failed to archive turn %d: %w", i, err)
		}
	}
	return nil
}
