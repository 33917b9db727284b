package storage

import (
	"context"
	"time"

	"github.com/youssefsiam38/contextfit/types"
)

// Store defines the persistence interface for conversation trajectories
// and compaction bookkeeping.
type Store interface {
	// Trajectory operations
	SaveTrajectory(ctx context.Context, sessionID string, turns []types.Turn) error
	GetTrajectory(ctx context.Context, sessionID string) ([]types.Turn, error)

	// Compaction operations
	SaveCompactionEvent(ctx context.Context, event *CompactionEvent) error
	GetCompactionHistory(ctx context.Context, sessionID string) ([]*CompactionEvent, error)
	// ArchiveTurns stores turns removed by a compaction run, for
	// inspection and reversibility.
	ArchiveTurns(ctx context.Context, compactionEventID string, turns []types.Turn) error
}

// CompactionEvent records one compaction run over a session trajectory.
type CompactionEvent struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	OriginalTokens int       `json:"original_tokens"`
	FittedTokens   int       `json:"fitted_tokens"`
	TurnsBefore    int       `json:"turns_before"`
	TurnsAfter     int       `json:"turns_after"`
	CreatedAt      time.Time `json:"created_at"`
}
