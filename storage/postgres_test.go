package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/youssefsiam38/contextfit/internal/testutil"
	"github.com/youssefsiam38/contextfit/types"
)

func setupStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()

	db := testutil.NewTestDB(t)
	t.Cleanup(db.Close)

	ctx := context.Background()
	store := NewPostgresStore(db.Pool)
	if err := store.CreateSchema(ctx); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	if err := db.CleanTables(ctx); err != nil {
		t.Fatalf("Failed to clean tables: %v", err)
	}
	return store, ctx
}

func TestPostgresStore_TrajectoryRoundTrip(t *testing.T) {
	store, ctx := setupStore(t)
	sessionID := uuid.New().String()

	turns := []types.Turn{
		types.NewTextTurn(types.KindRequest, "summarize the repo"),
		{Kind: types.KindResponse, Parts: []types.Part{
			{Type: types.PartTypeToolCall, ToolCallID: "c1", ToolName: "list_files", ToolArgs: []byte(`{"path":"."}`)},
		}},
		{Kind: types.KindRequest, Parts: []types.Part{
			{Type: types.PartTypeToolReturn, ToolCallID: "c1", ToolName: "list_files", ToolContent: "main.go\nREADME.md", IsError: false},
		}},
	}

	if err := store.SaveTrajectory(ctx, sessionID, turns); err != nil {
		t.Fatalf("SaveTrajectory failed: %v", err)
	}

	got, err := store.GetTrajectory(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetTrajectory failed: %v", err)
	}
	if !types.EqualTurns(got, turns) {
		t.Errorf("round trip changed the trajectory: %+v", got)
	}
}

func TestPostgresStore_SaveTrajectoryUpserts(t *testing.T) {
	store, ctx := setupStore(t)
	sessionID := uuid.New().String()

	first := []types.Turn{types.NewTextTurn(types.KindRequest, "v1")}
	second := []types.Turn{types.NewTextTurn(types.KindRequest, "v2"), types.NewTextTurn(types.KindResponse, "ok")}

	if err := store.SaveTrajectory(ctx, sessionID, first); err != nil {
		t.Fatalf("SaveTrajectory failed: %v", err)
	}
	if err := store.SaveTrajectory(ctx, sessionID, second); err != nil {
		t.Fatalf("SaveTrajectory upsert failed: %v", err)
	}

	got, err := store.GetTrajectory(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetTrajectory failed: %v", err)
	}
	if !types.EqualTurns(got, second) {
		t.Errorf("upsert did not replace the trajectory: %+v", got)
	}
}

func TestPostgresStore_SaveTrajectoryRequiresSession(t *testing.T) {
	store, ctx := setupStore(t)
	if err := store.SaveTrajectory(ctx, "", nil); err == nil {
		t.Error("expected error for empty session_id")
	}
}

func TestPostgresStore_GetTrajectoryMissing(t *testing.T) {
	store, ctx := setupStore(t)

	got, err := store.GetTrajectory(ctx, uuid.New().String())
	if err != nil {
		t.Fatalf("GetTrajectory failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown session, got %+v", got)
	}
}

func TestPostgresStore_CompactionHistory(t *testing.T) {
	store, ctx := setupStore(t)
	sessionID := uuid.New().String()

	first := &CompactionEvent{
		ID:             uuid.New().String(),
		SessionID:      sessionID,
		OriginalTokens: 5000,
		FittedTokens:   900,
		TurnsBefore:    40,
		TurnsAfter:     12,
	}
	second := &CompactionEvent{
		ID:             uuid.New().String(),
		SessionID:      sessionID,
		OriginalTokens: 1800,
		FittedTokens:   950,
		TurnsBefore:    20,
		TurnsAfter:     15,
	}

	if err := store.SaveCompactionEvent(ctx, first); err != nil {
		t.Fatalf("SaveCompactionEvent failed: %v", err)
	}
	if err := store.SaveCompactionEvent(ctx, second); err != nil {
		t.Fatalf("SaveCompactionEvent failed: %v", err)
	}

	// Unrelated session noise.
	other := &CompactionEvent{ID: uuid.New().String(), SessionID: uuid.New().String()}
	if err := store.SaveCompactionEvent(ctx, other); err != nil {
		t.Fatalf("SaveCompactionEvent failed: %v", err)
	}

	events, err := store.GetCompactionHistory(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetCompactionHistory failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID != first.ID || events[1].ID != second.ID {
		t.Error("events not returned oldest first")
	}
	if events[0].OriginalTokens != 5000 || events[0].FittedTokens != 900 {
		t.Errorf("event fields lost: %+v", events[0])
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}
}

func TestPostgresStore_ArchiveTurns(t *testing.T) {
	store, ctx := setupStore(t)
	eventID := uuid.New().String()

	turns := []types.Turn{
		types.NewTextTurn(types.KindRequest, "dropped one"),
		types.NewTextTurn(types.KindResponse, "dropped two"),
	}
	if err := store.ArchiveTurns(ctx, eventID, turns); err != nil {
		t.Fatalf("ArchiveTurns failed: %v", err)
	}

	rows, err := store.pool.Query(ctx,
		`SELECT position, turn FROM contextfit_turn_archive WHERE compaction_event_id = $1 ORDER BY position`,
		eventID)
	if err != nil {
		t.Fatalf("query archive failed: %v", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var position int
		var turnJSON []byte
		if err := rows.Scan(&position, &turnJSON); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if position != count {
			t.Errorf("position = %d, want %d", position, count)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows error: %v", err)
	}
	if count != 2 {
		t.Errorf("archived %d turns, want 2", count)
	}
}

func TestPostgresStore_TransactionFromContext(t *testing.T) {
	store, ctx := setupStore(t)
	sessionID := uuid.New().String()

	tx, err := store.pool.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tx.Rollback(ctx)

	txCtx := WithTx(ctx, tx)
	turns := []types.Turn{types.NewTextTurn(types.KindRequest, "inside tx")}
	if err := store.SaveTrajectory(txCtx, sessionID, turns); err != nil {
		t.Fatalf("SaveTrajectory in tx failed: %v", err)
	}

	// Visible inside the transaction, invisible outside before commit.
	got, err := store.GetTrajectory(txCtx, sessionID)
	if err != nil {
		t.Fatalf("GetTrajectory in tx failed: %v", err)
	}
	if !types.EqualTurns(got, turns) {
		t.Error("trajectory not visible inside the transaction")
	}

	outside, err := store.GetTrajectory(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetTrajectory outside tx failed: %v", err)
	}
	if outside != nil {
		t.Error("uncommitted trajectory visible outside the transaction")
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	committed, err := store.GetTrajectory(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetTrajectory after commit failed: %v", err)
	}
	if !types.EqualTurns(committed, turns) {
		t.Error("committed trajectory not visible")
	}
}
