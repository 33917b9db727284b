package compaction

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/contextfit/storage"
	"github.com/youssefsiam38/contextfit/types"
)

// Recorder runs the fitter over a session trajectory and records the
// outcome through a storage.Store: the fitted trajectory, a compaction
// event, and an archive of the turns dropped from the front.
type Recorder struct {
	fitter *Fitter
	store  storage.Store
}

// NewRecorder creates a Recorder around the given fitter and store.
func NewRecorder(fitter *Fitter, store storage.Store) *Recorder {
	return &Recorder{fitter: fitter, store: store}
}

// FitSession loads the session trajectory, fits it, and persists the
// result. When fitting changed nothing, no event is recorded. Returns
// the fitted trajectory.
func (r *Recorder) FitSession(ctx context.Context, sessionID string) ([]types.Turn, error) {
	turns, err := r.store.GetTrajectory(ctx, sessionID)
	if err != nil {
		return nil, NewError("FitSession", fmt.Errorf("%w: %v", ErrStorageError, err)).WithSession(sessionID)
	}
	return r.FitAndRecord(ctx, sessionID, turns)
}

// FitAndRecord fits the given trajectory and persists the result under
// the session.
func (r *Recorder) FitAndRecord(ctx context.Context, sessionID string, turns []types.Turn) ([]types.Turn, error) {
	originalTokens, err := r.fitter.counter.Count(ctx, turns)
	if err != nil {
		return nil, WrapError("FitAndRecord", err)
	}

	fitted, err := r.fitter.FitTurns(ctx, turns)
	if err != nil {
		return nil, err
	}
	if types.EqualTurns(fitted, turns) {
		return fitted, nil
	}

	fittedTokens, err := r.fitter.counter.Count(ctx, fitted)
	if err != nil {
		return nil, WrapError("FitAndRecord", err)
	}

	event := &storage.CompactionEvent{
		ID:             uuid.New().String(),
		SessionID:      sessionID,
		OriginalTokens: originalTokens,
		FittedTokens:   fittedTokens,
		TurnsBefore:    len(turns),
		TurnsAfter:     len(fitted),
		CreatedAt:      time.Now(),
	}
	if err := r.store.SaveCompactionEvent(ctx, event); err != nil {
		return nil, NewError("FitAndRecord", fmt.Errorf("%w: %v", ErrStorageError, err)).WithSession(sessionID)
	}

	// Only whole turns removed from the front are archived; cropped
	// survivors keep their marker as the in-band record of the cut.
	if dropped := len(turns) - len(fitted); dropped > 0 {
		if err := r.store.ArchiveTurns(ctx, event.ID, turns[:dropped]); err != nil {
			return nil, NewError("FitAndRecord", fmt.Errorf("%w: %v", ErrStorageError, err)).WithSession(sessionID)
		}
	}

	if err := r.store.SaveTrajectory(ctx, sessionID, fitted); err != nil {
		return nil, NewError("FitAndRecord", fmt.Errorf("%w: %v", ErrStorageError, err)).WithSession(sessionID)
	}

	log.Printf("contextfit/compaction: session %s fitted %d -> %d turns, %d -> %d tokens",
		sessionID, len(turns), len(fitted), originalTokens, fittedTokens)
	return fitted, nil
}
