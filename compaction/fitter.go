package compaction

import (
	"context"
	"log"
	"slices"
	"time"

	"github.com/youssefsiam38/contextfit/types"
)

// FallbackNoticeText is the content of the single response turn
// returned when every compaction tier failed to keep anything.
const FallbackNoticeText = "Previous conversation history was removed because it no longer fit the model context window."

// Fitter compacts a conversation trajectory into a token budget. It
// holds no mutable state between calls and is safe for concurrent use
// as long as the counter is.
type Fitter struct {
	counter TokenCounter
	cfg     Config
}

// NewFitter creates a Fitter with the given counter and configuration.
// Zero config fields are filled with defaults.
func NewFitter(counter TokenCounter, cfg Config) *Fitter {
	cfg.ApplyDefaults()
	return &Fitter{counter: counter, cfg: cfg}
}

// FitTurns reduces turns to fit the working budget derived from the
// configured model's context window. The input is never mutated; the
// returned slice shares turns with the input only where they survived
// unchanged. The operation is deterministic and idempotent: applying it
// to its own output returns the identical sequence.
//
// When the counter is unconfigured or the model's window is unknown,
// the input is returned unchanged.
func (f *Fitter) FitTurns(ctx context.Context, turns []types.Turn) ([]types.Turn, error) {
	budget := f.cfg.Budget()
	if budget <= 0 {
		return turns, nil
	}

	total, err := f.counter.Count(ctx, turns)
	if err != nil {
		return nil, WrapError("FitTurns", err)
	}
	if total == CountUnavailable {
		log.Printf("contextfit/compaction: token counter unavailable, returning %d turns unchanged", len(turns))
		return turns, nil
	}
	if total <= budget {
		return turns, nil
	}

	out := slices.Clone(turns)

	// Per-turn caps on the two newest turns: they carry the active task
	// context and must retain the most detail.
	newestCap := int(float64(budget) * f.cfg.NewestShare)
	secondCap := int(float64(budget) * f.cfg.SecondNewestShare)
	if len(out) >= 1 {
		if out[len(out)-1], err = f.cropDispatch(ctx, out[len(out)-1], newestCap); err != nil {
			return nil, WrapError("FitTurns", err)
		}
	}
	if len(out) >= 2 {
		if out[len(out)-2], err = f.cropDispatch(ctx, out[len(out)-2], secondCap); err != nil {
			return nil, WrapError("FitTurns", err)
		}
	}

	total, err = f.counter.Count(ctx, out)
	if err != nil {
		return nil, WrapError("FitTurns", err)
	}

	if total > budget {
		if out, total, err = f.shrinkFromOldest(ctx, out, budget, total); err != nil {
			return nil, WrapError("FitTurns", err)
		}
	}
	if total > budget {
		if out, total, err = f.dropFromOldest(ctx, out, budget, total); err != nil {
			return nil, WrapError("FitTurns", err)
		}
	}

	// Cropping and dropping can themselves orphan a tool return, so
	// orphan removal runs on every trimming path.
	out = RemoveOrphanedToolReturns(out)

	total, err = f.counter.Count(ctx, out)
	if err != nil {
		return nil, WrapError("FitTurns", err)
	}
	if total > budget {
		if len(out) > 0 {
			if out, err = f.forceFit(ctx, out[len(out)-1], budget); err != nil {
				return nil, WrapError("FitTurns", err)
			}
		} else if out, err = f.salvage(ctx, turns, budget); err != nil {
			return nil, WrapError("FitTurns", err)
		}
	}

	if len(out) == 0 && len(turns) > 0 {
		out = []types.Turn{types.NewTextTurn(types.KindResponse, FallbackNoticeText)}
	}

	return out, nil
}

// shrinkFromOldest redistributes the budget by cropping turns starting
// from the oldest: each turn gets whatever the rest of the sequence
// leaves over. Greedy and one-pass, so the total is monotonically
// non-increasing and the pass terminates in O(n) cropping operations.
func (f *Fitter) shrinkFromOldest(ctx context.Context, turns []types.Turn, budget, total int) ([]types.Turn, int, error) {
	if total <= budget {
		return turns, total, nil
	}

	out := slices.Clone(turns)
	for i := range out {
		others := make([]types.Turn, 0, len(out)-1)
		others = append(others, out[:i]...)
		others = append(others, out[i+1:]...)
		otherTokens, err := f.counter.Count(ctx, others)
		if err != nil {
			return nil, 0, err
		}

		capForThis := budget - otherTokens
		if capForThis < 0 {
			capForThis = 0
		}
		if out[i], err = f.cropDispatch(ctx, out[i], capForThis); err != nil {
			return nil, 0, err
		}

		if total, err = f.counter.Count(ctx, out); err != nil {
			return nil, 0, err
		}
		if total <= budget {
			return out, total, nil
		}
	}

	if len(out) == 1 && total > budget {
		var err error
		if out[0], err = f.cropDispatch(ctx, out[0], budget); err != nil {
			return nil, 0, err
		}
		if total, err = f.counter.Count(ctx, out); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// dropFromOldest removes whole turns from the front until the budget is
// met. The last survivor is force-fitted instead of dropped. Pacing
// between iterations is cooperative and honors cancellation.
func (f *Fitter) dropFromOldest(ctx context.Context, turns []types.Turn, budget, total int) ([]types.Turn, int, error) {
	out := turns
	for total > budget && len(out) > 1 {
		out = out[1:]
		if err := f.pace(ctx); err != nil {
			return nil, 0, err
		}
		var err error
		if total, err = f.counter.Count(ctx, out); err != nil {
			return nil, 0, err
		}
	}

	if total > budget && len(out) == 1 {
		forced, err := f.forceFit(ctx, out[0], budget)
		if err != nil {
			return nil, 0, err
		}
		out = forced
		if total, err = f.counter.Count(ctx, out); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// salvage is the last-resort degradation over the original,
// pre-compaction input: keep the newest <=3 turns, remove orphans, and
// cap them at 50/25/10% of the budget from newest backwards.
func (f *Fitter) salvage(ctx context.Context, original []types.Turn, budget int) ([]types.Turn, error) {
	n := min(3, len(original))
	if n == 0 {
		return nil, nil
	}
	tail := slices.Clone(original[len(original)-n:])
	tail = RemoveOrphanedToolReturns(tail)

	var err error
	for i := 0; i < len(tail) && i < len(salvageShares); i++ {
		idx := len(tail) - 1 - i
		tierCap := int(float64(budget) * salvageShares[i])
		if tail[idx], err = f.cropDispatch(ctx, tail[idx], tierCap); err != nil {
			return nil, err
		}
	}
	return tail, nil
}

// pace sleeps for the configured pacing delay without blocking
// unrelated callers, returning early on cancellation.
func (f *Fitter) pace(ctx context.Context) error {
	if f.cfg.PacingDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(f.cfg.PacingDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
