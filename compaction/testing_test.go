package compaction

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/youssefsiam38/contextfit/types"
)

// charCounter counts one token per character of textual content. It is
// deterministic and monotone in content length, which makes binary
// search outcomes predictable in tests.
type charCounter struct{}

func (charCounter) Count(_ context.Context, turns []types.Turn) (int, error) {
	total := 0
	for _, turn := range turns {
		for _, p := range turn.Parts {
			switch p.Type {
			case types.PartTypeToolReturn:
				total += len(p.ToolContent)
			case types.PartTypeToolCall:
				// calls carry no free text
			default:
				total += len(p.Text)
			}
		}
	}
	return total, nil
}

// unavailableCounter simulates an unconfigured counter.
type unavailableCounter struct{}

func (unavailableCounter) Count(context.Context, []types.Turn) (int, error) {
	return CountUnavailable, nil
}

// failingCounter simulates a counting endpoint failure.
type failingCounter struct{}

func (failingCounter) Count(context.Context, []types.Turn) (int, error) {
	return 0, errors.New("counting endpoint unreachable")
}

// newTestFitter builds a fitter against a fake 1-char-per-token counter
// and the given window limit, with safety buffer 1.0 and near-zero
// pacing.
func newTestFitter(limit int) *Fitter {
	return newTestFitterWith(charCounter{}, limit)
}

func newTestFitterWith(counter TokenCounter, limit int) *Fitter {
	return NewFitter(counter, Config{
		Model:               "test-model",
		ContextWindowLimits: map[string]int{"test-model": limit},
		SafetyBuffer:        1.0,
		PacingDelay:         time.Nanosecond,
	})
}

func textResp(s string) types.Turn {
	return types.NewTextTurn(types.KindResponse, s)
}

func userReq(s string) types.Turn {
	return types.NewTextTurn(types.KindRequest, s)
}

func toolCallResp(id string) types.Turn {
	return types.Turn{Kind: types.KindResponse, Parts: []types.Part{
		{Type: types.PartTypeToolCall, ToolCallID: id, ToolName: "dummy", ToolArgs: []byte(`{}`)},
	}}
}

func toolReturnReq(id, content string) types.Turn {
	return types.Turn{Kind: types.KindRequest, Parts: []types.Part{
		{Type: types.PartTypeToolReturn, ToolCallID: id, ToolName: "dummy", ToolContent: content},
	}}
}

func hasMarker(turn types.Turn) bool {
	for _, p := range turn.Parts {
		if strings.Contains(p.Text, MarkerText) || strings.Contains(p.ToolContent, MarkerText) {
			return true
		}
	}
	return false
}

func hasToolReturns(turns []types.Turn) bool {
	for _, turn := range turns {
		if turn.HasToolReturns() {
			return true
		}
	}
	return false
}
