package compaction

import (
	"github.com/youssefsiam38/contextfit/types"
)

// RemovedNoticeText is the placeholder content left where a turn
// consisted solely of orphaned tool returns.
const RemovedNoticeText = "(tool output removed to fit context)"

// RemoveOrphanedToolReturns enforces that every tool-return part has a
// preceding tool call with the same ID in the surviving sequence. A
// single left-to-right pass maintains the set of call IDs seen so far;
// only response turns introduce call IDs. A request turn reduced to
// nothing becomes a placeholder request turn carrying RemovedNoticeText,
// preserving position and count for callers indexing into the sequence.
// Duplicate returns for an already-seen call ID are kept as-is.
func RemoveOrphanedToolReturns(turns []types.Turn) []types.Turn {
	seen := make(map[string]bool)
	out := make([]types.Turn, 0, len(turns))

	for _, turn := range turns {
		if turn.Kind == types.KindResponse {
			for _, id := range turn.ToolCallIDs() {
				seen[id] = true
			}
			out = append(out, turn)
			continue
		}

		if !turn.HasToolReturns() {
			out = append(out, turn)
			continue
		}

		kept := make([]types.Part, 0, len(turn.Parts))
		dropped := false
		for _, p := range turn.Parts {
			if p.Type == types.PartTypeToolReturn && !seen[p.ToolCallID] {
				dropped = true
				continue
			}
			kept = append(kept, p)
		}

		switch {
		case !dropped:
			out = append(out, turn)
		case len(kept) == 0:
			out = append(out, types.NewTextTurn(types.KindRequest, RemovedNoticeText))
		default:
			out = append(out, types.Turn{Kind: turn.Kind, Parts: kept})
		}
	}

	return out
}
