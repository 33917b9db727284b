package compaction

import (
	"context"

	"github.com/youssefsiam38/contextfit/types"
)

// MarkerText is the sentinel spliced into turn content where text was
// removed. Consumers pattern-match on it; do not change without
// updating them. The free-text path (package textfit) deliberately
// uses a different marker.
const MarkerText = "[[ cut for context size ]]"

// countTurn counts a single turn through the configured counter.
func (f *Fitter) countTurn(ctx context.Context, turn types.Turn) (int, error) {
	return f.counter.Count(ctx, []types.Turn{turn})
}

// emptiedTurn returns a same-kind turn with all text removed.
func emptiedTurn(turn types.Turn) types.Turn {
	return types.NewTextTurn(turn.Kind, "")
}

// spliceRunes builds text[:k] + marker + text[len-k:]. Content shorter
// than 2k is returned whole: the splice would only duplicate it.
func spliceRunes(runes []rune, k int, marker string) string {
	if k*2 >= len(runes) {
		return string(runes)
	}
	return string(runes[:k]) + marker + string(runes[len(runes)-k:])
}

// largestFittingWidth binary-searches the largest crop width k in
// [0, hi] whose candidate turn counts at most tokenCap tokens. Token
// count is assumed monotonically non-decreasing in k. Returns ok=false
// when not even k=0 fits.
func (f *Fitter) largestFittingWidth(ctx context.Context, build func(k int) types.Turn, hi, tokenCap int) (int, bool, error) {
	fits := func(k int) (bool, error) {
		n, err := f.countTurn(ctx, build(k))
		if err != nil {
			return false, err
		}
		return n <= tokenCap, nil
	}

	ok, err := fits(0)
	if err != nil || !ok {
		return 0, false, err
	}

	lo := 0
	for lo < hi {
		mid := (lo + hi + 1) / 2
		ok, err := fits(mid)
		if err != nil {
			return 0, false, err
		}
		if ok {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, true, nil
}

// cropTurn shrinks one turn's flattened textual content to fit
// tokenCap, splicing MarkerText between a prefix and a suffix of the
// original text. All part structure beyond the flattened text is
// discarded; tool-return structure goes through cropToolReturns
// instead.
func (f *Fitter) cropTurn(ctx context.Context, turn types.Turn, tokenCap int) (types.Turn, error) {
	if tokenCap <= 0 {
		return emptiedTurn(turn), nil
	}

	n, err := f.countTurn(ctx, turn)
	if err != nil {
		return types.Turn{}, err
	}
	if n <= tokenCap {
		return turn, nil
	}

	markerOnly := types.NewTextTurn(turn.Kind, MarkerText)
	mn, err := f.countTurn(ctx, markerOnly)
	if err != nil {
		return types.Turn{}, err
	}
	if mn > tokenCap {
		// Never emit a truncation marker that itself overflows the cap.
		return emptiedTurn(turn), nil
	}

	runes := []rune(turn.Text())
	build := func(k int) types.Turn {
		return types.NewTextTurn(turn.Kind, spliceRunes(runes, k, MarkerText))
	}
	k, ok, err := f.largestFittingWidth(ctx, build, len(runes)/2, tokenCap)
	if err != nil {
		return types.Turn{}, err
	}
	if !ok {
		return emptiedTurn(turn), nil
	}
	return build(k), nil
}

// cropToolReturns shrinks only the payloads of tool-return parts inside
// a request turn, preserving call/return identity. A single shared crop
// width applies uniformly to every return, so all returns within the
// turn shrink proportionally rather than favoring one tool call.
func (f *Fitter) cropToolReturns(ctx context.Context, turn types.Turn, tokenCap int) (types.Turn, error) {
	if !turn.HasToolReturns() {
		return f.cropTurn(ctx, turn, tokenCap)
	}

	n, err := f.countTurn(ctx, turn)
	if err != nil {
		return types.Turn{}, err
	}
	if n <= tokenCap {
		return turn, nil
	}

	if tokenCap <= 0 {
		return emptyToolReturns(turn), nil
	}

	hi := 0
	for _, p := range turn.Parts {
		if p.Type == types.PartTypeToolReturn {
			if half := len([]rune(p.ToolContent)) / 2; half > hi {
				hi = half
			}
		}
	}

	build := func(k int) types.Turn {
		out := turn.Clone()
		for i, p := range out.Parts {
			if p.Type == types.PartTypeToolReturn {
				out.Parts[i].ToolContent = spliceRunes([]rune(p.ToolContent), k, MarkerText)
			}
		}
		return out
	}
	k, ok, err := f.largestFittingWidth(ctx, build, hi, tokenCap)
	if err != nil {
		return types.Turn{}, err
	}
	if !ok {
		return emptyToolReturns(turn), nil
	}
	return build(k), nil
}

// emptyToolReturns empties every tool-return payload in the turn,
// preserving call IDs and tool names.
func emptyToolReturns(turn types.Turn) types.Turn {
	out := turn.Clone()
	for i, p := range out.Parts {
		if p.Type == types.PartTypeToolReturn {
			out.Parts[i].ToolContent = ""
			out.Parts[i].IsError = false
		}
	}
	return out
}

// cropDispatch routes a turn to the tool-return cropper when it carries
// tool returns and to the generic cropper otherwise.
func (f *Fitter) cropDispatch(ctx context.Context, turn types.Turn, tokenCap int) (types.Turn, error) {
	if turn.Kind == types.KindRequest && turn.HasToolReturns() {
		return f.cropToolReturns(ctx, turn, tokenCap)
	}
	return f.cropTurn(ctx, turn, tokenCap)
}

// forceFit fits a single turn into the cap no matter what. Tool returns
// are stripped outright: by construction their calls are no longer
// present, so they cannot be kept. Always returns exactly one turn, so
// callers never re-trigger orphan logic on an empty sequence.
func (f *Fitter) forceFit(ctx context.Context, turn types.Turn, tokenCap int) ([]types.Turn, error) {
	if turn.Kind == types.KindRequest && turn.HasToolReturns() {
		var kept []types.Part
		for _, p := range turn.Parts {
			if p.Type != types.PartTypeToolReturn {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			return []types.Turn{types.NewTextTurn(types.KindRequest, "")}, nil
		}
		turn = types.Turn{Kind: types.KindRequest, Parts: kept}
	}

	cropped, err := f.cropDispatch(ctx, turn, tokenCap)
	if err != nil {
		return nil, err
	}
	return []types.Turn{cropped}, nil
}
