// Package compaction fits a bounded conversation trajectory into a
// model's context window.
//
// A growing multi-turn agent trajectory, with tool invocations and
// their sometimes large outputs, eventually exceeds the token budget a
// model accepts per call. The Fitter reduces a turn sequence so that it
// (a) fits the budget, (b) keeps every tool return paired with its
// originating tool call, (c) keeps maximum detail on the most recent
// turns, and (d) degrades gracefully instead of failing.
//
// # Pipeline
//
// FitTurns runs a fixed sequence of passes, each engaged only when the
// previous one left the trajectory over budget:
//
//  1. Short-circuit: counter unavailable, window unknown, or the
//     sequence already fits.
//  2. Per-turn caps: the newest turn is cropped to 60% of the budget,
//     the second-newest to 30%.
//  3. Oldest-first shrink: every turn, starting from the oldest, is
//     cropped to whatever the rest of the sequence leaves over.
//  4. Oldest-drop: whole turns are removed from the front; the last
//     survivor is force-fitted rather than dropped.
//  5. Orphan removal: tool returns whose call was cropped or dropped
//     away are removed or replaced by placeholder turns.
//  6. Recheck: force-fit the newest survivor, salvage the newest three
//     turns of the original input, or fall back to a single fixed
//     notice turn.
//
// Cropped content is replaced by MarkerText spliced between a prefix
// and a suffix of the original text, found by binary search over the
// crop width against the token counter.
//
// The operation is deterministic and idempotent: re-running it on its
// own output returns the identical sequence, because every decision is
// computed against a hard cap and content at or below a cap is never
// touched again.
//
// # Token counting
//
// Counting is delegated to a TokenCounter. APICounter uses Claude's
// token counting API for counts that match what the provider will
// charge against the window; ApproxCounter estimates offline at ~4
// characters per token. An unconfigured counter reports
// CountUnavailable and the fitter returns the input unchanged.
//
// # Concurrency
//
// A Fitter holds no mutable state; each call runs its passes
// sequentially because later cropping decisions depend on earlier
// totals. The only suspension points are counter calls and the
// cooperative pacing delay between drop iterations. Cancellation is the
// caller's responsibility via the context.
package compaction
