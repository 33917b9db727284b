// Package textfit shrinks a single free-text string into a model
// context window using a local BPE tokenizer. It is the synchronous,
// allocation-light counterpart to the turn-based compaction engine,
// used for raw captured command output that never becomes structured
// turns. Safe to call from hot paths.
package textfit

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/youssefsiam38/contextfit/modelinfo"
)

// Marker is the sentinel spliced into text where content was cut. It is
// deliberately distinct from the turn-based compaction marker; consumers
// pattern-match on both.
const Marker = "\n[[ ... Cut to fit Context Window ... ]]\n"

// DefaultSafetyBuffer is the default fraction of the token budget that
// free text may occupy.
const DefaultSafetyBuffer = 0.75

// Fit shrinks content to fit maxTokens scaled by safetyBuffer, cutting
// from the middle and splicing Marker between the kept head and tail
// token runs. Content within budget is returned unchanged, as is
// content with a non-positive effective budget: for raw tool output,
// an unusable budget means "do nothing", not "drop everything".
func Fit(content string, codec tokenizer.Codec, maxTokens int, safetyBuffer float64) string {
	effectiveMax := int(float64(maxTokens) * safetyBuffer)
	if effectiveMax < 1 {
		return content
	}

	ids, _, err := codec.Encode(content)
	if err != nil {
		return content
	}
	if len(ids) <= effectiveMax {
		return content
	}

	markerIDs, _, err := codec.Encode(Marker)
	if err != nil {
		return content
	}

	keep := maxTokens - len(markerIDs)
	if keep < 0 {
		keep = 0
	}
	head := keep / 2
	tail := keep - head
	if head > len(ids) {
		head = len(ids)
	}
	if tail > len(ids) {
		tail = len(ids)
	}

	cut := make([]uint, 0, head+len(markerIDs)+tail)
	cut = append(cut, ids[:head]...)
	cut = append(cut, markerIDs...)
	cut = append(cut, ids[len(ids)-tail:]...)

	out, err := codec.Decode(cut)
	if err != nil {
		return content
	}
	return out
}

// Config is the immutable configuration for the config-driven fitting
// path: the active model, its context window and the safety buffer.
// Construct it once at the process boundary instead of reading ambient
// global state.
type Config struct {
	// Model is the model identifier, used for both the tokenizer
	// encoding lookup and, when ContextWindow is zero, the window
	// lookup.
	Model string

	// ContextWindow is the token budget. Zero means "look it up from
	// the model"; still-unknown windows leave content untouched.
	ContextWindow int

	// SafetyBuffer scales the window down. Zero means
	// DefaultSafetyBuffer.
	SafetyBuffer float64
}

// FitMessage shrinks content into the configured model's context
// window. Empty content, an unknown model encoding, or an unknown
// window leave the content unchanged.
func (c Config) FitMessage(content string) string {
	if content == "" {
		return content
	}

	window := c.ContextWindow
	if window == 0 {
		window = modelinfo.ContextWindow(c.Model)
	}
	if window <= 0 {
		return content
	}

	codec, err := lookupCodec(c.Model)
	if err != nil {
		return content
	}

	buffer := c.SafetyBuffer
	if buffer == 0 {
		buffer = DefaultSafetyBuffer
	}
	return Fit(content, codec, window, buffer)
}

// codecCache caches tokenizer codecs per model; initialization parses
// the BPE vocabulary and is not free.
var codecCache sync.Map

// lookupCodec returns the tokenizer codec for the given model,
// defaulting to o200k_base for unknown model families.
func lookupCodec(model string) (tokenizer.Codec, error) {
	if cached, ok := codecCache.Load(model); ok {
		return cached.(tokenizer.Codec), nil
	}

	var enc tokenizer.Codec
	var err error

	name := modelinfo.Normalize(model)
	switch {
	case strings.HasPrefix(name, "gpt-4o"), strings.HasPrefix(name, "gpt-4.1"):
		enc, err = tokenizer.ForModel(tokenizer.GPT4o)
	case strings.HasPrefix(name, "gpt-4"):
		enc, err = tokenizer.ForModel(tokenizer.GPT4)
	case strings.HasPrefix(name, "gpt-3.5"):
		enc, err = tokenizer.ForModel(tokenizer.GPT35Turbo)
	default:
		// o200k_base is the most common encoding for modern models.
		enc, err = tokenizer.Get(tokenizer.O200kBase)
	}
	if err != nil {
		return nil, err
	}

	actual, _ := codecCache.LoadOrStore(model, enc)
	return actual.(tokenizer.Codec), nil
}
