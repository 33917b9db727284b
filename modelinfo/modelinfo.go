// Package modelinfo maps model identifiers to known context window
// sizes. Unknown models report 0, which callers treat as "do nothing".
package modelinfo

import "strings"

// contextWindows maps model identifier prefixes to context window
// sizes in tokens. Longest prefix wins. Provider prefixes of the form
// "provider:model" are stripped before matching.
var contextWindows = map[string]int{
	"claude-3":         200_000,
	"claude-3-5":       200_000,
	"claude-3-7":       200_000,
	"claude-opus-4":    200_000,
	"claude-sonnet-4":  200_000,
	"claude-haiku-4":   200_000,
	"gpt-3.5":          16_385,
	"gpt-4":            128_000,
	"gpt-4o":           128_000,
	"gpt-4.1":          1_047_576,
	"gpt-5":            400_000,
	"o1":               200_000,
	"o3":               200_000,
	"o4-mini":          200_000,
	"gemini-1.5-pro":   2_097_152,
	"gemini-1.5-flash": 1_048_576,
	"gemini-2.0":       1_048_576,
	"gemini-2.5":       1_048_576,
	"gemma-3":          131_072,
}

// ContextWindow returns the known context window size for the given
// model identifier, or 0 when the model is unknown.
func ContextWindow(model string) int {
	name := Normalize(model)
	if name == "" {
		return 0
	}

	best := 0
	bestLen := -1
	for prefix, window := range contextWindows {
		if strings.HasPrefix(name, prefix) && len(prefix) > bestLen {
			best = window
			bestLen = len(prefix)
		}
	}
	return best
}

// Normalize lowercases the model identifier and strips a leading
// "provider:" qualifier (e.g. "openai:gpt-5-mini" -> "gpt-5-mini").
func Normalize(model string) string {
	name := strings.ToLower(strings.TrimSpace(model))
	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}
