package compaction

import (
	"fmt"
	"time"

	"github.com/youssefsiam38/contextfit/modelinfo"
)

// Default configuration values based on production patterns.
const (
	DefaultSafetyBuffer      = 0.85                   // work against 85% of the window
	DefaultPacingDelay       = 250 * time.Millisecond // pause between drop iterations
	DefaultNewestShare       = 0.60                   // newest turn gets 60% of the budget
	DefaultSecondNewestShare = 0.30                   // second-newest gets 30%
)

// Salvage cap shares, newest first. Applied to the last <=3 turns of the
// original input when normal compaction collapses to nothing.
var salvageShares = [3]float64{0.50, 0.25, 0.10}

// Config holds compaction configuration.
type Config struct {
	// Model is the model identifier whose context window bounds the
	// trajectory. Used for the window lookup unless ContextWindowLimits
	// overrides it.
	Model string

	// ContextWindowLimits overrides the known context window size per
	// model identifier. Models not present fall back to the built-in
	// table in the modelinfo package.
	ContextWindowLimits map[string]int

	// SafetyBuffer scales the context window down to the working budget
	// (0.0-1.0). E.g. 0.85 means compaction targets 85% of the window.
	// Default: 0.85
	SafetyBuffer float64

	// PacingDelay is the cooperative pause between oldest-drop
	// iterations, to avoid saturating a rate-limited counting API.
	// Zero means the default. Default: 250ms
	PacingDelay time.Duration

	// NewestShare is the budget fraction capping the newest turn.
	// Default: 0.60
	NewestShare float64

	// SecondNewestShare is the budget fraction capping the
	// second-newest turn. Default: 0.30
	SecondNewestShare float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(model string) *Config {
	return &Config{
		Model:             model,
		SafetyBuffer:      DefaultSafetyBuffer,
		PacingDelay:       DefaultPacingDelay,
		NewestShare:       DefaultNewestShare,
		SecondNewestShare: DefaultSecondNewestShare,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.SafetyBuffer == 0 {
		c.SafetyBuffer = DefaultSafetyBuffer
	}
	if c.PacingDelay == 0 {
		c.PacingDelay = DefaultPacingDelay
	}
	if c.NewestShare == 0 {
		c.NewestShare = DefaultNewestShare
	}
	if c.SecondNewestShare == 0 {
		c.SecondNewestShare = DefaultSecondNewestShare
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.SafetyBuffer <= 0 || c.SafetyBuffer > 1.0 {
		return fmt.Errorf("%w: safety_buffer must be between 0 and 1, got %f", ErrInvalidConfig, c.SafetyBuffer)
	}
	if c.NewestShare <= 0 || c.NewestShare > 1.0 {
		return fmt.Errorf("%w: newest_share must be between 0 and 1, got %f", ErrInvalidConfig, c.NewestShare)
	}
	if c.SecondNewestShare <= 0 || c.SecondNewestShare > 1.0 {
		return fmt.Errorf("%w: second_newest_share must be between 0 and 1, got %f", ErrInvalidConfig, c.SecondNewestShare)
	}
	if c.NewestShare+c.SecondNewestShare > 1.0 {
		return fmt.Errorf("%w: newest_share (%f) and second_newest_share (%f) exceed the budget together",
			ErrInvalidConfig, c.NewestShare, c.SecondNewestShare)
	}
	if c.PacingDelay < 0 {
		return fmt.Errorf("%w: pacing_delay must be non-negative, got %s", ErrInvalidConfig, c.PacingDelay)
	}
	return nil
}

// LookupContextWindow returns the known context window size for the
// configured model, or 0 when unknown. Unknown windows are treated as
// "do nothing" by the fitter.
func (c *Config) LookupContextWindow() int {
	if limit, ok := c.ContextWindowLimits[c.Model]; ok {
		return limit
	}
	return modelinfo.ContextWindow(c.Model)
}

// Budget returns the working token budget: the context window scaled
// down by the safety buffer. Returns 0 when the window is unknown.
func (c *Config) Budget() int {
	limit := c.LookupContextWindow()
	if limit <= 0 {
		return 0
	}
	return int(float64(limit) * c.SafetyBuffer)
}
