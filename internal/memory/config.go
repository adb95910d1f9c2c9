package memory

import "time"

// Config holds retrieval and short-term window settings.
type Config struct {
	SearchK       int
	ContextLimit  int
	ShortTermMsgs int
	ShortTermTTL  time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SearchK:       5,
		ContextLimit:  800,
		ShortTermMsgs: 10,
		ShortTermTTL:  24 * time.Hour,
	}
}

// WithDefaults fills every non-positive field from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.SearchK <= 0 {
		c.SearchK = d.SearchK
	}
	if c.ContextLimit <= 0 {
		c.ContextLimit = d.ContextLimit
	}
	if c.ShortTermMsgs <= 0 {
		c.ShortTermMsgs = d.ShortTermMsgs
	}
	if c.ShortTermTTL <= 0 {
		c.ShortTermTTL = d.ShortTermTTL
	}
	return c
}
