package authority

import (
	"fmt"
	"time"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultRetryMax       = 2
	defaultTokenTTL       = 50 * time.Minute
)

// Config holds the tax authority endpoint settings
type Config struct {
	BaseURL        string        // authority API root, no trailing slash
	RequestTimeout time.Duration // per-request budget, every call carries it
	RetryMax       int           // transport-level retries inside one call
	TokenTTL       time.Duration // cached session token lifetime
}

// Validate checks the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("authority: base URL is required")
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RetryMax < 0 {
		c.RetryMax = defaultRetryMax
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = defaultTokenTTL
	}
	return nil
}
