package retry

import (
	"time"

	"git.home.luguber.info/inful/docsbuild/internal/config"
	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
)

// Policy encapsulates redelivery backoff for failed build tasks.
// It is immutable after construction.
type Policy struct {
	Mode       config.RetryBackoffMode // fixed|linear|exponential
	Initial    time.Duration           // base delay
	Max        time.Duration           // cap for growth
	MaxRetries int                     // redeliveries allowed after the first attempt
}

// DefaultPolicy returns linear backoff, 1s initial, 30s cap, 2 retries.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 30 * time.Second, MaxRetries: 2}
}

// NewPolicy builds a policy from raw fields; zero or invalid values fall back to defaults.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	switch mode {
	case config.RetryBackoffFixed, config.RetryBackoffLinear, config.RetryBackoffExponential:
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// FromConfig builds and validates a policy from the retry section of the
// configuration. Empty delays take the defaults.
func FromConfig(cfg config.RetryConfig) (Policy, error) {
	initial, err := parseDelay("retry.initial_delay", cfg.InitialDelay)
	if err != nil {
		return Policy{}, err
	}
	maxDelay, err := parseDelay("retry.max_delay", cfg.MaxDelay)
	if err != nil {
		return Policy{}, err
	}
	if cfg.MaxRetries < 0 {
		return Policy{}, ferrors.ConfigError("retry.max_retries cannot be negative").
			WithContext("max_retries", cfg.MaxRetries).Build()
	}
	p := NewPolicy(cfg.Backoff, initial, maxDelay, cfg.MaxRetries)
	return p, p.Validate()
}

func parseDelay(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid retry delay").
			WithContext("field", field).
			WithContext("value", raw).
			Build()
	}
	if d < 0 {
		return 0, ferrors.ConfigError("retry delay cannot be negative").
			WithContext("field", field).
			WithContext("value", raw).
			Build()
	}
	return d, nil
}

// Delay returns the backoff delay for the given retry number (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		d := p.Initial * (1 << (retryCount - 1))
		if d > p.Max || d <= 0 {
			return p.Max
		}
		return d
	default: // linear
		d := time.Duration(retryCount) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	}
}

// Allows reports whether another retry is permitted after retriesSoFar retries.
func (p Policy) Allows(retriesSoFar int) bool {
	return retriesSoFar < p.MaxRetries
}

// Validate reports a config-classified error when the policy cannot drive redelivery.
func (p Policy) Validate() error {
	switch {
	case p.Initial <= 0:
		return ferrors.ConfigError("retry initial delay must be positive").Build()
	case p.Max < p.Initial:
		return ferrors.ConfigError("retry max delay must not be below the initial delay").
			WithContext("initial", p.Initial.String()).
			WithContext("max", p.Max.String()).
			Build()
	case p.MaxRetries < 0:
		return ferrors.ConfigError("retry max retries cannot be negative").Build()
	}
	return nil
}
