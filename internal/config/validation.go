package config

import (
	"time"

	"git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
)

// Validate checks the finalized configuration; it does not resolve builder backends,
// which is left to the builder registry at startup.
func Validate(cfg *Config) error {
	switch cfg.Queue.Backend {
	case QueueBackendLocal:
	case QueueBackendNATS:
		if cfg.Queue.NATSURL == "" {
			return errors.ConfigError("queue.nats_url is required for the nats backend").Build()
		}
	default:
		return errors.ConfigError("unsupported queue backend").
			WithContext("backend", string(cfg.Queue.Backend)).
			Build()
	}

	switch cfg.Retry.Backoff {
	case RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
	default:
		return errors.ConfigError("unsupported retry backoff").
			WithContext("backoff", string(cfg.Retry.Backoff)).
			Build()
	}
	if cfg.Retry.MaxRetries < 0 {
		return errors.ConfigError("retry.max_retries cannot be negative").Build()
	}

	for field, raw := range map[string]string{
		"retry.initial_delay":       cfg.Retry.InitialDelay,
		"retry.max_delay":           cfg.Retry.MaxDelay,
		"schedule.recheck_interval": cfg.Schedule.RecheckInterval,
	} {
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return errors.ConfigError("invalid duration").
				WithContext("field", field).
				WithContext("value", raw).
				Build()
		}
	}

	for _, host := range cfg.Sync.MultipleAppServers {
		if host == "" {
			return errors.ConfigError("sync.multiple_app_servers contains an empty host").Build()
		}
	}
	if len(cfg.Sync.MultipleAppServers) > 0 && cfg.Sync.SyncUser == "" {
		return errors.ConfigError("sync.sync_user is required when app servers are configured").Build()
	}
	return nil
}

// RecheckInterval returns the parsed re-check interval, zero when disabled.
func (c *Config) RecheckInterval() time.Duration {
	d, _ := time.ParseDuration(c.Schedule.RecheckInterval)
	return d
}
