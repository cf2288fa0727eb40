package config

import (
	"git.home.luguber.info/inful/docsbuild/internal/foundation"
	"git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var (
	backoffModes = foundation.NewNormalizer("retry backoff", map[string]RetryBackoffMode{
		"fixed":       RetryBackoffFixed,
		"constant":    RetryBackoffFixed,
		"linear":      RetryBackoffLinear,
		"exponential": RetryBackoffExponential,
		"exp":         RetryBackoffExponential,
	}, RetryBackoffLinear)

	queueBackends = foundation.NewNormalizer("queue backend", map[string]QueueBackend{
		"nats":      QueueBackendNATS,
		"jetstream": QueueBackendNATS,
		"local":     QueueBackendLocal,
		"memory":    QueueBackendLocal,
	}, QueueBackendLocal)
)

// normalizeEnums canonicalizes enum-valued fields; empty values take their defaults.
func normalizeEnums(cfg *Config) error {
	backend, err := queueBackends.Normalize(string(cfg.Queue.Backend))
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "unsupported queue backend").
			WithContext("backend", string(cfg.Queue.Backend)).Build()
	}
	mode, err := backoffModes.Normalize(string(cfg.Retry.Backoff))
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "unsupported retry backoff").
			WithContext("backoff", string(cfg.Retry.Backoff)).Build()
	}
	cfg.Queue.Backend, cfg.Retry.Backoff = backend, mode
	return nil
}
