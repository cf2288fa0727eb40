// Package foundation holds small generic helpers shared by configuration
// parsing and backend selection.
package foundation

import (
	"fmt"
	"sort"
	"strings"
)

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalizer maps loosely written strings (any case, surrounding space,
// aliases) onto the values of an enum type.
type Normalizer[T comparable] struct {
	name         string
	validValues  map[string]T
	defaultValue T
}

// NewNormalizer creates a normalizer for the enum called name. Keys of values are
// the accepted spellings; an empty input resolves to defaultValue.
func NewNormalizer[T comparable](name string, values map[string]T, defaultValue T) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	for k, v := range values {
		normalized[normalizeKey(k)] = v
	}
	return &Normalizer[T]{name: name, validValues: normalized, defaultValue: defaultValue}
}

// Normalize converts raw to the enum value, or reports it as invalid.
func (n *Normalizer[T]) Normalize(raw string) (T, error) {
	cleaned := normalizeKey(raw)
	if cleaned == "" {
		return n.defaultValue, nil
	}
	if value, ok := n.validValues[cleaned]; ok {
		return value, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q (accepted: %s)", n.name, raw, strings.Join(n.Accepted(), ", "))
}

// Accepted returns the accepted spellings, sorted.
func (n *Normalizer[T]) Accepted() []string {
	out := make([]string, 0, len(n.validValues))
	for k := range n.validValues {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
