package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	orig := [3]string{Version, GitCommit, BuildTime}
	t.Cleanup(func() { Version, GitCommit, BuildTime = orig[0], orig[1], orig[2] })

	Version, GitCommit, BuildTime = "v0.3.0", "abc123", "2026-01-01"
	assert.Equal(t, "v0.3.0 (commit abc123, built 2026-01-01)", String())
}

func TestDefaultsAreSet(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, GitCommit)
	assert.NotEmpty(t, BuildTime)
}
