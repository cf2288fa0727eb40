package foundation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type color string

func TestNormalizer(t *testing.T) {
	n := NewNormalizer("color", map[string]color{"red": "red", "Crimson": "red", "blue": "blue"}, "blue")

	got, err := n.Normalize("  RED ")
	require.NoError(t, err)
	assert.Equal(t, color("red"), got)

	got, err = n.Normalize("crimson")
	require.NoError(t, err)
	assert.Equal(t, color("red"), got)

	got, err = n.Normalize("")
	require.NoError(t, err)
	assert.Equal(t, color("blue"), got)

	_, err = n.Normalize("green")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid color "green"`)
	assert.Equal(t, []string{"blue", "crimson", "red"}, n.Accepted())
}
