package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildEnvironmentStripsRuntimeVariables(t *testing.T) {
	base := []string{"PATH=/usr/bin", "DOCSBUILD_CONFIG=/etc/docsbuild.yaml", "HOME=/root"}
	env := buildEnvironment(base, nil)

	assert.Equal(t, []string{"PATH=/usr/bin", "HOME=/root", "DOCSBUILD_BUILD=True"}, env)
}

func TestBuildEnvironmentOverridesWin(t *testing.T) {
	base := []string{"PATH=/usr/bin", "LANG=C"}
	env := buildEnvironment(base, map[string]string{"LANG": "en_US.UTF-8", "BIN_PATH": "/venv/bin"})

	assert.Equal(t, []string{
		"PATH=/usr/bin",
		MarkerVariable + "=True",
		"BIN_PATH=/venv/bin",
		"LANG=en_US.UTF-8",
	}, env)
}

func TestBuildEnvironmentMarkerOverride(t *testing.T) {
	env := buildEnvironment(nil, map[string]string{MarkerVariable: "False"})
	assert.Equal(t, []string{MarkerVariable + "=False"}, env)
}
