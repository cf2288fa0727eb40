package command

import (
	"os"
	"sort"
	"strings"
)

const (
	// MarkerVariable is set in every command environment to flag build supervision.
	MarkerVariable = "DOCSBUILD_BUILD"
	markerValue    = "True"

	// runtimePrefix marks variables that configure this process and must not leak into builds.
	runtimePrefix = "DOCSBUILD_"
)

// DefaultEnvironment returns a copy of the process environment with runtime-specific
// variables stripped, the supervision marker set and overrides applied last.
func DefaultEnvironment(overrides map[string]string) []string {
	return buildEnvironment(os.Environ(), overrides)
}

func buildEnvironment(base []string, overrides map[string]string) []string {
	env := make([]string, 0, len(base)+len(overrides)+1)
	for _, kv := range base {
		if strings.HasPrefix(kv, runtimePrefix) {
			continue
		}
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := overrides[key]; overridden {
			continue
		}
		env = append(env, kv)
	}
	if _, overridden := overrides[MarkerVariable]; !overridden {
		env = append(env, MarkerVariable+"="+markerValue)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}
