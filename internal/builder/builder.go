package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docsbuild/internal/command"
	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
)

// Builder renders one documentation format from a checked out version.
type Builder interface {
	// Type names the artifact type, which is also the output subdirectory.
	Type() string
	Build(ctx context.Context, env *Environment) error
}

// Factory creates a fresh Builder.
type Factory func() Builder

// Environment is what a builder needs to render one project version.
type Environment struct {
	Project      string
	Version      string
	CheckoutPath string
	OutputRoot   string
	// ConfPath optionally points at the Sphinx conf.py; discovered when empty.
	ConfPath string
	Runner   *command.Runner
}

// OutputDir returns OutputRoot/<type>/<project>/<version>.
func (e *Environment) OutputDir(artifactType string) string {
	return filepath.Join(e.OutputRoot, artifactType, e.Project, e.Version)
}

func (e *Environment) runner() *command.Runner {
	if e.Runner == nil {
		e.Runner = &command.Runner{}
	}
	return e.Runner
}

// run executes args in dir and classifies a non-zero exit as a build error.
func (e *Environment) run(ctx context.Context, builderType, dir string, args ...string) error {
	cmd := e.runner().Run(ctx, dir, args...)
	if cmd.Failed() {
		return ferrors.BuildError(fmt.Sprintf("%s build failed", builderType)).
			WithContext("command", cmd.String()).
			WithContext("exit_code", cmd.ExitCode()).
			WithContext("project", e.Project).
			WithContext("version", e.Version).
			Build()
	}
	return nil
}

// prepareOutput recreates the output directory for artifactType.
func (e *Environment) prepareOutput(artifactType string) (string, error) {
	out := e.OutputDir(artifactType)
	if err := os.RemoveAll(out); err != nil {
		return "", fmt.Errorf("clean output %s: %w", out, err)
	}
	if err := os.MkdirAll(out, 0o750); err != nil {
		return "", fmt.Errorf("create output %s: %w", out, err)
	}
	return out, nil
}
