package vcs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"git.home.luguber.info/inful/docsbuild/internal/command"
	"git.home.luguber.info/inful/docsbuild/internal/logfields"
	"git.home.luguber.info/inful/docsbuild/internal/metrics"
)

const dirPerm = 0o750

// base carries what every backend shares: binding, runner and observability.
type base struct {
	kind     string
	repoURL  string
	dir      string
	runner   *command.Runner
	recorder metrics.Recorder
	logger   *slog.Logger
}

func (b *base) Kind() string { return b.kind }

func (b *base) run(ctx context.Context, args ...string) *command.Command {
	return b.runner.Run(ctx, b.dir, args...)
}

// must runs args and converts a non-zero exit into an ImportError for op.
func (b *base) must(ctx context.Context, op string, args ...string) error {
	cmd := b.run(ctx, args...)
	if cmd.Failed() {
		return &ImportError{Op: op, URL: b.repoURL, ExitCode: cmd.ExitCode()}
	}
	return nil
}

// output runs a read-only query and returns its trimmed standard output.
// Standard error is kept apart so tool warnings never reach the parsers.
func (b *base) output(ctx context.Context, args ...string) (string, error) {
	cmd := b.runner.RunWith(ctx, b.dir, args, command.WithSeparateStderr())
	if cmd.Failed() {
		return "", fmt.Errorf("%s: exit code %d", cmd.String(), cmd.ExitCode())
	}
	return strings.TrimSpace(cmd.Output()), nil
}

func (b *base) ensureWorkingDir() error {
	if err := os.MkdirAll(b.dir, dirPerm); err != nil {
		return fmt.Errorf("create working directory %s: %w", b.dir, err)
	}
	return nil
}

func (b *base) makeCleanWorkingDir() error {
	if err := os.RemoveAll(b.dir); err != nil {
		return fmt.Errorf("remove working directory %s: %w", b.dir, err)
	}
	return b.ensureWorkingDir()
}

// update applies the shared policy: a passing status probe refreshes in place,
// anything else cleans the directory and clones.
func (b *base) update(ctx context.Context, probe []string, refresh, clone func(context.Context) error) error {
	if err := b.ensureWorkingDir(); err != nil {
		return err
	}
	var err error
	if b.run(ctx, probe...).Successful() {
		b.logger.Debug("Refreshing working copy", logfields.VCS(b.kind), logfields.Path(b.dir))
		err = refresh(ctx)
		b.recorder.IncVCSOperation(b.kind, "refresh", err == nil)
		return err
	}
	b.logger.Debug("Cloning into clean working directory",
		logfields.VCS(b.kind), logfields.URL(b.repoURL), logfields.Path(b.dir))
	if err = b.makeCleanWorkingDir(); err != nil {
		return err
	}
	err = clone(ctx)
	b.recorder.IncVCSOperation(b.kind, "clone", err == nil)
	return err
}

func (b *base) observeCheckout(err error) error {
	b.recorder.IncVCSOperation(b.kind, "checkout", err == nil)
	return err
}

func (b *base) tagsFailed(err error) []Reference {
	b.logger.Debug("Tag listing failed", logfields.VCS(b.kind), logfields.Path(b.dir), logfields.Error(err))
	return []Reference{}
}
