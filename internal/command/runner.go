package command

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/docsbuild/internal/logfields"
	"git.home.luguber.info/inful/docsbuild/internal/metrics"
)

// DefaultPostTimeout bounds one best-effort post of a command record.
const DefaultPostTimeout = 10 * time.Second

// Poster persists a completed command record into build history.
type Poster interface {
	PostCommand(ctx context.Context, rec Record) error
}

// Runner executes commands on behalf of one build and reports them.
//
// Posting happens in the background after the command completes; a post
// failure is logged and never surfaces to the caller. Call Wait before
// shutting down to let pending posts finish.
type Runner struct {
	Launcher    Launcher
	Env         map[string]string
	BuildID     int64
	Poster      Poster
	Recorder    metrics.Recorder
	Logger      *slog.Logger
	PostTimeout time.Duration

	wg sync.WaitGroup
}

// NewRunner returns a Runner for buildID posting to poster (may be nil).
func NewRunner(buildID int64, poster Poster) *Runner {
	return &Runner{BuildID: buildID, Poster: poster}
}

// Run builds and executes an argument-token command in dir.
func (r *Runner) Run(ctx context.Context, dir string, args ...string) *Command {
	return r.Execute(ctx, New(args, r.options(dir)...))
}

// RunWith is Run with extra options applied after the runner's own.
func (r *Runner) RunWith(ctx context.Context, dir string, args []string, opts ...Option) *Command {
	return r.Execute(ctx, New(args, append(r.options(dir), opts...)...))
}

// RunShell executes a shell-interpreted line in dir.
func (r *Runner) RunShell(ctx context.Context, dir, line string) *Command {
	return r.Execute(ctx, NewShell(line, r.options(dir)...))
}

// Execute runs cmd if it has not run yet, then logs, measures and posts it.
func (r *Runner) Execute(ctx context.Context, cmd *Command) *Command {
	if err := cmd.Run(); err != nil {
		return cmd
	}
	r.observe(cmd)
	r.post(ctx, cmd)
	return cmd
}

// Wait blocks until all background posts have finished.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) options(dir string) []Option {
	opts := []Option{WithDir(dir), WithEnv(r.Env)}
	if r.Launcher != nil {
		opts = append(opts, WithLauncher(r.Launcher))
	}
	return opts
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) observe(cmd *Command) {
	metrics.OrNoop(r.Recorder).ObserveCommand(cmd.Program(), cmd.Duration(), cmd.Successful())
	attrs := []any{
		logfields.Command(cmd.String()),
		logfields.Path(cmd.Dir()),
		logfields.ExitCode(cmd.ExitCode()),
		logfields.DurationMS(cmd.Duration().Milliseconds()),
	}
	if r.BuildID != 0 {
		attrs = append(attrs, logfields.BuildID(r.BuildID))
	}
	if cmd.Successful() {
		r.logger().Debug("Command finished", attrs...)
		return
	}
	r.logger().Info("Command failed", attrs...)
}

func (r *Runner) post(ctx context.Context, cmd *Command) {
	if r.Poster == nil || r.BuildID == 0 {
		return
	}
	rec := cmd.Record(r.BuildID)
	timeout := r.PostTimeout
	if timeout <= 0 {
		timeout = DefaultPostTimeout
	}
	// The post outlives the caller's cancellation; only the timeout bounds it.
	postCtx := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		pctx, cancel := context.WithTimeout(postCtx, timeout)
		defer cancel()
		if err := r.Poster.PostCommand(pctx, rec); err != nil {
			r.logger().Warn("Unable to post command record",
				logfields.BuildID(rec.BuildID),
				logfields.Command(rec.Command),
				logfields.Error(err))
		}
	}()
}
