// Package worker executes update_docs tasks: check out a project version,
// keep its version list in sync with the repository tags, run the builders
// and mirror the artifacts to the application servers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"git.home.luguber.info/inful/docsbuild/internal/builder"
	"git.home.luguber.info/inful/docsbuild/internal/command"
	"git.home.luguber.info/inful/docsbuild/internal/config"
	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/docsbuild/internal/logfields"
	"git.home.luguber.info/inful/docsbuild/internal/metrics"
	"git.home.luguber.info/inful/docsbuild/internal/queue"
	"git.home.luguber.info/inful/docsbuild/internal/store"
	"git.home.luguber.info/inful/docsbuild/internal/vcs"
)

// Store is the persistence the worker needs.
type Store interface {
	command.Poster
	GetProject(ctx context.Context, id int64) (*store.Project, error)
	GetVersion(ctx context.Context, id int64) (*store.Version, error)
	GetVersionBySlug(ctx context.Context, projectID int64, slug string) (*store.Version, error)
	CreateVersion(ctx context.Context, v *store.Version) error
	UpsertVersion(ctx context.Context, v *store.Version) error
	UpdateVersion(ctx context.Context, v *store.Version) error
	GetBuild(ctx context.Context, id int64) (*store.Build, error)
	CreateBuild(ctx context.Context, b *store.Build) error
	UpdateBuild(ctx context.Context, b *store.Build) error
	LastBuiltCommit(ctx context.Context, versionID int64) (string, error)
}

// Worker runs the build pipeline for queued tasks.
type Worker struct {
	store     Store
	registry  *builder.Registry
	workspace string
	output    string
	sync      config.SyncConfig
	launcher  command.Launcher
	remote    command.RemoteLauncher
	locks     *keyedLock
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// Option customizes a Worker.
type Option func(*Worker)

// WithLauncher sets how local commands are started.
func WithLauncher(l command.Launcher) Option { return func(w *Worker) { w.launcher = l } }

// WithRemoteLauncher sets how commands run on application servers.
func WithRemoteLauncher(r command.RemoteLauncher) Option { return func(w *Worker) { w.remote = r } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(w *Worker) { w.recorder = metrics.OrNoop(r) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a Worker building into cfg.Output from checkouts under cfg.Workspace.
func New(cfg *config.Config, s Store, registry *builder.Registry, opts ...Option) *Worker {
	w := &Worker{
		store:     s,
		registry:  registry,
		workspace: cfg.Workspace,
		output:    cfg.Output,
		sync:      cfg.Sync,
		locks:     newKeyedLock(),
		recorder:  metrics.NoopRecorder{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Handlers returns the queue handlers served by this worker.
func (w *Worker) Handlers() map[string]queue.Handler {
	return map[string]queue.Handler{
		queue.TaskUpdateDocs: func(ctx context.Context, task *queue.Task) error {
			return w.UpdateDocs(ctx, task.Args)
		},
	}
}

// CheckoutPath returns the working directory for a project version.
func (w *Worker) CheckoutPath(projectSlug, versionSlug string) string {
	return filepath.Join(w.workspace, projectSlug, "checkouts", versionSlug)
}

// run carries the per-task state through the pipeline.
type run struct {
	args    queue.TaskArgs
	project *store.Project
	version *store.Version
	build   *store.Build
	runner  *command.Runner
	logger  *slog.Logger
}

// UpdateDocs checks out and builds one project version.
func (w *Worker) UpdateDocs(ctx context.Context, args queue.TaskArgs) error {
	start := time.Now()
	r, err := w.load(ctx, args)
	if err != nil {
		w.abandon(ctx, args.BuildID, err)
		return err
	}

	dir := w.CheckoutPath(r.project.Slug, r.version.Slug)
	release, err := w.locks.Acquire(ctx, dir)
	if err != nil {
		r.logger.Warn("Gave up waiting for checkout lock", logfields.Path(dir), logfields.Error(err))
		w.finish(ctx, r, err)
		return err
	}
	defer release()
	defer r.runner.Wait()

	outcome, err := w.pipeline(ctx, r, dir)
	w.recorder.IncBuildOutcome(outcome)
	w.recorder.ObserveBuildDuration(time.Since(start))
	if err != nil {
		r.logger.Error("Build failed", logfields.Error(err))
		w.finish(ctx, r, err)
		return err
	}
	r.logger.Info("Build finished", "outcome", string(outcome), logfields.DurationMS(time.Since(start).Milliseconds()))
	w.finish(ctx, r, nil)
	return nil
}

// abandon finishes a known build record as failed when the task could not start.
func (w *Worker) abandon(ctx context.Context, buildID int64, cause error) {
	if buildID == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	b, err := w.store.GetBuild(ctx, buildID)
	if err != nil {
		w.logger.Warn("Unable to load build record", logfields.BuildID(buildID), logfields.Error(err))
		return
	}
	markFinished(b, cause)
	if err := w.store.UpdateBuild(ctx, b); err != nil {
		w.logger.Error("Unable to record build result", logfields.BuildID(buildID), logfields.Error(err))
	}
}

func (w *Worker) load(ctx context.Context, args queue.TaskArgs) (*run, error) {
	project, err := w.store.GetProject(ctx, args.ProjectID)
	if err != nil {
		return nil, err
	}
	version, err := w.store.GetVersion(ctx, args.VersionID)
	if err != nil {
		return nil, err
	}
	if version.ProjectID != project.ID {
		return nil, ferrors.ValidationError("version does not belong to project").
			WithContext("project", project.Slug).
			WithContext("version", version.Slug).
			Build()
	}

	var build *store.Build
	switch {
	case args.BuildID != 0:
		if build, err = w.store.GetBuild(ctx, args.BuildID); err != nil {
			return nil, err
		}
	case args.Record:
		build = &store.Build{ProjectID: project.ID, VersionID: version.ID, Type: store.BuildTypeHTML, State: store.StateTriggered, Success: true}
		if err := w.store.CreateBuild(ctx, build); err != nil {
			return nil, err
		}
	}

	logger := w.logger.With(logfields.Project(project.Slug), logfields.Version(version.Slug))
	runner := &command.Runner{Launcher: w.launcher, Recorder: w.recorder, Logger: logger}
	if build != nil {
		logger = logger.With(logfields.BuildID(build.ID))
		runner.BuildID = build.ID
		runner.Poster = w.store
		runner.Logger = logger
	}
	return &run{args: args, project: project, version: version, build: build, runner: runner, logger: logger}, nil
}

func (w *Worker) pipeline(ctx context.Context, r *run, dir string) (metrics.BuildOutcome, error) {
	w.setState(ctx, r, store.StateCloning)

	backend, err := vcs.New(r.project.RepoType, r.project.Repo, dir, r.runner,
		vcs.WithRecorder(w.recorder), vcs.WithLogger(r.logger))
	if err != nil {
		return metrics.OutcomeFailed, err
	}
	if err := backend.Checkout(ctx, r.version.Identifier); err != nil {
		return metrics.OutcomeFailed, err
	}

	if backend.SupportsTags() {
		w.syncTags(ctx, r, backend.Tags(ctx))
	}
	if err := w.makeLatest(ctx, r.project, backend); err != nil {
		r.logger.Warn("Unable to ensure latest version", logfields.Error(err))
	}

	commit, err := backend.Commit(ctx)
	if err != nil {
		r.logger.Warn("Unable to determine commit", logfields.Error(err))
	}
	if r.build != nil {
		r.build.Commit = commit
	}
	if !r.args.Force && commit != "" {
		last, err := w.store.LastBuiltCommit(ctx, r.version.ID)
		if err != nil {
			r.logger.Warn("Unable to read last built commit", logfields.Error(err))
		} else if last == commit {
			r.logger.Info("Commit already built, skipping", "commit", commit)
			return metrics.OutcomeUnchanged, nil
		}
	}

	w.setState(ctx, r, store.StateBuilding)
	env := &builder.Environment{
		Project:      r.project.Slug,
		Version:      r.version.Slug,
		CheckoutPath: dir,
		OutputRoot:   w.output,
		ConfPath:     r.project.ConfPath,
		Runner:       r.runner,
	}
	built, err := w.runBuilder(ctx, r, r.project.DocumentationType, env)
	if err != nil {
		return metrics.OutcomeFailed, err
	}
	artifacts := []string{built}

	if !r.args.Basic && builder.IsSphinx(r.project.DocumentationType) {
		for _, name := range builder.SecondaryBuilders() {
			typ, err := w.runBuilder(ctx, r, name, env)
			if err != nil {
				r.logger.Warn("Secondary builder failed", logfields.Builder(name), logfields.Error(err))
				continue
			}
			artifacts = append(artifacts, typ)
		}
	}

	w.mirror(ctx, r, env, artifacts)
	return metrics.OutcomeSuccess, nil
}

func (w *Worker) runBuilder(ctx context.Context, r *run, name string, env *builder.Environment) (string, error) {
	b, err := w.registry.New(name)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryConfig, "project builder is not registered").
			WithContext("builder", name).
			Build()
	}
	r.logger.Debug("Running builder", logfields.Builder(name))
	if err := b.Build(ctx, env); err != nil {
		return "", err
	}
	return b.Type(), nil
}

// syncTags records every repository tag as a version of the project.
func (w *Worker) syncTags(ctx context.Context, r *run, tags []vcs.Reference) {
	for _, ref := range tags {
		slug := store.Slugify(ref.VerboseName)
		if slug == "" || slug == store.LatestSlug {
			continue
		}
		v := &store.Version{
			ProjectID:   r.project.ID,
			Slug:        slug,
			Identifier:  ref.Identifier,
			VerboseName: ref.VerboseName,
			Type:        store.VersionTag,
		}
		if err := w.store.UpsertVersion(ctx, v); err != nil {
			r.logger.Warn("Unable to record tag version", "tag", ref.VerboseName, logfields.Error(err))
		}
	}
}

// makeLatest creates the latest version tracking the default branch, or the
// backend's fallback branch, when the project has none.
func (w *Worker) makeLatest(ctx context.Context, p *store.Project, backend vcs.Backend) error {
	_, err := w.store.GetVersionBySlug(ctx, p.ID, store.LatestSlug)
	if err == nil || !errors.Is(err, store.ErrNotFound) {
		return err
	}
	branch := p.DefaultBranch
	if branch == "" {
		branch = backend.FallbackBranch()
	}
	return w.store.CreateVersion(ctx, &store.Version{
		ProjectID:   p.ID,
		Slug:        store.LatestSlug,
		Identifier:  branch,
		VerboseName: store.LatestSlug,
		Type:        store.VersionBranch,
		Active:      true,
	})
}

// mirror copies the built artifacts to every application server.
func (w *Worker) mirror(ctx context.Context, r *run, env *builder.Environment, artifacts []string) {
	if len(w.sync.MultipleAppServers) == 0 {
		return
	}
	servers := command.NewAppServers(w.sync, r.runner)
	servers.Logger = r.logger
	if w.remote != nil {
		servers.Remote = w.remote
	}
	port := w.sync.Port
	if port == 0 {
		port = config.DefaultSSHPort
	}
	for _, typ := range artifacts {
		out := env.OutputDir(typ)
		if code := servers.Run(ctx, "mkdir -p "+out); code != 0 {
			r.logger.Warn("Unable to prepare artifact directory on app servers", logfields.Path(out), logfields.ExitCode(code))
			continue
		}
		for _, host := range w.sync.MultipleAppServers {
			cmd := r.runner.Run(ctx, "", "rsync", "-e", "ssh -T -p "+strconv.Itoa(port), "-a", "--delete",
				out+"/", fmt.Sprintf("%s@%s:%s", w.sync.SyncUser, host, out))
			if cmd.Failed() {
				r.logger.Warn("Unable to mirror artifacts", logfields.Host(host), logfields.Path(out), logfields.ExitCode(cmd.ExitCode()))
			}
		}
	}
}

func (w *Worker) setState(ctx context.Context, r *run, state store.BuildState) {
	if r.build == nil {
		return
	}
	r.build.State = state
	if err := w.store.UpdateBuild(ctx, r.build); err != nil {
		r.logger.Warn("Unable to update build state", "state", string(state), logfields.Error(err))
	}
}

// finish records the terminal build and version state.
func (w *Worker) finish(ctx context.Context, r *run, buildErr error) {
	ctx = context.WithoutCancel(ctx)
	if buildErr == nil {
		r.version.Built = true
		if err := w.store.UpdateVersion(ctx, r.version); err != nil {
			r.logger.Warn("Unable to mark version built", logfields.Error(err))
		}
	}
	if r.build == nil {
		return
	}
	markFinished(r.build, buildErr)
	if err := w.store.UpdateBuild(ctx, r.build); err != nil {
		r.logger.Error("Unable to record build result", logfields.Error(err))
	}
}

func markFinished(b *store.Build, buildErr error) {
	b.State = store.StateFinished
	b.Success = buildErr == nil
	b.ExitCode = 0
	b.Error = ""
	if buildErr != nil {
		b.Error = buildErr.Error()
		b.ExitCode = 1
		var ie *vcs.ImportError
		if errors.As(buildErr, &ie) {
			b.ExitCode = ie.ExitCode
		}
	}
}
