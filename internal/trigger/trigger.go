// Package trigger turns a build intent into a persisted build record and a
// queued update_docs task.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/docsbuild/internal/logfields"
	"git.home.luguber.info/inful/docsbuild/internal/metrics"
	"git.home.luguber.info/inful/docsbuild/internal/queue"
	"git.home.luguber.info/inful/docsbuild/internal/store"
)

// Store is the persistence the trigger needs.
type Store interface {
	GetVersionBySlug(ctx context.Context, projectID int64, slug string) (*store.Version, error)
	CreateBuild(ctx context.Context, b *store.Build) error
	UpdateBuild(ctx context.Context, b *store.Build) error
}

// Request describes one build intent.
type Request struct {
	Project *store.Project
	// Version defaults to the project's latest version when nil.
	Version *store.Version
	Record  bool
	Force   bool
	Basic   bool
	// Queue routes the task; empty uses the default queue.
	Queue string
}

// Trigger decides whether a build runs and dispatches it.
// It is safe for concurrent use; every call is independent.
type Trigger struct {
	store        Store
	queue        queue.Enqueuer
	defaultQueue string
	recorder     metrics.Recorder
	logger       *slog.Logger
}

// Option customizes a Trigger.
type Option func(*Trigger)

// WithDefaultQueue sets the queue used when a request names none.
func WithDefaultQueue(name string) Option { return func(t *Trigger) { t.defaultQueue = name } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(t *Trigger) { t.recorder = metrics.OrNoop(r) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trigger) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a Trigger persisting to s and dispatching to q.
func New(s Store, q queue.Enqueuer, opts ...Option) *Trigger {
	t := &Trigger{store: s, queue: q, recorder: metrics.NoopRecorder{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TriggerBuild dispatches an update_docs task for req. It returns the created
// build record, or nil when recording was not requested or the project is
// skipped. A missing latest version fails before any record is created.
func (t *Trigger) TriggerBuild(ctx context.Context, req Request) (*store.Build, error) {
	if req.Project == nil {
		return nil, ferrors.ValidationError("build request without project").Build()
	}
	p := req.Project
	if p.Skip {
		t.recorder.IncBuildTriggered(metrics.TriggerSkipped)
		t.logger.Debug("Project skipped, not triggering build", logfields.Project(p.Slug))
		return nil, nil
	}

	version := req.Version
	if version == nil {
		v, err := t.store.GetVersionBySlug(ctx, p.ID, store.LatestSlug)
		if err != nil {
			t.recorder.IncBuildTriggered(metrics.TriggerFailed)
			if errors.Is(err, store.ErrNotFound) {
				return nil, ferrors.WrapError(err, ferrors.CategoryNotFound,
					fmt.Sprintf("project %s has no %s version", p.Slug, store.LatestSlug)).
					WithContext("project", p.Slug).
					Build()
			}
			return nil, err
		}
		version = v
	}

	args := queue.TaskArgs{
		ProjectID: p.ID,
		VersionID: version.ID,
		Record:    req.Record,
		Force:     req.Force,
		Basic:     req.Basic,
	}

	var build *store.Build
	if req.Record {
		build = &store.Build{
			ProjectID: p.ID,
			VersionID: version.ID,
			Type:      store.BuildTypeHTML,
			State:     store.StateTriggered,
			Success:   true,
		}
		if err := t.store.CreateBuild(ctx, build); err != nil {
			t.recorder.IncBuildTriggered(metrics.TriggerFailed)
			return nil, err
		}
		args.BuildID = build.ID
	}

	queueName := req.Queue
	if queueName == "" {
		queueName = t.defaultQueue
	}
	if err := t.queue.Enqueue(ctx, queue.TaskUpdateDocs, args, queueName); err != nil {
		t.recorder.IncBuildTriggered(metrics.TriggerFailed)
		if build != nil {
			t.abandon(ctx, build, err)
		}
		return nil, err
	}

	t.recorder.IncBuildTriggered(metrics.TriggerDispatched)
	attrs := []any{logfields.Project(p.Slug), logfields.Version(version.Slug), logfields.Queue(queueName)}
	if build != nil {
		attrs = append(attrs, logfields.BuildID(build.ID))
	}
	t.logger.Info("Build triggered", attrs...)
	return build, nil
}

// abandon finishes a build whose task could not be dispatched.
func (t *Trigger) abandon(ctx context.Context, b *store.Build, cause error) {
	b.State = store.StateFinished
	b.Success = false
	b.Error = cause.Error()
	if err := t.store.UpdateBuild(context.WithoutCancel(ctx), b); err != nil {
		t.logger.Error("Unable to mark undispatched build as failed",
			logfields.BuildID(b.ID), logfields.Error(err))
	}
}
