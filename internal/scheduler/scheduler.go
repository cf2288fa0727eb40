// Package scheduler periodically re-checks every project by triggering a
// recorded build of its latest version.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/docsbuild/internal/logfields"
	"git.home.luguber.info/inful/docsbuild/internal/store"
	"git.home.luguber.info/inful/docsbuild/internal/trigger"
)

// ProjectLister lists the projects to re-check.
type ProjectLister interface {
	ListProjects(ctx context.Context) ([]*store.Project, error)
}

// BuildTrigger dispatches one build request.
type BuildTrigger interface {
	TriggerBuild(ctx context.Context, req trigger.Request) (*store.Build, error)
}

// Scheduler wraps a gocron scheduler running the periodic re-check.
type Scheduler struct {
	scheduler gocron.Scheduler
	projects  ProjectLister
	trigger   BuildTrigger
	logger    *slog.Logger
}

// New creates a scheduler that re-checks projects from projects through t.
func New(projects ProjectLister, t BuildTrigger, logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{scheduler: s, projects: projects, trigger: t, logger: logger}, nil
}

// ScheduleRecheck registers the re-check every interval and returns the job ID.
func (s *Scheduler) ScheduleRecheck(ctx context.Context, interval time.Duration) (string, error) {
	if interval <= 0 {
		return "", ferrors.ValidationError("recheck interval must be positive").
			WithContext("interval", interval.String()).Build()
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.RecheckAll(ctx) }),
		gocron.WithName("recheck-projects"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create recheck job: %w", err)
	}
	return job.ID().String(), nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for a running re-check.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// RecheckAll triggers a recorded build of latest for every project and
// returns how many builds were dispatched. Per-project failures are logged.
func (s *Scheduler) RecheckAll(ctx context.Context) int {
	projects, err := s.projects.ListProjects(ctx)
	if err != nil {
		s.logger.Error("Unable to list projects for recheck", logfields.Error(err))
		return 0
	}
	dispatched := 0
	for _, p := range projects {
		if p.Skip {
			continue
		}
		if _, err := s.trigger.TriggerBuild(ctx, trigger.Request{Project: p, Record: true}); err != nil {
			s.logger.Warn("Scheduled build not dispatched", logfields.Project(p.Slug), logfields.Error(err))
			continue
		}
		dispatched++
	}
	s.logger.Info("Recheck finished", "projects", len(projects), "dispatched", dispatched)
	return dispatched
}
