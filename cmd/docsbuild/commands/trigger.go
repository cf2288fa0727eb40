package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docsbuild/internal/config"
	"git.home.luguber.info/inful/docsbuild/internal/queue"
	"git.home.luguber.info/inful/docsbuild/internal/store"
	"git.home.luguber.info/inful/docsbuild/internal/trigger"
)

// TriggerCmd implements the 'trigger' command.
type TriggerCmd struct {
	Project  string `arg:"" help:"Project slug"`
	Version  string `short:"V" help:"Version slug (defaults to latest)"`
	NoRecord bool   `name:"no-record" help:"Do not create a build record"`
	Force    bool   `short:"f" help:"Rebuild even when the commit is unchanged"`
	Basic    bool   `help:"Skip the secondary Sphinx formats"`
	Queue    string `short:"q" help:"Queue to route the task to (defaults to queue.default_queue)"`
}

func (t *TriggerCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(root, g.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	project, err := a.store.GetProjectBySlug(ctx, t.Project)
	if err != nil {
		return err
	}
	req := trigger.Request{
		Project: project,
		Record:  !t.NoRecord,
		Force:   t.Force,
		Basic:   t.Basic,
		Queue:   t.Queue,
	}
	if t.Version != "" {
		if req.Version, err = a.store.GetVersionBySlug(ctx, project.ID, t.Version); err != nil {
			return err
		}
	}

	var (
		enqueuer queue.Enqueuer
		local    *queue.LocalQueue
	)
	if a.cfg.Queue.Backend == config.QueueBackendLocal {
		local = a.localQueue(ctx, a.worker())
		defer local.Stop(ctx)
		enqueuer = local
	} else {
		nq, err := a.natsQueue(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = nq.Close() }()
		enqueuer = nq
	}

	build, err := a.trigger(enqueuer).TriggerBuild(ctx, req)
	if err != nil {
		return err
	}
	switch {
	case project.Skip:
		fmt.Printf("Project %s is skipped; nothing triggered\n", project.Slug)
	case build != nil:
		fmt.Printf("Triggered build %d for %s\n", build.ID, project.Slug)
	default:
		fmt.Printf("Triggered unrecorded build for %s\n", project.Slug)
	}

	if local != nil {
		if err := local.Drain(ctx); err != nil {
			return err
		}
		return reportLocal(ctx, local, build, a.store)
	}
	return nil
}

// reportLocal turns the outcome of an in-process build into the command result.
func reportLocal(ctx context.Context, q *queue.LocalQueue, build *store.Build, s *store.SQLiteStore) error {
	for _, job := range q.History() {
		if job.Status == queue.JobFailed {
			return fmt.Errorf("build task failed: %s", job.Error)
		}
	}
	if build == nil {
		return nil
	}
	b, err := s.GetBuild(ctx, build.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Build %d %s (success=%t, commit=%s)\n", b.ID, b.State, b.Success, b.Commit)
	return nil
}
