package commands

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"git.home.luguber.info/inful/docsbuild/internal/config"
	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/docsbuild/internal/logfields"
	"git.home.luguber.info/inful/docsbuild/internal/queue"
	"git.home.luguber.info/inful/docsbuild/internal/worker"
)

// WorkerCmd implements the 'worker' command.
type WorkerCmd struct {
	Queues []string `short:"Q" help:"Queues to consume (defaults to queue.default_queue)"`
}

func (w *WorkerCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(root, g.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Queue.Backend != config.QueueBackendNATS {
		return ferrors.ConfigError("the worker command consumes the nats queue backend; use 'daemon --local' for in-process builds").
			WithContext("backend", string(a.cfg.Queue.Backend)).
			Build()
	}
	nq, err := a.natsQueue(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = nq.Close() }()

	return consume(ctx, nq, a.worker(), queuesOrDefault(w.Queues, a.cfg.Queue.DefaultQueue), a)
}

// consume runs one consumer per queue until ctx is cancelled.
func consume(ctx context.Context, nq *queue.NATSQueue, wk *worker.Worker, queues []string, a *app) error {
	handler := queue.Route(wk.Handlers())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for _, name := range queues {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := nq.Consume(ctx, name, handler); err != nil {
				a.logger.Error("Consumer stopped", logfields.Queue(name), logfields.Error(err))
				once.Do(func() { firstErr = err })
				cancel()
			}
		}()
	}
	wg.Wait()
	return firstErr
}

func queuesOrDefault(queues []string, fallback string) []string {
	if len(queues) == 0 {
		return []string{fallback}
	}
	return queues
}
