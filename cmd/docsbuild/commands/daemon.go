package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docsbuild/internal/config"
	"git.home.luguber.info/inful/docsbuild/internal/logfields"
	"git.home.luguber.info/inful/docsbuild/internal/metrics"
	"git.home.luguber.info/inful/docsbuild/internal/queue"
	"git.home.luguber.info/inful/docsbuild/internal/scheduler"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Local  bool     `help:"Run builds on an in-process queue instead of NATS"`
	Queues []string `short:"Q" help:"Queues to consume (defaults to queue.default_queue)"`
}

func (d *DaemonCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(root, g.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if d.Local {
		a.cfg.Queue.Backend = config.QueueBackendLocal
	}
	a.logger.Info("Starting daemon", "queue_backend", string(a.cfg.Queue.Backend))

	wk := a.worker()
	var (
		enqueuer queue.Enqueuer
		errCh    = make(chan error, 2)
	)
	switch a.cfg.Queue.Backend {
	case config.QueueBackendLocal:
		lq := a.localQueue(ctx, wk)
		defer lq.Stop(context.Background())
		a.promReg.MustRegister(prom.NewGaugeFunc(prom.GaugeOpts{
			Namespace: "docsbuild",
			Name:      "local_queue_length",
			Help:      "Tasks waiting in the in-process queue",
		}, func() float64 { return float64(lq.Length()) }))
		enqueuer = lq
	default:
		nq, err := a.natsQueue(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = nq.Close() }()
		enqueuer = nq
		go func() { errCh <- consume(ctx, nq, wk, queuesOrDefault(d.Queues, a.cfg.Queue.DefaultQueue), a) }()
	}

	if interval := a.cfg.RecheckInterval(); interval > 0 {
		sched, err := scheduler.New(a.store, a.trigger(enqueuer), a.logger)
		if err != nil {
			return err
		}
		if _, err := sched.ScheduleRecheck(ctx, interval); err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				a.logger.Warn("Failed to stop scheduler", logfields.Error(err))
			}
		}()
		a.logger.Info("Periodic re-check scheduled", "interval", interval.String())
	}

	if addr := a.cfg.Metrics.ListenAddr; addr != "" {
		srv := metricsServer(addr, a.promReg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		a.logger.Info("Serving metrics", "addr", addr)
	}

	a.logger.Info("Daemon started, waiting for shutdown signal...")
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("daemon error: %w", err)
		}
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received, stopping daemon...")
	}
	return nil
}

func metricsServer(addr string, reg *prom.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
}
