package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/docsbuild/internal/builder"
	"git.home.luguber.info/inful/docsbuild/internal/config"
	"git.home.luguber.info/inful/docsbuild/internal/metrics"
	"git.home.luguber.info/inful/docsbuild/internal/queue"
	"git.home.luguber.info/inful/docsbuild/internal/retry"
	"git.home.luguber.info/inful/docsbuild/internal/store"
	"git.home.luguber.info/inful/docsbuild/internal/trigger"
	"git.home.luguber.info/inful/docsbuild/internal/worker"
)

// EnvLogLevel selects the log level when --verbose is not given.
const EnvLogLevel = "DOCSBUILD_LOG_LEVEL"

// Global is shared state passed to every subcommand.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docsbuild.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Trigger TriggerCmd `cmd:"" help:"Trigger a documentation build for a project"`
	Worker  WorkerCmd  `cmd:"" help:"Consume build tasks from the NATS queue"`
	Daemon  DaemonCmd  `cmd:"" help:"Run workers, the periodic re-check and the metrics endpoint"`
	Tags    TagsCmd    `cmd:"" help:"List the tags of a repository"`
	Project ProjectCmd `cmd:"" help:"Manage projects"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; it sets up logging once.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	} else if v := os.Getenv(EnvLogLevel); v != "" {
		if err := level.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvLogLevel, v, err)
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	g.Logger = logger
	return nil
}

// app holds the collaborators assembled from configuration.
type app struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	registry *builder.Registry
	promReg  *prom.Registry
	recorder *metrics.PrometheusRecorder
	policy   retry.Policy
	logger   *slog.Logger
}

func newApp(root *CLI, logger *slog.Logger) (*app, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	registry, err := builder.NewRegistry(builder.DefaultCatalog(), cfg.Builders.SphinxBackend, cfg.Builders.MkdocsBackend)
	if err != nil {
		return nil, err
	}
	policy, err := retry.FromConfig(cfg.Retry)
	if err != nil {
		return nil, err
	}
	s, err := store.NewSQLiteStore(cfg.Database)
	if err != nil {
		return nil, err
	}
	reg := prom.NewRegistry()
	reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	return &app{
		cfg:      cfg,
		store:    s,
		registry: registry,
		promReg:  reg,
		recorder: metrics.NewPrometheusRecorder(reg),
		policy:   policy,
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close store", "error", err)
	}
}

func (a *app) worker() *worker.Worker {
	return worker.New(a.cfg, a.store, a.registry,
		worker.WithRecorder(a.recorder), worker.WithLogger(a.logger))
}

func (a *app) trigger(q queue.Enqueuer) *trigger.Trigger {
	return trigger.New(a.store, q,
		trigger.WithDefaultQueue(a.cfg.Queue.DefaultQueue),
		trigger.WithRecorder(a.recorder),
		trigger.WithLogger(a.logger))
}


// localQueue returns a started in-process queue executing tasks with w.
func (a *app) localQueue(ctx context.Context, w *worker.Worker) *queue.LocalQueue {
	q := queue.NewLocalQueue(a.cfg.Queue.MaxSize, a.cfg.Queue.Workers, queue.Route(w.Handlers()))
	q.SetRetryPolicy(a.policy)
	q.Start(ctx)
	return q
}

func (a *app) natsQueue(ctx context.Context) (*queue.NATSQueue, error) {
	return queue.NewNATSQueue(ctx, a.cfg.Queue, a.policy)
}
