package config

import (
	"os/user"
)

const (
	DefaultSphinxBackend = "sphinx"
	DefaultMkdocsBackend = "mkdocs"
	DefaultStream        = "DOCSBUILD"
	DefaultSubjectPrefix = "docsbuild.tasks"
	DefaultQueueName     = "default"
	DefaultSSHPort       = 22
)

func applyDefaults(cfg *Config) {
	if cfg.Database == "" {
		cfg.Database = "./docsbuild.db"
	}
	if cfg.Workspace == "" {
		cfg.Workspace = "./workspace"
	}
	if cfg.Output == "" {
		cfg.Output = "./artifacts"
	}
	if cfg.Builders.SphinxBackend == "" {
		cfg.Builders.SphinxBackend = DefaultSphinxBackend
	}
	if cfg.Builders.MkdocsBackend == "" {
		cfg.Builders.MkdocsBackend = DefaultMkdocsBackend
	}
	if cfg.Sync.SyncUser == "" {
		if u, err := user.Current(); err == nil {
			cfg.Sync.SyncUser = u.Username
		}
	}
	if cfg.Sync.Port <= 0 {
		cfg.Sync.Port = DefaultSSHPort
	}

	q := &cfg.Queue
	if q.Backend == "" {
		q.Backend = QueueBackendLocal
	}
	if q.Stream == "" {
		q.Stream = DefaultStream
	}
	if q.SubjectPrefix == "" {
		q.SubjectPrefix = DefaultSubjectPrefix
	}
	if q.DefaultQueue == "" {
		q.DefaultQueue = DefaultQueueName
	}
	if q.Workers <= 0 {
		q.Workers = 2
	}
	if q.MaxSize <= 0 {
		q.MaxSize = 100
	}

	if cfg.Retry.Backoff == "" {
		cfg.Retry.Backoff = RetryBackoffLinear
	}
}
