package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the build core configuration.
type Config struct {
	Database  string         `yaml:"database"`
	Workspace string         `yaml:"workspace"`
	Output    string         `yaml:"output"`
	Builders  BuildersConfig `yaml:"builders"`
	Sync      SyncConfig     `yaml:"sync"`
	Queue     QueueConfig    `yaml:"queue"`
	Retry     RetryConfig    `yaml:"retry"`
	Schedule  ScheduleConfig `yaml:"schedule"`
	Metrics   MetricsConfig  `yaml:"metrics"`
}

// BuildersConfig names the backend families resolved into the builder registry.
type BuildersConfig struct {
	SphinxBackend string `yaml:"sphinx_backend"` // SPHINX_BACKEND
	MkdocsBackend string `yaml:"mkdocs_backend"` // MKDOCS_BACKEND
}

// SyncConfig controls mirroring of commands and artifacts to application servers.
type SyncConfig struct {
	MultipleAppServers []string `yaml:"multiple_app_servers"` // MULTIPLE_APP_SERVERS
	SyncUser           string   `yaml:"sync_user"`            // SYNC_USER
	SSHKeyPath         string   `yaml:"ssh_key_path,omitempty"`
	Port               int      `yaml:"port,omitempty"`
}

// QueueBackend selects the async work queue implementation.
type QueueBackend string

const (
	QueueBackendNATS  QueueBackend = "nats"
	QueueBackendLocal QueueBackend = "local"
)

// QueueConfig configures the async work queue.
type QueueConfig struct {
	Backend       QueueBackend `yaml:"backend"`
	NATSURL       string       `yaml:"nats_url,omitempty"`
	Stream        string       `yaml:"stream,omitempty"`
	SubjectPrefix string       `yaml:"subject_prefix,omitempty"`
	DefaultQueue  string       `yaml:"default_queue,omitempty"`
	Workers       int          `yaml:"workers,omitempty"`
	MaxSize       int          `yaml:"max_size,omitempty"`
}

// RetryConfig configures redelivery of failed queue tasks.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
	MaxRetries   int              `yaml:"max_retries"`
}

// ScheduleConfig configures the periodic re-check.
type ScheduleConfig struct {
	RecheckInterval string `yaml:"recheck_interval,omitempty"` // empty disables
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr,omitempty"` // empty disables
}

// Load reads configPath, expands environment variables, applies env overrides and defaults,
// then validates the result.
func Load(configPath string) (*Config, error) {
	loadEnvFile()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes YAML configuration content and finalizes it the same way Load does.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyEnvOverrides(&cfg)
	if err := normalizeEnums(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Database:  "./docsbuild.db",
		Workspace: "./workspace",
		Output:    "./artifacts",
		Builders:  BuildersConfig{SphinxBackend: DefaultSphinxBackend, MkdocsBackend: DefaultMkdocsBackend},
		Queue: QueueConfig{
			Backend:       QueueBackendNATS,
			NATSURL:       "nats://127.0.0.1:4222",
			Stream:        DefaultStream,
			SubjectPrefix: DefaultSubjectPrefix,
			DefaultQueue:  DefaultQueueName,
			Workers:       2,
		},
		Retry:    RetryConfig{Backoff: RetryBackoffLinear, InitialDelay: "1s", MaxDelay: "30s", MaxRetries: 2},
		Schedule: ScheduleConfig{RecheckInterval: "1h"},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
