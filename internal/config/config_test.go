package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
)

func TestParseAppliesDefaults(t *testing.T) {
	t.Setenv(EnvMultipleAppServers, "")
	t.Setenv(EnvSyncUser, "builder")

	cfg, err := Parse([]byte("database: ./test.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "./test.db", cfg.Database)
	assert.Equal(t, DefaultSphinxBackend, cfg.Builders.SphinxBackend)
	assert.Equal(t, DefaultMkdocsBackend, cfg.Builders.MkdocsBackend)
	assert.Equal(t, QueueBackendLocal, cfg.Queue.Backend)
	assert.Equal(t, DefaultQueueName, cfg.Queue.DefaultQueue)
	assert.Equal(t, 2, cfg.Queue.Workers)
	assert.Equal(t, RetryBackoffLinear, cfg.Retry.Backoff)
	assert.Equal(t, "builder", cfg.Sync.SyncUser)
	assert.Equal(t, DefaultSSHPort, cfg.Sync.Port)
	assert.Empty(t, cfg.Sync.MultipleAppServers)
	assert.Zero(t, cfg.RecheckInterval())
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	t.Setenv(EnvMultipleAppServers, "web1, web2,,")
	t.Setenv(EnvSyncUser, "docs")
	t.Setenv(EnvMkdocsBackend, "mkdocs")
	t.Setenv(EnvSphinxBackend, "sphinx")

	raw := `
builders:
  sphinx_backend: custom-sphinx
  mkdocs_backend: custom-mkdocs
sync:
  multiple_app_servers: [yaml-host]
  sync_user: yaml-user
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, []string{"web1", "web2"}, cfg.Sync.MultipleAppServers)
	assert.Equal(t, "docs", cfg.Sync.SyncUser)
	assert.Equal(t, "sphinx", cfg.Builders.SphinxBackend)
	assert.Equal(t, "mkdocs", cfg.Builders.MkdocsBackend)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv(EnvSyncUser, "docs")
	cases := map[string]string{
		"unknown backend":   "queue:\n  backend: kafka\n",
		"nats without url":  "queue:\n  backend: nats\n",
		"bad backoff":       "retry:\n  backoff: random\n",
		"negative retries":  "retry:\n  max_retries: -1\n",
		"bad duration":      "schedule:\n  recheck_interval: soon\n",
		"negative interval": "retry:\n  initial_delay: -5s\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryConfig), "got %v", err)
		})
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("DOCS_DB", "/var/lib/docsbuild.db")
	t.Setenv(EnvSyncUser, "docs")
	path := filepath.Join(t.TempDir(), "docsbuild.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: ${DOCS_DB}\nschedule:\n  recheck_interval: 15m\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/docsbuild.db", cfg.Database)
	assert.Equal(t, "15m0s", cfg.RecheckInterval().String())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestInitWritesLoadableConfig(t *testing.T) {
	t.Setenv(EnvSyncUser, "docs")
	t.Setenv(EnvMultipleAppServers, "")
	path := filepath.Join(t.TempDir(), "docsbuild.yaml")

	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false), "second init without force must fail")
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, QueueBackendNATS, cfg.Queue.Backend)
	assert.Equal(t, "1h0m0s", cfg.RecheckInterval().String())
}

func TestParseNormalizesEnumSpellings(t *testing.T) {
	t.Setenv(EnvSyncUser, "docs")
	cfg, err := Parse([]byte("queue:\n  backend: JetStream\n  nats_url: nats://localhost:4222\nretry:\n  backoff: ' Exp '\n"))
	require.NoError(t, err)
	assert.Equal(t, QueueBackendNATS, cfg.Queue.Backend)
	assert.Equal(t, RetryBackoffExponential, cfg.Retry.Backoff)
}
