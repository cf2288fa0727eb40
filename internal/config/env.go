package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables recognized as overrides of the YAML configuration.
const (
	EnvMultipleAppServers = "MULTIPLE_APP_SERVERS"
	EnvSyncUser           = "SYNC_USER"
	EnvMkdocsBackend      = "MKDOCS_BACKEND"
	EnvSphinxBackend      = "SPHINX_BACKEND"
)

// loadEnvFile loads .env then .env.local; existing process variables are never overwritten.
func loadEnvFile() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		_ = godotenv.Load(name)
	}
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv(EnvMultipleAppServers); ok {
		cfg.Sync.MultipleAppServers = splitList(v)
	}
	if v := os.Getenv(EnvSyncUser); v != "" {
		cfg.Sync.SyncUser = v
	}
	if v := os.Getenv(EnvMkdocsBackend); v != "" {
		cfg.Builders.MkdocsBackend = v
	}
	if v := os.Getenv(EnvSphinxBackend); v != "" {
		cfg.Builders.SphinxBackend = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
