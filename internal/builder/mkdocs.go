package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const mkdocsConfigFile = "mkdocs.yml"

// mkdocs runs `mkdocs <subcommand>` into the output directory.
type mkdocs struct {
	artifact   string
	subcommand string
}

func (m *mkdocs) Type() string { return m.artifact }

func (m *mkdocs) Build(ctx context.Context, env *Environment) error {
	if err := ensureMkdocsConfig(env); err != nil {
		return err
	}
	out, err := env.prepareOutput(m.artifact)
	if err != nil {
		return err
	}
	return env.run(ctx, "mkdocs", env.CheckoutPath, "mkdocs", m.subcommand, "--clean", "--site-dir", out)
}

type mkdocsConfig struct {
	SiteName string `yaml:"site_name"`
	DocsDir  string `yaml:"docs_dir"`
}

// ensureMkdocsConfig writes a minimal mkdocs.yml when the project has none.
func ensureMkdocsConfig(env *Environment) error {
	path := filepath.Join(env.CheckoutPath, mkdocsConfigFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	cfg := mkdocsConfig{SiteName: env.Project, DocsDir: "."}
	if info, err := os.Stat(filepath.Join(env.CheckoutPath, "docs")); err == nil && info.IsDir() {
		cfg.DocsDir = "docs"
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", mkdocsConfigFile, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", mkdocsConfigFile, err)
	}
	return nil
}

// MkdocsFamily returns the default MkDocs backend family.
func MkdocsFamily() Family {
	return Family{
		ID: "mkdocs",
		Formats: map[string]Factory{
			FormatHTML: func() Builder { return &mkdocs{artifact: "html", subcommand: "build"} },
			FormatJSON: func() Builder { return &mkdocs{artifact: "json", subcommand: "json"} },
		},
	}
}
