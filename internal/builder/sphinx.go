package builder

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
)

const sphinxConfFile = "conf.py"

// sphinx runs sphinx-build with one Sphinx builder name. Formats that do not
// render straight into the output directory set collect.
type sphinx struct {
	artifact string
	name     string
	collect  func(ctx context.Context, env *Environment, confDir, buildDir, out string) error
}

func (s *sphinx) Type() string { return s.artifact }

func (s *sphinx) Build(ctx context.Context, env *Environment) error {
	confDir, err := FindConfDir(env.CheckoutPath, env.ConfPath)
	if err != nil {
		return err
	}
	out, err := env.prepareOutput(s.artifact)
	if err != nil {
		return err
	}
	target := out
	if s.collect != nil {
		target = filepath.Join(confDir, "_build", s.name)
	}
	args := []string{
		"sphinx-build", "-T", "-E",
		"-b", s.name,
		"-d", filepath.Join("_build", "doctrees-"+s.name),
		"-D", "language=en",
		".", target,
	}
	if err := env.run(ctx, s.artifact, confDir, args...); err != nil {
		return err
	}
	if s.collect != nil {
		return s.collect(ctx, env, confDir, target, out)
	}
	return nil
}

func newSphinx(artifact, name string) Factory {
	return func() Builder { return &sphinx{artifact: artifact, name: name} }
}

func newSphinxPDF() Builder {
	return &sphinx{artifact: "pdf", name: "latex", collect: func(ctx context.Context, env *Environment, _, buildDir, out string) error {
		sources, err := filepath.Glob(filepath.Join(buildDir, "*.tex"))
		if err != nil {
			return err
		}
		for _, tex := range sources {
			if err := env.run(ctx, "pdf", buildDir, "pdflatex", "-interaction=nonstopmode", filepath.Base(tex)); err != nil {
				return err
			}
		}
		return copyMatching(buildDir, "*.pdf", out)
	}}
}

func newSphinxEpub() Builder {
	return &sphinx{artifact: "epub", name: "epub", collect: func(_ context.Context, _ *Environment, _, buildDir, out string) error {
		return copyMatching(buildDir, "*.epub", out)
	}}
}

// SphinxFamily returns the default Sphinx backend family.
func SphinxFamily() Family {
	return Family{
		ID: "sphinx",
		Formats: map[string]Factory{
			FormatHTML:       newSphinx("html", "html"),
			FormatHTMLDir:    newSphinx("htmldir", "dirhtml"),
			FormatSingleHTML: newSphinx("singlehtml", "singlehtml"),
			FormatPDF:        newSphinxPDF,
			FormatEpub:       newSphinxEpub,
			FormatSearch:     newSphinx("json", "json"),
			FormatLocalMedia: newSphinx("htmlzip", "singlehtml"),
		},
	}
}

// FindConfDir returns the directory holding conf.py. An explicit confPath may be
// absolute or relative to checkout; otherwise the shallowest conf.py wins, with
// docs/ and doc/ preferred at equal depth.
func FindConfDir(checkout, confPath string) (string, error) {
	if confPath != "" {
		if !filepath.IsAbs(confPath) {
			confPath = filepath.Join(checkout, confPath)
		}
		if _, err := os.Stat(confPath); err != nil {
			return "", ferrors.WrapError(err, ferrors.CategoryNotFound, "configured conf.py not found").
				WithContext("path", confPath).Build()
		}
		return filepath.Dir(confPath), nil
	}

	var found []string
	err := filepath.WalkDir(checkout, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != checkout && (strings.HasPrefix(d.Name(), ".") || d.Name() == "_build") {
			return filepath.SkipDir
		}
		if !d.IsDir() && d.Name() == sphinxConfFile {
			found = append(found, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search %s for %s: %w", checkout, sphinxConfFile, err)
	}
	if len(found) == 0 {
		return "", ferrors.NotFoundError("no conf.py found in checkout").WithContext("path", checkout).Build()
	}
	sort.Slice(found, func(i, j int) bool {
		di, dj := depth(checkout, found[i]), depth(checkout, found[j])
		if di != dj {
			return di < dj
		}
		pi, pj := preferred(found[i]), preferred(found[j])
		if pi != pj {
			return pi
		}
		return found[i] < found[j]
	})
	return found[0], nil
}

func depth(root, dir string) int {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

func preferred(dir string) bool {
	base := filepath.Base(dir)
	return base == "docs" || base == "doc"
}

func copyMatching(srcDir, pattern, dstDir string) error {
	matches, err := filepath.Glob(filepath.Join(srcDir, pattern))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return ferrors.BuildError("expected build artifact missing").
			WithContext("pattern", pattern).WithContext("path", srcDir).Build()
	}
	for _, src := range matches {
		data, err := os.ReadFile(src) // #nosec G304 -- path comes from our own build directory
		if err != nil {
			return fmt.Errorf("read artifact %s: %w", src, err)
		}
		if err := os.WriteFile(filepath.Join(dstDir, filepath.Base(src)), data, 0o600); err != nil {
			return fmt.Errorf("write artifact: %w", err)
		}
	}
	return nil
}
