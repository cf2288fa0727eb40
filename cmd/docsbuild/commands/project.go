package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/docsbuild/internal/store"
	"git.home.luguber.info/inful/docsbuild/internal/vcs"
)

// ProjectCmd groups project management commands.
type ProjectCmd struct {
	Add  ProjectAddCmd  `cmd:"" help:"Register a project and its latest version"`
	List ProjectListCmd `cmd:"" help:"List registered projects"`
}

// ProjectAddCmd implements 'project add'.
type ProjectAddCmd struct {
	Name          string `arg:"" help:"Project name"`
	Repo          string `arg:"" help:"Repository URL"`
	RepoType      string `name:"repo-type" short:"t" help:"Repository kind (bzr, git, hg, svn)" default:"git"`
	Slug          string `help:"Project slug (derived from the name when empty)"`
	DefaultBranch string `name:"default-branch" help:"Branch tracked by the latest version"`
	Builder       string `short:"b" help:"Documentation builder" default:"sphinx"`
	ConfPath      string `name:"conf-path" help:"Path to conf.py inside the repository"`
	Skip          bool   `help:"Register the project with builds disabled"`
}

func (p *ProjectAddCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	a, err := newApp(root, g.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.registry.Get(p.Builder); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "unknown documentation builder").
			WithContext("builder", p.Builder).Build()
	}
	backend, err := vcs.New(p.RepoType, p.Repo, "", nil)
	if err != nil {
		return err
	}

	slug := p.Slug
	if slug == "" {
		slug = store.Slugify(p.Name)
	}
	project := &store.Project{
		Slug:              slug,
		Name:              p.Name,
		Repo:              p.Repo,
		RepoType:          backend.Kind(),
		DefaultBranch:     p.DefaultBranch,
		DocumentationType: p.Builder,
		ConfPath:          p.ConfPath,
		Skip:              p.Skip,
	}
	if err := a.store.CreateProject(ctx, project); err != nil {
		return err
	}

	identifier := p.DefaultBranch
	if identifier == "" {
		identifier = backend.FallbackBranch()
	}
	latest := &store.Version{
		ProjectID:   project.ID,
		Slug:        store.LatestSlug,
		Identifier:  identifier,
		VerboseName: store.LatestSlug,
		Type:        store.VersionBranch,
		Active:      true,
	}
	if err := a.store.CreateVersion(ctx, latest); err != nil {
		return err
	}
	fmt.Printf("Registered project %s (id %d)\n", project.Slug, project.ID)
	return nil
}

// ProjectListCmd implements 'project list'.
type ProjectListCmd struct{}

func (ProjectListCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	a, err := newApp(root, g.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	projects, err := a.store.ListProjects(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SLUG\tKIND\tBUILDER\tSKIP\tREPOSITORY")
	for _, p := range projects {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", p.Slug, p.RepoType, p.DocumentationType, p.Skip, p.Repo)
	}
	return tw.Flush()
}
