package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"git.home.luguber.info/inful/docsbuild/internal/command"
	"git.home.luguber.info/inful/docsbuild/internal/vcs"
)

// TagsCmd implements the 'tags' command.
type TagsCmd struct {
	Kind string `arg:"" help:"Repository kind (bzr, git, hg, svn)"`
	URL  string `arg:"" help:"Repository URL"`
	Dir  string `short:"d" help:"Working directory for the checkout" default:"./tags-checkout"`
}

func (t *TagsCmd) Run(g *Global, _ *CLI) error {
	ctx := context.Background()
	backend, err := vcs.New(t.Kind, t.URL, t.Dir, &command.Runner{Logger: g.Logger}, vcs.WithLogger(g.Logger))
	if err != nil {
		return err
	}
	if !backend.SupportsTags() {
		fmt.Printf("%s repositories do not expose tags\n", backend.Kind())
		return nil
	}
	if err := backend.Update(ctx); err != nil {
		return err
	}
	return printTags(os.Stdout, backend.Tags(ctx))
}

func printTags(out io.Writer, tags []vcs.Reference) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tIDENTIFIER")
	for _, ref := range tags {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", ref.VerboseName, ref.Identifier)
	}
	return tw.Flush()
}
