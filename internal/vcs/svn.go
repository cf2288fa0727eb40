package vcs

import (
	"context"
	"strings"
)

type subversion struct {
	base
	baseURL string
}

// newSubversion normalizes the repository URL to end in a slash and derives the
// base URL that tags and switch targets are resolved against, dropping a
// trailing trunk component.
func newSubversion(b base) Backend {
	if !strings.HasSuffix(b.repoURL, "/") {
		b.repoURL += "/"
	}
	baseURL := strings.TrimSuffix(b.repoURL, "trunk/")
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &subversion{base: b, baseURL: baseURL}
}

func (*subversion) SupportsTags() bool     { return false }
func (*subversion) FallbackBranch() string { return "/trunk/" }

func (r *subversion) Update(ctx context.Context) error {
	return r.update(ctx, []string{"svn", "status"}, r.up, r.clone)
}

func (r *subversion) up(ctx context.Context) error {
	if err := r.must(ctx, "svn revert", "svn", "revert", "--recursive", "."); err != nil {
		return err
	}
	return r.must(ctx, "svn up", "svn", "up", "--accept", "theirs-full", "--trust-server-cert", "--non-interactive")
}

func (r *subversion) clone(ctx context.Context) error {
	return r.must(ctx, "svn checkout", "svn", "checkout", "--quiet", r.repoURL, ".")
}

func (r *subversion) Checkout(ctx context.Context, ref string) error {
	if err := r.Update(ctx); err != nil {
		return err
	}
	if ref == "" {
		return r.observeCheckout(r.must(ctx, "svn up", "svn", "up"))
	}
	return r.observeCheckout(r.must(ctx, "svn switch", "svn", "switch", r.baseURL+ref))
}

func (r *subversion) Tags(ctx context.Context) []Reference {
	out, err := r.output(ctx, "svn", "list", r.baseURL+"/tags/")
	if err != nil {
		return r.tagsFailed(err)
	}
	return ParseSubversionTags(out)
}

func (r *subversion) Commit(ctx context.Context) (string, error) {
	return r.output(ctx, "svnversion")
}
