package vcs

import "context"

type mercurial struct{ base }

func newMercurial(b base) Backend { return &mercurial{base: b} }

func (*mercurial) SupportsTags() bool     { return true }
func (*mercurial) FallbackBranch() string { return "default" }

func (r *mercurial) Update(ctx context.Context) error {
	return r.update(ctx, []string{"hg", "status"}, r.pull, r.clone)
}

func (r *mercurial) pull(ctx context.Context) error {
	if err := r.must(ctx, "hg revert", "hg", "revert", "--all", "--no-backup"); err != nil {
		return err
	}
	if err := r.must(ctx, "hg pull", "hg", "pull"); err != nil {
		return err
	}
	return r.must(ctx, "hg update", "hg", "update", "-C")
}

func (r *mercurial) clone(ctx context.Context) error {
	return r.must(ctx, "hg clone", "hg", "clone", r.repoURL, ".")
}

func (r *mercurial) Checkout(ctx context.Context, ref string) error {
	if err := r.Update(ctx); err != nil {
		return err
	}
	if ref == "" {
		ref = "tip"
	}
	return r.observeCheckout(r.must(ctx, "hg update", "hg", "update", "-C", ref))
}

func (r *mercurial) Tags(ctx context.Context) []Reference {
	out, err := r.output(ctx, "hg", "tags")
	if err != nil {
		return r.tagsFailed(err)
	}
	return ParseMercurialTags(out)
}

func (r *mercurial) Commit(ctx context.Context) (string, error) {
	return r.output(ctx, "hg", "id", "-i")
}
