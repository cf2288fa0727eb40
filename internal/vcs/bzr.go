package vcs

import "context"

type bazaar struct{ base }

func newBazaar(b base) Backend { return &bazaar{base: b} }

func (*bazaar) SupportsTags() bool     { return true }
func (*bazaar) FallbackBranch() string { return "" }

func (r *bazaar) Update(ctx context.Context) error {
	return r.update(ctx, []string{"bzr", "status"}, r.up, r.clone)
}

func (r *bazaar) up(ctx context.Context) error {
	if err := r.must(ctx, "bzr revert", "bzr", "revert"); err != nil {
		return err
	}
	return r.must(ctx, "bzr up", "bzr", "up")
}

func (r *bazaar) clone(ctx context.Context) error {
	return r.must(ctx, "bzr checkout", "bzr", "checkout", r.repoURL, ".")
}

func (r *bazaar) Checkout(ctx context.Context, ref string) error {
	if err := r.Update(ctx); err != nil {
		return err
	}
	if ref == "" {
		return r.observeCheckout(r.must(ctx, "bzr up", "bzr", "up"))
	}
	return r.observeCheckout(r.must(ctx, "bzr switch", "bzr", "switch", ref))
}

func (r *bazaar) Tags(ctx context.Context) []Reference {
	out, err := r.output(ctx, "bzr", "tags")
	if err != nil {
		return r.tagsFailed(err)
	}
	return ParseBazaarTags(out)
}

func (r *bazaar) Commit(ctx context.Context) (string, error) {
	return r.output(ctx, "bzr", "revno")
}
