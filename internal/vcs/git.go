package vcs

import (
	"context"
	"fmt"
	"sort"

	ggit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

type gitRepo struct{ base }

func newGit(b base) Backend { return &gitRepo{base: b} }

func (*gitRepo) SupportsTags() bool     { return true }
func (*gitRepo) FallbackBranch() string { return "master" }

func (r *gitRepo) Update(ctx context.Context) error {
	return r.update(ctx, []string{"git", "status"}, r.fetch, r.clone)
}

func (r *gitRepo) fetch(ctx context.Context) error {
	if err := r.must(ctx, "git reset", "git", "reset", "--hard"); err != nil {
		return err
	}
	return r.must(ctx, "git fetch", "git", "fetch", "--tags", "--prune")
}

func (r *gitRepo) clone(ctx context.Context) error {
	return r.must(ctx, "git clone", "git", "clone", "--recursive", "--quiet", r.repoURL, ".")
}

func (r *gitRepo) Checkout(ctx context.Context, ref string) error {
	if err := r.Update(ctx); err != nil {
		return err
	}
	if ref == "" {
		ref = r.FallbackBranch()
	}
	args := []string{"git", "checkout", "--force", "--quiet", ref}
	if remote, ok := r.remoteBranch(ref); ok {
		// Move the local branch onto the fetched tip; a plain checkout keeps it stale.
		args = []string{"git", "checkout", "--force", "--quiet", "-B", ref, remote}
	}
	if err := r.must(ctx, "git checkout", args...); err != nil {
		return r.observeCheckout(err)
	}
	return r.observeCheckout(r.must(ctx, "git clean", "git", "clean", "-d", "-f", "-f"))
}

// remoteBranch reports the origin tracking ref for ref when ref names a branch there.
func (r *gitRepo) remoteBranch(ref string) (string, bool) {
	repo, err := ggit.PlainOpen(r.dir)
	if err != nil {
		return "", false
	}
	name := plumbing.NewRemoteReferenceName("origin", ref)
	if _, err := repo.Reference(name, true); err != nil {
		return "", false
	}
	return name.Short(), true
}

// Tags lists tag refs with annotated tags peeled to their commit hash.
func (r *gitRepo) Tags(_ context.Context) []Reference {
	repo, err := ggit.PlainOpen(r.dir)
	if err != nil {
		return r.tagsFailed(err)
	}
	iter, err := repo.Tags()
	if err != nil {
		return r.tagsFailed(err)
	}
	refs := []Reference{}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		if tag, terr := repo.TagObject(hash); terr == nil {
			if commit, cerr := tag.Commit(); cerr == nil {
				hash = commit.Hash
			}
		}
		refs = append(refs, Reference{Identifier: hash.String(), VerboseName: ref.Name().Short()})
		return nil
	})
	if err != nil {
		return r.tagsFailed(err)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].VerboseName < refs[j].VerboseName })
	return refs
}

func (r *gitRepo) Commit(_ context.Context) (string, error) {
	repo, err := ggit.PlainOpen(r.dir)
	if err != nil {
		return "", fmt.Errorf("open repository %s: %w", r.dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD in %s: %w", r.dir, err)
	}
	return head.Hash().String(), nil
}
