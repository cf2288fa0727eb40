package vcs

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	ggit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addCommit(t *testing.T, repo *ggit.Repository, dir, name string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name+"\n"), 0o600))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("add "+name, &ggit.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func initRepo(t *testing.T, dir string) (*ggit.Repository, string) {
	t.Helper()
	repo, err := ggit.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.rst"), []byte("Docs\n====\n"), 0o600))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("index.rst")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &ggit.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return repo, hash.String()
}

func TestGitTagsAndCommit(t *testing.T) {
	b, dir := newBackend(t, KindGit, "https://example.com/repo.git", newScripted(nil))
	require.NoError(t, os.MkdirAll(dir, 0o750))
	repo, head := initRepo(t, dir)

	headRef, err := repo.Head()
	require.NoError(t, err)
	_, err = repo.CreateTag("v1.0", headRef.Hash(), nil)
	require.NoError(t, err)
	_, err = repo.CreateTag("v0.9", headRef.Hash(), &ggit.CreateTagOptions{
		Tagger:  &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
		Message: "annotated",
	})
	require.NoError(t, err)

	commit, err := b.Commit(t.Context())
	require.NoError(t, err)
	assert.Equal(t, head, commit)

	assert.Equal(t, []Reference{
		{Identifier: head, VerboseName: "v0.9"},
		{Identifier: head, VerboseName: "v1.0"},
	}, b.Tags(t.Context()))
}

func TestGitTagsWithoutRepository(t *testing.T) {
	b, _ := newBackend(t, KindGit, "u", newScripted(nil))
	tags := b.Tags(t.Context())
	require.NotNil(t, tags)
	assert.Empty(t, tags)

	_, err := b.Commit(t.Context())
	assert.Error(t, err)
}

func TestGitCheckoutIdempotent(t *testing.T) {
	b, dir := newBackend(t, KindGit, "https://example.com/repo.git", newScripted(nil))
	require.NoError(t, os.MkdirAll(dir, 0o750))
	_, head := initRepo(t, dir)

	require.NoError(t, b.Checkout(t.Context(), "master"))
	first, err := b.Commit(t.Context())
	require.NoError(t, err)
	require.NoError(t, b.Checkout(t.Context(), "master"))
	second, err := b.Commit(t.Context())
	require.NoError(t, err)

	assert.Equal(t, head, first)
	assert.Equal(t, first, second)
}

func TestGitCheckoutFollowsUpstream(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	upstream := t.TempDir()
	repo, first := initRepo(t, upstream)

	b, err := New(KindGit, upstream, filepath.Join(t.TempDir(), "checkouts", "latest"), nil)
	require.NoError(t, err)

	require.NoError(t, b.Checkout(t.Context(), "master"))
	got, err := b.Commit(t.Context())
	require.NoError(t, err)
	assert.Equal(t, first, got)

	second := addCommit(t, repo, upstream, "changes.rst")
	require.NoError(t, b.Checkout(t.Context(), "master"))
	got, err = b.Commit(t.Context())
	require.NoError(t, err)
	assert.Equal(t, second, got)

	require.NoError(t, b.Checkout(t.Context(), ""))
	got, err = b.Commit(t.Context())
	require.NoError(t, err)
	assert.Equal(t, second, got)
}
