package vcs

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsbuild/internal/command"
	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
)

type scriptedResult struct {
	code   int
	output string
	stderr string
}

// scriptedLauncher answers commands by their longest matching line prefix.
type scriptedLauncher struct {
	mu      sync.Mutex
	results map[string]scriptedResult
	lines   []string
}

func newScripted(results map[string]scriptedResult) *scriptedLauncher {
	return &scriptedLauncher{results: results}
}

func (s *scriptedLauncher) Launch(spec command.Spec, stdout, stderr io.Writer) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := spec.Line()
	s.lines = append(s.lines, line)
	best := ""
	for prefix := range s.results {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return 0, nil
	}
	res := s.results[best]
	_, _ = io.WriteString(stdout, res.output)
	_, _ = io.WriteString(stderr, res.stderr)
	return res.code, nil
}

func (s *scriptedLauncher) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func newBackend(t *testing.T, kind, url string, l command.Launcher) (Backend, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "checkouts", "latest")
	b, err := New(kind, url, dir, &command.Runner{Launcher: l})
	require.NoError(t, err)
	return b, dir
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New("cvs", "http://example.com/repo", t.TempDir(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestNewAcceptsLongKindNames(t *testing.T) {
	for raw, want := range map[string]string{"Mercurial": KindMercurial, " bazaar ": KindBazaar, "SVN": KindSubversion, "git": KindGit} {
		b, err := New(raw, "http://example.com/repo", t.TempDir(), nil)
		require.NoError(t, err, raw)
		assert.Equal(t, want, b.Kind())
	}
	_, err := New("", "http://example.com/repo", t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestKinds(t *testing.T) {
	assert.Equal(t, []string{"bzr", "git", "hg", "svn"}, Kinds())
}

func TestStaticCapabilities(t *testing.T) {
	cases := []struct {
		kind     string
		tags     bool
		fallback string
	}{
		{KindBazaar, true, ""},
		{KindGit, true, "master"},
		{KindMercurial, true, "default"},
		{KindSubversion, false, "/trunk/"},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			b, _ := newBackend(t, tc.kind, "http://example.com/repo", newScripted(nil))
			assert.Equal(t, tc.kind, b.Kind())
			assert.Equal(t, tc.tags, b.SupportsTags())
			assert.Equal(t, tc.fallback, b.FallbackBranch())
		})
	}
}

func TestUpdateClonesWhenProbeFails(t *testing.T) {
	l := newScripted(map[string]scriptedResult{"bzr status": {code: 3}})
	b, dir := newBackend(t, KindBazaar, "lp:project", l)

	require.NoError(t, os.MkdirAll(dir, 0o750))
	stale := filepath.Join(dir, "stale.txt")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))

	require.NoError(t, b.Update(t.Context()))
	assert.Equal(t, []string{"bzr status", "bzr checkout lp:project ."}, l.calls())
	assert.NoFileExists(t, stale)
	assert.DirExists(t, dir)
}

func TestUpdateRefreshesWhenProbeSucceeds(t *testing.T) {
	l := newScripted(nil)
	b, _ := newBackend(t, KindBazaar, "lp:project", l)

	require.NoError(t, b.Update(t.Context()))
	assert.Equal(t, []string{"bzr status", "bzr revert", "bzr up"}, l.calls())
}

func TestUpdateCommandSequences(t *testing.T) {
	cases := []struct {
		kind    string
		url     string
		refresh []string
		clone   []string
	}{
		{
			kind:    KindGit,
			url:     "https://example.com/repo.git",
			refresh: []string{"git status", "git reset --hard", "git fetch --tags --prune"},
			clone:   []string{"git status", "git clone --recursive --quiet https://example.com/repo.git ."},
		},
		{
			kind:    KindMercurial,
			url:     "https://example.com/hg/repo",
			refresh: []string{"hg status", "hg revert --all --no-backup", "hg pull", "hg update -C"},
			clone:   []string{"hg status", "hg clone https://example.com/hg/repo ."},
		},
		{
			kind:    KindSubversion,
			url:     "https://example.com/svn/proj/trunk",
			refresh: []string{"svn status", "svn revert --recursive .", "svn up --accept theirs-full --trust-server-cert --non-interactive"},
			clone:   []string{"svn status", "svn checkout --quiet https://example.com/svn/proj/trunk/ ."},
		},
	}
	for _, tc := range cases {
		t.Run(tc.kind+"/refresh", func(t *testing.T) {
			l := newScripted(nil)
			b, _ := newBackend(t, tc.kind, tc.url, l)
			require.NoError(t, b.Update(t.Context()))
			assert.Equal(t, tc.refresh, l.calls())
		})
		t.Run(tc.kind+"/clone", func(t *testing.T) {
			l := newScripted(map[string]scriptedResult{tc.kind + " status": {code: 1}})
			b, _ := newBackend(t, tc.kind, tc.url, l)
			require.NoError(t, b.Update(t.Context()))
			assert.Equal(t, tc.clone, l.calls())
		})
	}
}

func TestUpdateFailureIsImportError(t *testing.T) {
	cases := map[string]struct {
		kind   string
		script map[string]scriptedResult
		op     string
		code   int
	}{
		"bzr revert": {KindBazaar, map[string]scriptedResult{"bzr revert": {code: 3}}, "bzr revert", 3},
		"bzr up":     {KindBazaar, map[string]scriptedResult{"bzr up": {code: 4}}, "bzr up", 4},
		"git clone": {KindGit, map[string]scriptedResult{
			"git status": {code: 128}, "git clone": {code: 128},
		}, "git clone", 128},
		"hg pull": {KindMercurial, map[string]scriptedResult{"hg pull": {code: 255}}, "hg pull", 255},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			b, _ := newBackend(t, tc.kind, "https://example.com/repo", newScripted(tc.script))
			err := b.Update(t.Context())
			require.Error(t, err)

			var ie *ImportError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tc.op, ie.Op)
			assert.Equal(t, tc.code, ie.ExitCode)
			assert.Equal(t, "https://example.com/repo", ie.URL)
			assert.True(t, IsImportError(err))
		})
	}
}

func TestCheckoutCommands(t *testing.T) {
	cases := []struct {
		kind string
		url  string
		ref  string
		want []string
	}{
		{KindBazaar, "lp:p", "", []string{"bzr up"}},
		{KindBazaar, "lp:p", "release-1.0", []string{"bzr switch release-1.0"}},
		{KindGit, "u", "", []string{"git checkout --force --quiet master", "git clean -d -f -f"}},
		{KindGit, "u", "v1.0", []string{"git checkout --force --quiet v1.0", "git clean -d -f -f"}},
		{KindMercurial, "u", "", []string{"hg update -C tip"}},
		{KindMercurial, "u", "stable", []string{"hg update -C stable"}},
		{KindSubversion, "https://example.com/svn/proj/trunk/", "", []string{"svn up"}},
		{KindSubversion, "https://example.com/svn/proj/trunk/", "/tags/1.0/", []string{"svn switch https://example.com/svn/proj/tags/1.0/"}},
	}
	for _, tc := range cases {
		t.Run(tc.kind+"/"+tc.ref, func(t *testing.T) {
			l := newScripted(nil)
			b, _ := newBackend(t, tc.kind, tc.url, l)
			require.NoError(t, b.Checkout(t.Context(), tc.ref))

			calls := l.calls()
			require.GreaterOrEqual(t, len(calls), len(tc.want))
			assert.Equal(t, tc.want, calls[len(calls)-len(tc.want):])
			assert.Equal(t, tc.kind+" status", calls[0])
		})
	}
}

func TestCheckoutSwitchFailure(t *testing.T) {
	l := newScripted(map[string]scriptedResult{"bzr switch": {code: 3}})
	b, _ := newBackend(t, KindBazaar, "lp:p", l)

	err := b.Checkout(t.Context(), "missing")
	var ie *ImportError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "bzr switch", ie.Op)
	assert.Equal(t, 3, ie.ExitCode)
}

func TestCheckoutStopsOnUpdateFailure(t *testing.T) {
	l := newScripted(map[string]scriptedResult{"git reset": {code: 1}})
	b, _ := newBackend(t, KindGit, "u", l)

	require.Error(t, b.Checkout(t.Context(), "v1"))
	for _, c := range l.calls() {
		assert.NotContains(t, c, "git checkout")
	}
}

func TestBazaarTags(t *testing.T) {
	out := "0.1.0                171\n3.3.0-rc1            ?\ntag with spaces      123\n"
	l := newScripted(map[string]scriptedResult{"bzr tags": {output: out}})
	b, _ := newBackend(t, KindBazaar, "lp:p", l)

	assert.Equal(t, []Reference{
		{Identifier: "171", VerboseName: "0.1.0"},
		{Identifier: "123", VerboseName: "tag with spaces"},
	}, b.Tags(t.Context()))
}

func TestTagsCommandFailureYieldsEmpty(t *testing.T) {
	l := newScripted(map[string]scriptedResult{"hg tags": {code: 255, output: "abort: no repository"}})
	b, _ := newBackend(t, KindMercurial, "u", l)

	tags := b.Tags(t.Context())
	require.NotNil(t, tags)
	assert.Empty(t, tags)
}

func TestMercurialTags(t *testing.T) {
	out := "tip                                8:2b4c6f1e9d3a\n1.0                                5:9a8b7c6d5e4f\nrelease candidate                  3:0011aabbccdd\n"
	l := newScripted(map[string]scriptedResult{"hg tags": {output: out}})
	b, _ := newBackend(t, KindMercurial, "u", l)

	assert.Equal(t, []Reference{
		{Identifier: "9a8b7c6d5e4f", VerboseName: "1.0"},
		{Identifier: "0011aabbccdd", VerboseName: "release candidate"},
	}, b.Tags(t.Context()))
}

func TestSubversionTags(t *testing.T) {
	l := newScripted(map[string]scriptedResult{
		"svn list https://example.com/svn/proj/tags/": {output: "1.0/\n1.1/\n\n"},
	})
	b, _ := newBackend(t, KindSubversion, "https://example.com/svn/proj/trunk", l)

	assert.Equal(t, []Reference{
		{Identifier: "/tags/1.0/", VerboseName: "1.0"},
		{Identifier: "/tags/1.1/", VerboseName: "1.1"},
	}, b.Tags(t.Context()))
}

func TestCommitFromCommandOutput(t *testing.T) {
	cases := []struct {
		kind, prefix, output, want string
	}{
		{KindBazaar, "bzr revno", "171\n", "171"},
		{KindMercurial, "hg id -i", "2b4c6f1e9d3a+\n", "2b4c6f1e9d3a+"},
		{KindSubversion, "svnversion", "4123M\n", "4123M"},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			l := newScripted(map[string]scriptedResult{tc.prefix: {output: tc.output}})
			b, _ := newBackend(t, tc.kind, "https://example.com/r", l)
			got, err := b.Commit(t.Context())
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCommitCommandFailure(t *testing.T) {
	l := newScripted(map[string]scriptedResult{"bzr revno": {code: 3}})
	b, _ := newBackend(t, KindBazaar, "lp:p", l)
	_, err := b.Commit(t.Context())
	assert.Error(t, err)
}

func TestQueriesIgnoreStandardError(t *testing.T) {
	warning := "bzr: warning: some compiled extensions could not be loaded; see <https://answers.launchpad.net/bzr/+faq/703>\n"
	l := newScripted(map[string]scriptedResult{
		"bzr tags":  {output: "0.1.0                171\n", stderr: warning},
		"bzr revno": {output: "171\n", stderr: warning},
	})
	b, _ := newBackend(t, KindBazaar, "lp:p", l)

	assert.Equal(t, []Reference{{Identifier: "171", VerboseName: "0.1.0"}}, b.Tags(t.Context()))
	commit, err := b.Commit(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "171", commit)
}
