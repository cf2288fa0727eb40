package vcs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"git.home.luguber.info/inful/docsbuild/internal/command"
	"git.home.luguber.info/inful/docsbuild/internal/foundation"
	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/docsbuild/internal/metrics"
)

// Reference names something that can be checked out: a branch, tag or revision.
type Reference struct {
	Identifier  string `json:"identifier"`
	VerboseName string `json:"verbose_name"`
}

// Backend is the capability set shared by all supported version-control systems.
// A Backend is bound to one repository URL and one working directory.
type Backend interface {
	// Kind returns the repository kind (bzr, git, hg, svn).
	Kind() string
	// Update brings the working directory to a clean state matching the remote.
	Update(ctx context.Context) error
	// Checkout updates, then moves to ref or to the default tracking state when ref is empty.
	Checkout(ctx context.Context, ref string) error
	// Tags lists tags; listing failures yield an empty slice.
	Tags(ctx context.Context) []Reference
	// Commit returns the identifier of the checked out revision.
	Commit(ctx context.Context) (string, error)
	SupportsTags() bool
	FallbackBranch() string
}

// Kinds of repositories understood by New.
const (
	KindBazaar     = "bzr"
	KindGit        = "git"
	KindMercurial  = "hg"
	KindSubversion = "svn"
)

// Option customizes a backend created by New.
type Option func(*base)

// WithRecorder reports VCS operation results to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(b *base) { b.recorder = metrics.OrNoop(r) }
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

type constructor func(b base) Backend

var constructors = map[string]constructor{
	KindBazaar:     newBazaar,
	KindGit:        newGit,
	KindMercurial:  newMercurial,
	KindSubversion: newSubversion,
}

// kindNames accepts the kinds plus their long names, in any case.
var kindNames = foundation.NewNormalizer("repository kind", map[string]string{
	KindBazaar:     KindBazaar,
	"bazaar":       KindBazaar,
	KindGit:        KindGit,
	KindMercurial:  KindMercurial,
	"mercurial":    KindMercurial,
	KindSubversion: KindSubversion,
	"subversion":   KindSubversion,
}, "")

// Kinds returns the supported repository kinds, sorted.
func Kinds() []string {
	out := make([]string, 0, len(constructors))
	for k := range constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New returns the backend for kind bound to repoURL and workingDir. A nil runner
// runs commands without posting them anywhere.
func New(kind, repoURL, workingDir string, runner *command.Runner, opts ...Option) (Backend, error) {
	canonical, _ := kindNames.Normalize(kind)
	ctor, ok := constructors[canonical]
	if !ok {
		return nil, ferrors.WrapError(ErrUnknownKind, ferrors.CategoryValidation,
			fmt.Sprintf("unsupported repository kind %q", kind)).
			UserAction().
			WithContext("kind", kind).
			Build()
	}
	if runner == nil {
		runner = &command.Runner{}
	}
	b := base{
		kind:     canonical,
		repoURL:  repoURL,
		dir:      workingDir,
		runner:   runner,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return ctor(b), nil
}
