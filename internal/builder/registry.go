package builder

import (
	"errors"
	"fmt"
	"sort"

	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
)

// ErrUnknownBuilder is returned when a builder name is not registered.
var ErrUnknownBuilder = errors.New("unknown builder")

// Formats a backend family may supply.
const (
	FormatHTML       = "html"
	FormatHTMLDir    = "htmldir"
	FormatSingleHTML = "singlehtml"
	FormatPDF        = "pdf"
	FormatEpub       = "epub"
	FormatSearch     = "search"
	FormatLocalMedia = "localmedia"
	FormatJSON       = "json"
)

// Family is one backend implementation of a toolchain, keyed by format.
type Family struct {
	ID      string
	Formats map[string]Factory
}

// Catalog holds the backend families that configuration may select by ID.
type Catalog struct {
	families map[string]Family
}

// NewCatalog returns a catalog of families; later duplicates replace earlier ones.
func NewCatalog(families ...Family) *Catalog {
	c := &Catalog{families: make(map[string]Family, len(families))}
	for _, f := range families {
		c.families[f.ID] = f
	}
	return c
}

// DefaultCatalog returns the built-in Sphinx and MkDocs families.
func DefaultCatalog() *Catalog { return NewCatalog(SphinxFamily(), MkdocsFamily()) }

// Lookup returns the family registered under id.
func (c *Catalog) Lookup(id string) (Family, bool) {
	f, ok := c.families[id]
	return f, ok
}

const (
	toolchainSphinx = "sphinx"
	toolchainMkdocs = "mkdocs"
)

// slot binds a public builder name to a family format.
type slot struct {
	name      string
	toolchain string
	format    string
}

var slots = []slot{
	{"sphinx", toolchainSphinx, FormatHTML},
	{"sphinx_htmldir", toolchainSphinx, FormatHTMLDir},
	{"sphinx_singlehtml", toolchainSphinx, FormatSingleHTML},
	{"sphinx_pdf", toolchainSphinx, FormatPDF},
	{"sphinx_epub", toolchainSphinx, FormatEpub},
	{"sphinx_search", toolchainSphinx, FormatSearch},
	{"sphinx_singlehtmllocalmedia", toolchainSphinx, FormatLocalMedia},
	{"mkdocs", toolchainMkdocs, FormatHTML},
	{"mkdocs_json", toolchainMkdocs, FormatJSON},
}

// Registry maps builder names to factories. It is immutable once constructed.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry resolves the Sphinx and MkDocs family identifiers against catalog
// and fills every builder name. An unknown identifier, or a family missing a
// required format, is a configuration error.
func NewRegistry(catalog *Catalog, sphinxBackend, mkdocsBackend string) (*Registry, error) {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	chosen := map[string]string{toolchainSphinx: sphinxBackend, toolchainMkdocs: mkdocsBackend}
	families := make(map[string]Family, len(chosen))
	for toolchain, id := range chosen {
		f, ok := catalog.Lookup(id)
		if !ok {
			return nil, ferrors.ConfigError(fmt.Sprintf("unknown %s backend %q", toolchain, id)).
				WithContext("toolchain", toolchain).
				WithContext("backend", id).
				Build()
		}
		families[toolchain] = f
	}

	r := &Registry{factories: make(map[string]Factory, len(slots))}
	for _, s := range slots {
		f := families[s.toolchain]
		factory, ok := f.Formats[s.format]
		if !ok || factory == nil {
			return nil, ferrors.ConfigError(fmt.Sprintf("%s backend %q does not supply %s", s.toolchain, f.ID, s.format)).
				WithContext("builder", s.name).
				Build()
		}
		r.factories[s.name] = factory
	}
	return r, nil
}

// Get returns the factory for name, or an error wrapping ErrUnknownBuilder.
func (r *Registry) Get(name string) (Factory, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBuilder, name)
	}
	return f, nil
}

// New returns a fresh builder for name.
func (r *Registry) New(name string) (Builder, error) {
	f, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return f(), nil
}

// Names returns the registered builder names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsSphinx reports whether name is served by the Sphinx toolchain.
func IsSphinx(name string) bool {
	for _, s := range slots {
		if s.name == name {
			return s.toolchain == toolchainSphinx
		}
	}
	return false
}

// SecondaryBuilders lists the extra Sphinx formats produced for full builds.
func SecondaryBuilders() []string {
	return []string{"sphinx_search", "sphinx_singlehtmllocalmedia", "sphinx_pdf", "sphinx_epub"}
}
