package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
)

func TestDefaultRegistryNames(t *testing.T) {
	r, err := NewRegistry(nil, "sphinx", "mkdocs")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"mkdocs",
		"mkdocs_json",
		"sphinx",
		"sphinx_epub",
		"sphinx_htmldir",
		"sphinx_pdf",
		"sphinx_search",
		"sphinx_singlehtml",
		"sphinx_singlehtmllocalmedia",
	}, r.Names())
}

func TestRegistryTypes(t *testing.T) {
	r, err := NewRegistry(DefaultCatalog(), "sphinx", "mkdocs")
	require.NoError(t, err)

	want := map[string]string{
		"sphinx":                      "html",
		"sphinx_htmldir":              "htmldir",
		"sphinx_singlehtml":           "singlehtml",
		"sphinx_pdf":                  "pdf",
		"sphinx_epub":                 "epub",
		"sphinx_search":               "json",
		"sphinx_singlehtmllocalmedia": "htmlzip",
		"mkdocs":                      "html",
		"mkdocs_json":                 "json",
	}
	for name, typ := range want {
		b, err := r.New(name)
		require.NoError(t, err, name)
		assert.Equal(t, typ, b.Type(), name)
	}
}

func TestRegistryUnknownBuilder(t *testing.T) {
	r, err := NewRegistry(nil, "sphinx", "mkdocs")
	require.NoError(t, err)

	_, err = r.Get("asciidoc")
	require.ErrorIs(t, err, ErrUnknownBuilder)
	_, err = r.New("")
	require.ErrorIs(t, err, ErrUnknownBuilder)
}

func TestRegistryUnknownFamily(t *testing.T) {
	_, err := NewRegistry(nil, "sphinx", "hugo")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

type fakeBuilder struct{ typ string }

func (f *fakeBuilder) Type() string                              { return f.typ }
func (f *fakeBuilder) Build(context.Context, *Environment) error { return nil }

func TestRegistryCustomFamily(t *testing.T) {
	custom := Family{ID: "mkdocs-material", Formats: map[string]Factory{
		FormatHTML: func() Builder { return &fakeBuilder{typ: "material"} },
		FormatJSON: func() Builder { return &fakeBuilder{typ: "material-json"} },
	}}
	r, err := NewRegistry(NewCatalog(SphinxFamily(), custom), "sphinx", "mkdocs-material")
	require.NoError(t, err)

	b, err := r.New("mkdocs")
	require.NoError(t, err)
	assert.Equal(t, "material", b.Type())
}

func TestRegistryFamilyMissingFormat(t *testing.T) {
	partial := Family{ID: "partial", Formats: map[string]Factory{
		FormatHTML: func() Builder { return &fakeBuilder{typ: "html"} },
	}}
	_, err := NewRegistry(NewCatalog(SphinxFamily(), partial), "sphinx", "partial")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestIsSphinx(t *testing.T) {
	assert.True(t, IsSphinx("sphinx_htmldir"))
	assert.False(t, IsSphinx("mkdocs"))
	assert.False(t, IsSphinx("unknown"))
}
