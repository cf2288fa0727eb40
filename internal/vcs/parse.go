package vcs

import "strings"

// unknownRevision marks tags that lack a revision in bzr/hg output.
const unknownRevision = "?"

// tagRow is one "name  revision" line of tag listing output.
type tagRow struct {
	name     string
	revision string
}

// parseTagRows splits lines on runs of whitespace; the last token is the revision and
// the tokens before it form the name, so names may contain spaces. Blank rows,
// rows without a name and rows whose revision is "?" are dropped.
func parseTagRows(data string) []tagRow {
	var rows []tagRow
	for _, line := range strings.Split(data, "\n") {
		tokens := strings.Fields(line)
		if len(tokens) < 2 {
			continue
		}
		rev := tokens[len(tokens)-1]
		if rev == unknownRevision {
			continue
		}
		rows = append(rows, tagRow{name: strings.Join(tokens[:len(tokens)-1], " "), revision: rev})
	}
	return rows
}

// ParseBazaarTags parses `bzr tags` output. Identifiers are revision numbers.
func ParseBazaarTags(data string) []Reference {
	rows := parseTagRows(data)
	refs := make([]Reference, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, Reference{Identifier: r.revision, VerboseName: r.name})
	}
	return refs
}

// ParseMercurialTags parses `hg tags` output, where revisions look like
// "rev:hash". Identifiers are the hashes; the tip pseudo-tag is dropped.
func ParseMercurialTags(data string) []Reference {
	rows := parseTagRows(data)
	refs := make([]Reference, 0, len(rows))
	for _, r := range rows {
		if r.name == "tip" {
			continue
		}
		hash := r.revision
		if _, after, ok := strings.Cut(r.revision, ":"); ok {
			hash = after
		}
		refs = append(refs, Reference{Identifier: hash, VerboseName: r.name})
	}
	return refs
}

// ParseSubversionTags parses `svn list BASE/tags/` output. A line "name/" yields
// identifier "/tags/name/".
func ParseSubversionTags(data string) []Reference {
	var refs []Reference
	for _, line := range strings.Split(data, "\n") {
		name := strings.TrimSuffix(strings.TrimSpace(line), "/")
		if name == "" {
			continue
		}
		refs = append(refs, Reference{Identifier: "/tags/" + name + "/", VerboseName: name})
	}
	if refs == nil {
		return []Reference{}
	}
	return refs
}
