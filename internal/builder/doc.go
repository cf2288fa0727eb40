// Package builder holds the documentation builder strategies and the read-only
// registry that resolves builder names to them.
//
// Two backend families feed the registry: a Sphinx family (html, htmldir,
// singlehtml, pdf, epub, search, localmedia) and a MkDocs family (html, json).
// Which family implementation is used is chosen by identifier from
// configuration when the registry is constructed.
package builder
