// Package vcs normalizes Bazaar, Git, Mercurial and Subversion working copies
// behind one Backend contract: clone-or-update, checkout of a reference, tag
// enumeration and the current commit identifier.
//
// Every backend shells out through a command.Runner so each step is recorded
// in build history. Git read-side queries use go-git directly.
package vcs
