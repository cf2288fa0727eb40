// Package command executes external commands for documentation builds and
// records their outcome.
//
// A Command is constructed with its parameters, run exactly once, and then
// inspected or serialized as a Record. Process launch failures never surface
// as Go errors from Run: they complete the record with exit code -1 and the
// failure text as error output, so every invocation yields a complete record.
//
// Runner binds the per-build pieces (launcher, environment overrides, build
// id, Poster) and posts each finished record best-effort in the background.
// AppServers mirrors a shell line onto the configured application servers
// over SSH.
package command
