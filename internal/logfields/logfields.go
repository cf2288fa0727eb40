package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyProject  = "project"
	KeyVersion  = "version"
	KeyBuildID  = "build_id"
	KeyJobID    = "job_id"
	KeyQueue    = "queue"
	KeyCommand  = "command"
	KeyExitCode = "exit_code"
	KeyURL      = "url"
	KeyPath     = "path"
	KeyVCS      = "vcs"
	KeyBuilder  = "builder"
	KeyHost     = "host"
	KeyDuration = "duration_ms"
	KeyError    = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Project(slug string) slog.Attr   { return slog.String(KeyProject, slug) }
func Version(slug string) slog.Attr   { return slog.String(KeyVersion, slug) }
func BuildID(id int64) slog.Attr      { return slog.Int64(KeyBuildID, id) }
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func Queue(name string) slog.Attr     { return slog.String(KeyQueue, name) }
func Command(line string) slog.Attr   { return slog.String(KeyCommand, line) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func VCS(kind string) slog.Attr       { return slog.String(KeyVCS, kind) }
func Builder(name string) slog.Attr   { return slog.String(KeyBuilder, name) }
func Host(h string) slog.Attr         { return slog.String(KeyHost, h) }
func DurationMS(ms int64) slog.Attr   { return slog.Int64(KeyDuration, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
