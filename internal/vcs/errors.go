package vcs

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is the cause of errors returned by New for unsupported kinds.
var ErrUnknownKind = errors.New("unknown repository kind")

// ImportError reports a non-zero exit from a state-changing VCS step.
type ImportError struct {
	Op       string
	URL      string
	ExitCode int
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("failed to get code from %q (%s): exit code %d", e.URL, e.Op, e.ExitCode)
}

// IsImportError reports whether err's chain contains an ImportError.
func IsImportError(err error) bool {
	var ie *ImportError
	return errors.As(err, &ie)
}
