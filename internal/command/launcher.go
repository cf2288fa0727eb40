package command

import (
	"errors"
	"io"
	"os/exec"
	"strings"
	"syscall"
)

// Spec is the launch description handed to a Launcher.
type Spec struct {
	Args  []string
	Shell bool
	Dir   string
	Env   []string
}

// Line renders the spec as one command line.
func (s Spec) Line() string { return strings.Join(s.Args, " ") }

// Launcher starts a process described by spec and waits for it.
//
// A non-nil error means the process could not be launched at all; a process
// that ran and exited non-zero reports its exit code with a nil error.
type Launcher interface {
	Launch(spec Spec, stdout, stderr io.Writer) (exitCode int, err error)
}

// ProcessLauncher launches local processes through os/exec.
type ProcessLauncher struct{}

// ShellPath is the interpreter used for shell-mode commands.
const ShellPath = "/bin/sh"

func (ProcessLauncher) Launch(spec Spec, stdout, stderr io.Writer) (int, error) {
	if len(spec.Args) == 0 {
		return -1, errors.New("empty command")
	}
	var cmd *exec.Cmd
	if spec.Shell {
		cmd = exec.Command(ShellPath, "-c", spec.Line())
	} else {
		cmd = exec.Command(spec.Args[0], spec.Args[1:]...)
	}
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Signal deaths report -1 from ExitCode; use the shell convention instead.
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}
