package command

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrAlreadyRun is returned when Run is called on a completed command.
var ErrAlreadyRun = errors.New("command already run")

// Command is one external command invocation and, once run, its outcome.
//
// Exit code, output and timestamps are unset until Run completes; after that
// the command is immutable.
type Command struct {
	args     []string
	shell    bool
	dir      string
	env      []string
	combine  bool
	launcher Launcher

	mu        sync.Mutex
	done      bool
	output    string
	errOutput *string
	exitCode  int
	start     time.Time
	end       time.Time
}

// Option customizes a Command at construction.
type Option func(*Command)

// WithDir sets the working directory (default: the process working directory).
func WithDir(dir string) Option {
	return func(c *Command) {
		if dir != "" {
			c.dir = dir
		}
	}
}

// WithEnv applies overrides on top of DefaultEnvironment.
func WithEnv(overrides map[string]string) Option {
	return func(c *Command) { c.env = DefaultEnvironment(overrides) }
}

// WithEnvironment replaces the whole environment.
func WithEnvironment(env []string) Option {
	return func(c *Command) { c.env = append([]string(nil), env...) }
}

// WithCombinedOutput chooses whether standard error is merged into standard output.
func WithCombinedOutput(combine bool) Option {
	return func(c *Command) { c.combine = combine }
}

// WithSeparateStderr captures standard error apart from standard output.
func WithSeparateStderr() Option { return WithCombinedOutput(false) }

// WithLauncher selects how the process is started (default: ProcessLauncher).
func WithLauncher(l Launcher) Option {
	return func(c *Command) {
		if l != nil {
			c.launcher = l
		}
	}
}

// New creates a command from argument tokens. Standard error is merged into
// standard output unless WithSeparateStderr is given.
func New(args []string, opts ...Option) *Command {
	c := &Command{
		args:     append([]string(nil), args...),
		combine:  true,
		launcher: ProcessLauncher{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dir == "" {
		if wd, err := os.Getwd(); err == nil {
			c.dir = wd
		}
	}
	if c.env == nil {
		c.env = DefaultEnvironment(nil)
	}
	return c
}

// NewShell creates a shell-interpreted command from a pre-joined line. The line
// is kept verbatim as a single token so quoting survives untouched.
func NewShell(line string, opts ...Option) *Command {
	c := New([]string{line}, opts...)
	c.shell = true
	return c
}

// Run executes the command synchronously. It only returns ErrAlreadyRun; launch
// failures are recorded with exit code -1.
func (c *Command) Run() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return ErrAlreadyRun
	}

	var stdout, stderr bytes.Buffer
	errWriter := &stderr
	if c.combine {
		errWriter = &stdout
	}

	c.start = time.Now()
	code, err := c.launcher.Launch(Spec{Args: c.args, Shell: c.shell, Dir: c.dir, Env: c.env}, &stdout, errWriter)
	c.end = time.Now()

	if err != nil {
		code = -1
		msg := err.Error()
		if msg == "" {
			msg = "process launch failed"
		}
		if c.combine {
			if stdout.Len() > 0 && !strings.HasSuffix(stdout.String(), "\n") {
				stdout.WriteByte('\n')
			}
			stdout.WriteString(msg)
		} else {
			if stderr.Len() > 0 && !strings.HasSuffix(stderr.String(), "\n") {
				stderr.WriteByte('\n')
			}
			stderr.WriteString(msg)
		}
	}

	c.exitCode = code
	c.output = stdout.String()
	if !c.combine {
		s := stderr.String()
		c.errOutput = &s
	}
	c.done = true
	return nil
}

// Done reports whether the command has completed.
func (c *Command) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Successful reports whether the command completed with exit code zero.
func (c *Command) Successful() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done && c.exitCode == 0
}

// Failed is the complement of Successful; a command that has not run is not successful.
func (c *Command) Failed() bool { return !c.Successful() }

// ExitCode returns the exit code; -1 for launch failures, 0 before completion.
func (c *Command) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode
}

// Output returns captured standard output (including standard error when combined).
func (c *Command) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output
}

// ErrorOutput returns captured standard error; ok is false when output was combined
// or the command has not run.
func (c *Command) ErrorOutput() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errOutput == nil {
		return "", false
	}
	return *c.errOutput, true
}

// StartTime returns when execution started (zero before Run).
func (c *Command) StartTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start
}

// EndTime returns when execution finished (zero before Run).
func (c *Command) EndTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.end
}

// Duration returns the wall-clock run time.
func (c *Command) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.end.Sub(c.start)
}

// Args returns a copy of the argument tokens.
func (c *Command) Args() []string { return append([]string(nil), c.args...) }

// Shell reports whether the command is interpreted by the shell.
func (c *Command) Shell() bool { return c.shell }

// Dir returns the working directory.
func (c *Command) Dir() string { return c.dir }

// Program returns the base name of the executable, or "sh" for shell lines.
func (c *Command) Program() string {
	if c.shell || len(c.args) == 0 {
		return "sh"
	}
	return filepath.Base(c.args[0])
}

// String renders the command as one line: tokens joined by single spaces.
func (c *Command) String() string { return strings.Join(c.args, " ") }

// Record is the serializable form of a completed command posted to build history.
type Record struct {
	BuildID   int64     `json:"build"`
	Command   string    `json:"command"`
	Dir       string    `json:"cwd"`
	Output    string    `json:"output"`
	Error     string    `json:"error,omitempty"`
	ExitCode  int       `json:"exit_code"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Record serializes the command for buildID.
func (c *Command) Record(buildID int64) Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := Record{
		BuildID:   buildID,
		Command:   strings.Join(c.args, " "),
		Dir:       c.dir,
		Output:    c.output,
		ExitCode:  c.exitCode,
		StartTime: c.start,
		EndTime:   c.end,
	}
	if c.errOutput != nil {
		r.Error = *c.errOutput
	}
	return r
}
