package command

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLauncher struct {
	stdout, stderr string
	code           int
	err            error
	calls          int
	last           Spec
}

func (s *stubLauncher) Launch(spec Spec, stdout, stderr io.Writer) (int, error) {
	s.calls++
	s.last = spec
	_, _ = io.WriteString(stdout, s.stdout)
	_, _ = io.WriteString(stderr, s.stderr)
	return s.code, s.err
}

func TestRunSuccessfulProcess(t *testing.T) {
	cmd := New([]string{"true"}, WithDir(t.TempDir()))
	require.NoError(t, cmd.Run())

	assert.True(t, cmd.Done())
	assert.True(t, cmd.Successful())
	assert.False(t, cmd.Failed())
	assert.Equal(t, 0, cmd.ExitCode())
	assert.False(t, cmd.StartTime().IsZero())
	assert.False(t, cmd.EndTime().Before(cmd.StartTime()))
}

func TestRunFailingProcess(t *testing.T) {
	cmd := New([]string{"false"})
	require.NoError(t, cmd.Run())

	assert.True(t, cmd.Failed())
	assert.NotEqual(t, 0, cmd.ExitCode())
}

func TestRunMissingProgramRecordsLaunchFailure(t *testing.T) {
	cmd := New([]string{"docsbuild-no-such-program-xyz"}, WithSeparateStderr())
	require.NoError(t, cmd.Run())

	assert.Equal(t, -1, cmd.ExitCode())
	assert.True(t, cmd.Failed())
	errOut, ok := cmd.ErrorOutput()
	require.True(t, ok)
	assert.NotEmpty(t, errOut)
	assert.False(t, cmd.EndTime().IsZero())
}

func TestLaunchFailureGoesToOutputWhenCombined(t *testing.T) {
	stub := &stubLauncher{err: errors.New("exec format error")}
	cmd := New([]string{"tool"}, WithLauncher(stub))
	require.NoError(t, cmd.Run())

	assert.Equal(t, -1, cmd.ExitCode())
	assert.Contains(t, cmd.Output(), "exec format error")
	_, ok := cmd.ErrorOutput()
	assert.False(t, ok)
}

func TestShellCommandCapturesOutput(t *testing.T) {
	cmd := NewShell("echo out; echo err 1>&2; exit 3", WithSeparateStderr())
	require.NoError(t, cmd.Run())

	assert.Equal(t, 3, cmd.ExitCode())
	assert.Equal(t, "out\n", cmd.Output())
	errOut, ok := cmd.ErrorOutput()
	require.True(t, ok)
	assert.Equal(t, "err\n", errOut)
}

func TestCombinedOutputMergesStderr(t *testing.T) {
	cmd := NewShell("echo err 1>&2")
	require.NoError(t, cmd.Run())

	assert.Equal(t, "err\n", cmd.Output())
	_, ok := cmd.ErrorOutput()
	assert.False(t, ok)
}

func TestSecondRunIsRejected(t *testing.T) {
	stub := &stubLauncher{stdout: "first"}
	cmd := New([]string{"tool"}, WithLauncher(stub))
	require.NoError(t, cmd.Run())

	stub.stdout = "second"
	require.ErrorIs(t, cmd.Run(), ErrAlreadyRun)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, "first", cmd.Output())
}

func TestUnrunCommandIsNotSuccessful(t *testing.T) {
	cmd := New([]string{"true"})
	assert.False(t, cmd.Done())
	assert.False(t, cmd.Successful())
	assert.True(t, cmd.Failed())
}

func TestStringRoundTrip(t *testing.T) {
	tokens := New([]string{"git", "checkout", "--force", "main"})
	line := NewShell("git checkout --force main")
	assert.Equal(t, "git checkout --force main", tokens.String())
	assert.Equal(t, tokens.String(), line.String())
	assert.Equal(t, strings.Fields(line.String()), tokens.Args())
}

func TestCommandEnvironmentCarriesMarker(t *testing.T) {
	stub := &stubLauncher{}
	cmd := New([]string{"tool"}, WithLauncher(stub), WithEnv(map[string]string{"EXTRA": "1"}))
	require.NoError(t, cmd.Run())

	assert.Contains(t, stub.last.Env, MarkerVariable+"=True")
	assert.Contains(t, stub.last.Env, "EXTRA=1")
}

func TestRecordSerialization(t *testing.T) {
	stub := &stubLauncher{stdout: "ok", stderr: "warn", code: 0}
	cmd := New([]string{"make", "html"}, WithLauncher(stub), WithDir("/tmp"), WithSeparateStderr())
	require.NoError(t, cmd.Run())

	rec := cmd.Record(42)
	assert.Equal(t, int64(42), rec.BuildID)
	assert.Equal(t, "make html", rec.Command)
	assert.Equal(t, "/tmp", rec.Dir)
	assert.Equal(t, "ok", rec.Output)
	assert.Equal(t, "warn", rec.Error)
	assert.Equal(t, 0, rec.ExitCode)
	assert.Equal(t, cmd.StartTime(), rec.StartTime)
}

func TestProgram(t *testing.T) {
	assert.Equal(t, "git", New([]string{"/usr/bin/git", "status"}).Program())
	assert.Equal(t, "sh", NewShell("ls -l").Program())
}
