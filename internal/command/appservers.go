package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"git.home.luguber.info/inful/docsbuild/internal/config"
	"git.home.luguber.info/inful/docsbuild/internal/logfields"
)

// RemoteLauncher runs a command line on a remote host.
//
// A non-nil error means the command could not be started on the host.
type RemoteLauncher interface {
	RunRemote(ctx context.Context, host, line string, stdout, stderr io.Writer) (exitCode int, err error)
}

// AppServers mirrors a command line across the configured application servers.
type AppServers struct {
	Hosts  []string
	Remote RemoteLauncher
	Local  *Runner
	Logger *slog.Logger
}

// NewAppServers creates an AppServers from sync settings. Remote commands run
// over SSH as cfg.SyncUser; with no hosts, lines run locally through local.
func NewAppServers(cfg config.SyncConfig, local *Runner) *AppServers {
	return &AppServers{
		Hosts:  append([]string(nil), cfg.MultipleAppServers...),
		Remote: &SSHLauncher{User: cfg.SyncUser, Port: cfg.Port, KeyPath: cfg.SSHKeyPath},
		Local:  local,
	}
}

// Run executes line on every host and returns the last non-zero exit status,
// or 0 when all hosts succeeded. Without hosts the line runs locally and its
// exit code is returned.
func (a *AppServers) Run(ctx context.Context, line string) int {
	if len(a.Hosts) == 0 {
		local := a.Local
		if local == nil {
			local = &Runner{}
		}
		return local.RunShell(ctx, "", line).ExitCode()
	}

	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	status := 0
	for _, host := range a.Hosts {
		var out bytes.Buffer
		code, err := a.Remote.RunRemote(ctx, host, line, &out, &out)
		if err != nil {
			logger.Warn("Unable to run command on app server",
				logfields.Host(host), logfields.Command(line), logfields.Error(err))
			code = -1
		}
		if code != 0 {
			logger.Info("Command failed on app server",
				logfields.Host(host), logfields.Command(line), logfields.ExitCode(code))
			status = code
			continue
		}
		logger.Debug("Command finished on app server", logfields.Host(host), logfields.Command(line))
	}
	return status
}

// SSHLauncher runs command lines over SSH sessions.
type SSHLauncher struct {
	User           string
	Port           int
	KeyPath        string
	KnownHostsPath string
	Timeout        time.Duration
}

// RunRemote dials host, runs line in a fresh session and reports its exit status.
func (l *SSHLauncher) RunRemote(ctx context.Context, host, line string, stdout, stderr io.Writer) (int, error) {
	auth, err := l.authMethods()
	if err != nil {
		return -1, err
	}
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg := &ssh.ClientConfig{
		User:            l.User,
		Auth:            auth,
		HostKeyCallback: l.hostKeyCallback(),
		Timeout:         timeout,
	}

	client, err := ssh.Dial("tcp", l.address(host), cfg)
	if err != nil {
		return -1, fmt.Errorf("ssh dial failed: %w", err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return -1, fmt.Errorf("ssh session: %w", err)
	}
	defer sess.Close()
	sess.Stdout = stdout
	sess.Stderr = stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(line) }()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		return -1, ctx.Err()
	case err := <-done:
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitStatus(), nil
		}
		if err != nil {
			return -1, err
		}
		return 0, nil
	}
}

func (l *SSHLauncher) address(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	port := l.Port
	if port == 0 {
		port = config.DefaultSSHPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (l *SSHLauncher) hostKeyCallback() ssh.HostKeyCallback {
	path := l.KnownHostsPath
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".ssh", "known_hosts")
		}
	}
	if path != "" {
		if cb, err := knownhosts.New(path); err == nil {
			return cb
		}
	}
	// #nosec G106 -- app servers without a known_hosts file are trusted on first use.
	return ssh.InsecureIgnoreHostKey()
}

func (l *SSHLauncher) authMethods() ([]ssh.AuthMethod, error) {
	if path := strings.TrimSpace(l.KeyPath); path != "" {
		data, err := os.ReadFile(expandHome(path))
		if err != nil {
			return nil, fmt.Errorf("read ssh private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("parse ssh private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	signer, err := defaultPrivateKeySigner()
	if err != nil {
		return nil, fmt.Errorf("no authentication method provided: %w", err)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

func defaultPrivateKeySigner() (ssh.Signer, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		data, err := os.ReadFile(filepath.Join(home, ".ssh", name))
		if err != nil {
			continue
		}
		signer, parseErr := ssh.ParsePrivateKey(data)
		if parseErr != nil {
			continue
		}
		return signer, nil
	}
	return nil, errors.New("no default private key found")
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
