package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// ExecResult is the outcome of a remote command. A non-zero exit code is not
// an error at this layer; callers inspect ExitCode and output themselves.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Combined returns stdout and stderr concatenated, for marker scanning
func (r *ExecResult) Combined() string {
	return r.Stdout + r.Stderr
}

// SSHExecutor runs commands on provisioned servers over SSH
type SSHExecutor struct {
	connectTimeout time.Duration
}

// NewSSHExecutor creates a new SSH executor
func NewSSHExecutor(connectTimeout time.Duration) *SSHExecutor {
	return &SSHExecutor{connectTimeout: connectTimeout}
}

// Execute opens a session on host and runs command, bounded by timeout.
// Transport failures (dial, auth, session) return an error; the remote
// command exiting non-zero returns a result with the exit code set.
func (e *SSHExecutor) Execute(ctx context.Context, host, username, password, command string, timeout time.Duration) (*ExecResult, error) {
	config := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
		},
		// Droplets are created fresh and their host keys are not recorded
		// anywhere we could verify against.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         e.connectTimeout,
	}

	conn, err := ssh.Dial("tcp", net.JoinHostPort(host, "22"), config)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", host, err)
	}
	defer conn.Close()

	session, err := conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		result := &ExecResult{
			Stdout: stdout.String(),
			Stderr: stderr.String(),
		}
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				result.ExitCode = exitErr.ExitStatus()
				return result, nil
			}
			return nil, fmt.Errorf("ssh run: %w", err)
		}
		return result, nil
	case <-timer.C:
		session.Close()
		log.Printf("[SSH] Command timed out after %v on %s", timeout, host)
		return nil, fmt.Errorf("command timed out after %v", timeout)
	case <-ctx.Done():
		session.Close()
		return nil, ctx.Err()
	}
}
