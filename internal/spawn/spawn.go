// Package spawn launches external programs: the game server itself, which
// must outlive the bot, and optional helper scripts run to completion.
package spawn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var ErrNoCommand = errors.New("no command configured")

// Result is the outcome of a command run to completion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Spawner starts shell command lines in a working directory.
type Spawner interface {
	// SpawnDetached starts command in its own session and returns as soon
	// as the process is running. It does not wait for readiness.
	SpawnDetached(command, workDir string) error
	// RunAndWait runs command to completion and captures its output.
	// A non-zero exit status is reported as an error alongside the Result.
	RunAndWait(ctx context.Context, command, workDir string) (Result, error)
}

// Exec runs commands through the platform shell.
type Exec struct{}

func (Exec) SpawnDetached(command, workDir string) error {
	if strings.TrimSpace(command) == "" {
		return ErrNoCommand
	}
	cmd := shellCommand(context.Background(), command)
	cmd.Dir = workDir
	configureSysProcAttr(cmd, true)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn %q: %w", command, err)
	}
	// reap the child when it exits so it never lingers as a zombie
	go func() { _ = cmd.Wait() }()
	return nil
}

func (Exec) RunAndWait(ctx context.Context, command, workDir string) (Result, error) {
	if strings.TrimSpace(command) == "" {
		return Result{}, ErrNoCommand
	}
	cmd := shellCommand(ctx, command)
	cmd.Dir = workDir
	configureSysProcAttr(cmd, false)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, fmt.Errorf("%q exited with code %d", command, res.ExitCode)
		}
		return res, fmt.Errorf("run %q: %w", command, err)
	}
	return res, nil
}
