// Package common provides shared abstractions for unit implementations.
package common

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"noctua/internal/platform/logx"
)

// LineHandler processes each line of subprocess stdout in real time.
// Return an error to stop processing; non-fatal issues should be logged
// by the handler instead.
type LineHandler func(line []byte) error

// CLIRunner handles subprocess execution for units that shell out to
// external tools. It manages pipes, a background stderr reader, a hard
// timeout, and cleanup of the child process.
type CLIRunner struct {
	logger   logx.Logger
	execPath string
	timeout  time.Duration

	mu  sync.Mutex
	cmd *exec.Cmd
}

// CLIConfig contains configuration for a CLIRunner.
type CLIConfig struct {
	UnitName string        // Unit name for logging
	ExecPath string        // Path to binary (resolved via LookPath at init)
	Timeout  time.Duration // Hard subprocess timeout
}

// NewCLIRunner creates a CLIRunner with the given configuration.
func NewCLIRunner(logger logx.Logger, cfg CLIConfig) *CLIRunner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &CLIRunner{
		logger:   logger.With("unit", cfg.UnitName),
		execPath: cfg.ExecPath,
		timeout:  cfg.Timeout,
	}
}

// Init verifies that the binary exists in PATH and resolves its full path.
func (r *CLIRunner) Init(installHint string) error {
	path, err := exec.LookPath(r.execPath)
	if err != nil {
		return fmt.Errorf("%s not found in PATH: %w (install: %s)", r.execPath, err, installHint)
	}
	r.execPath = path
	r.logger.Debug("found binary", "path", path)
	return nil
}

// Execute runs the binary with args and streams stdout line by line to the
// handler. The hard timeout bounds the whole subprocess; on expiry the
// child receives SIGKILL via the command context.
//
// A handler error does not abort the stream, only logs. A non-zero exit is
// returned to the caller together with captured stderr so partial results
// can still be used.
func (r *CLIRunner) Execute(ctx context.Context, args []string, handler LineHandler) (stderrOutput string, err error) {
	startTime := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.logger.Info("executing command",
		"exec_path", r.execPath,
		"args", args,
		"timeout", r.timeout.String(),
	)

	cmd := exec.CommandContext(runCtx, r.execPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start process: %w", err)
	}

	r.logger.Debug("subprocess started", "pid", cmd.Process.Pid)

	// Read stderr in background to prevent blocking
	var stderrBytes []byte
	var stderrWg sync.WaitGroup
	stderrWg.Add(1)
	go func() {
		defer stderrWg.Done()
		data, readErr := io.ReadAll(stderr)
		if readErr != nil {
			r.logger.Warn("error reading stderr", "error", readErr.Error())
		}
		stderrBytes = data
	}()

	scanner := bufio.NewScanner(stdout)

	// Increase buffer size for large output lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024) // 10MB max token size

	for scanner.Scan() {
		if err := handler(scanner.Bytes()); err != nil {
			r.logger.Warn("handler error", "error", err.Error())
		}
	}
	if err := scanner.Err(); err != nil {
		r.logger.Warn("scanner error", "error", err.Error())
	}

	waitErr := cmd.Wait()
	stderrWg.Wait()
	stderrOutput = string(stderrBytes)

	if len(stderrOutput) > 0 {
		r.logger.Debug("subprocess stderr", "output", stderrOutput)
	}

	duration := time.Since(startTime)

	if waitErr != nil {
		r.logger.Warn("subprocess exited with error",
			"error", waitErr.Error(),
			"duration", duration.String(),
		)
		return stderrOutput, fmt.Errorf("process exited with error: %w", waitErr)
	}

	r.logger.Info("command completed", "duration", duration.String())
	return stderrOutput, nil
}

// Close terminates the subprocess if still running. SIGTERM first, then
// SIGKILL. Safe to call multiple times.
func (r *CLIRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil && r.cmd.Process != nil {
		proc := r.cmd.Process
		state := r.cmd.ProcessState

		if state == nil || !state.Exited() {
			if err := proc.Signal(os.Interrupt); err != nil && err != os.ErrProcessDone {
				r.logger.Warn("SIGTERM failed, forcing kill", "error", err.Error())
				if killErr := proc.Kill(); killErr != nil && killErr != os.ErrProcessDone {
					r.logger.Warn("failed to kill process", "error", killErr.Error())
				}
			}
		}
		r.cmd = nil
	}

	return nil
}

// ExecPath returns the resolved executable path.
func (r *CLIRunner) ExecPath() string {
	return r.execPath
}
