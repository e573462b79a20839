// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package emu

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const waitDelay = 2 * time.Second

// Result is the captured outcome of a synchronous command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Process describes a detached command that keeps running after we return.
type Process struct {
	PID     int
	LogPath string
}

// Runner executes shell commands on behalf of emulators.
//
// Run blocks until the command exits and captures its output; a non-zero exit
// is reported as an error alongside the populated Result. Start launches the
// command detached and returns immediately.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
	Start(ctx context.Context, logPath string, name string, args ...string) (Process, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	env Env
}

func NewExecRunner(env Env) *ExecRunner {
	return &ExecRunner{env: env.withDefaults()}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logEvent(r.env, "executing", "command", name, "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, name, args...)
	// Grandchildren holding the pipes open must not outlive a cancelled ctx.
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(&stderr, newCommandLogWriter(r.env, name, args))
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		logEvent(
			r.env,
			"command failed",
			"command",
			name,
			"args",
			strings.Join(args, " "),
			"exit_code",
			res.ExitCode,
			"error",
			err,
			"stdout",
			strings.TrimSpace(res.Stdout),
			"stderr",
			strings.TrimSpace(res.Stderr),
		)
		return res, fmt.Errorf("%s %v failed: %w", name, args, err)
	}
	logEvent(r.env, "command finished", "command", name, "args", strings.Join(args, " "))
	return res, nil
}

// Start launches name detached from this process. Output is appended to
// logPath when set, otherwise discarded. The child is released, so it is not
// reaped by us and outlives the CLI.
func (r *ExecRunner) Start(_ context.Context, logPath string, name string, args ...string) (Process, error) {
	logEvent(r.env, "executing detached", "command", name, "args", strings.Join(args, " "), "log_path", logPath)
	// Not CommandContext: the emulator must survive cancellation and our exit.
	cmd := exec.Command(name, args...)
	cmd.Stdin = nil
	cmd.SysProcAttr = detachedProcAttr()

	var logFile *os.File
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return Process{}, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return Process{}, fmt.Errorf("open log: %w", err)
		}
		logFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		logEvent(r.env, "detached start failed", "command", name, "error", err, "log_path", logPath)
		return Process{}, fmt.Errorf("%s start: %w", name, err)
	}
	// The child holds its own descriptor now.
	if logFile != nil {
		_ = logFile.Close()
	}
	proc := Process{PID: cmd.Process.Pid, LogPath: logPath}
	if err := cmd.Process.Release(); err != nil {
		return proc, fmt.Errorf("release %s: %w", name, err)
	}
	logEvent(r.env, "detached started", "command", name, "pid", proc.PID, "log_path", logPath)
	return proc, nil
}

// DryRunRunner logs every command and executes nothing.
type DryRunRunner struct {
	env Env
	// Devices is returned as the stdout of `adb devices`, letting a dry run
	// pass the liveness gate for the listed serials.
	Devices []string
}

func NewDryRunRunner(env Env) *DryRunRunner {
	return &DryRunRunner{env: env.withDefaults()}
}

func (r *DryRunRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	logEvent(r.env, "dry run", "command", name, "args", strings.Join(args, " "))
	if len(args) == 1 && args[0] == "devices" {
		var b strings.Builder
		b.WriteString("List of devices attached\n")
		for _, serial := range r.Devices {
			fmt.Fprintf(&b, "%s\tdevice\n", serial)
		}
		return Result{Stdout: b.String()}, nil
	}
	return Result{}, nil
}

func (r *DryRunRunner) Start(_ context.Context, logPath string, name string, args ...string) (Process, error) {
	logEvent(r.env, "dry run detached", "command", name, "args", strings.Join(args, " "), "log_path", logPath)
	return Process{LogPath: logPath}, nil
}
