// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package emu

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// fakeRunner records commands instead of executing them.
type fakeRunner struct {
	devices    []string
	devicesErr error
	failOn     map[string]error

	calls   []string // synchronous commands, excluding `adb devices`
	starts  []string // detached commands
	logs    []string // log paths passed to Start
	queries int      // number of `adb devices` queries
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	if len(args) == 1 && args[0] == "devices" {
		f.queries++
		if f.devicesErr != nil {
			return Result{ExitCode: 1}, f.devicesErr
		}
		var b strings.Builder
		b.WriteString("List of devices attached\n")
		for _, d := range f.devices {
			b.WriteString(d + "\tdevice\n")
		}
		return Result{Stdout: b.String()}, nil
	}
	line := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, line)
	if err, ok := f.failOn[line]; ok {
		return Result{Stderr: "boom", ExitCode: 1}, err
	}
	return Result{}, nil
}

func (f *fakeRunner) Start(_ context.Context, logPath string, name string, args ...string) (Process, error) {
	f.starts = append(f.starts, strings.Join(append([]string{name}, args...), " "))
	f.logs = append(f.logs, logPath)
	return Process{PID: 4242, LogPath: logPath}, nil
}

func quietLogs(t *testing.T) {
	t.Helper()
	previous := emuLogger
	emuLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	t.Cleanup(func() { emuLogger = previous })
}

func newTestRegistry(t *testing.T, runner Runner) *Registry {
	t.Helper()
	quietLogs(t)
	reg := NewRegistry(Env{LogDir: t.TempDir()}, runner)
	defs := []Definition{
		{ID: "1", EmulatorConfig: EmulatorConfig{Serial: "emulator-5560", Name: "emu1"}},
		{ID: "2", EmulatorConfig: EmulatorConfig{Serial: "emulator-5562", Name: "emu2"}},
		{ID: "3", EmulatorConfig: EmulatorConfig{Serial: "emulator-5564", Name: "emu3"}},
	}
	for _, d := range defs {
		if err := reg.Add(d.ID, d.EmulatorConfig); err != nil {
			t.Fatalf("add %s: %v", d.ID, err)
		}
	}
	return reg
}
