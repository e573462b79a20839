// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package emu

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write %s stub: %v", name, err)
	}
	return path
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	quietLogs(t)
	adb := writeScript(t, t.TempDir(), "adb", "echo \"List of devices attached\"\necho \"emulator-5560\tdevice\"\n")
	runner := NewExecRunner(Env{})

	res, err := runner.Run(context.Background(), adb, "devices")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(res.Stdout, "emulator-5560") {
		t.Fatalf("expected captured stdout, got %q", res.Stdout)
	}

	serials, err := ListDevices(context.Background(), Env{ADB: adb}, runner)
	if err != nil {
		t.Fatalf("list devices: %v", err)
	}
	if len(serials) != 1 || serials[0] != "emulator-5560" {
		t.Fatalf("unexpected serials %v", serials)
	}
}

func TestExecRunnerReportsFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	quietLogs(t)
	adb := writeScript(t, t.TempDir(), "adb", "echo out\necho \"error: device offline\" >&2\nexit 3\n")
	runner := NewExecRunner(Env{})

	res, err := runner.Run(context.Background(), adb, "-s", "emulator-5560", "emu", "kill")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "device offline") || strings.TrimSpace(res.Stdout) != "out" {
		t.Fatalf("expected captured output, got %+v", res)
	}
}

func TestExecRunnerTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	quietLogs(t)
	adb := writeScript(t, t.TempDir(), "adb", "exec sleep 5\n")
	runner := NewExecRunner(Env{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := runner.Run(ctx, adb, "install", "app.apk"); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 3*time.Second {
		t.Fatal("timeout did not stop the command")
	}
}

func TestExecRunnerStartDetached(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	quietLogs(t)
	dir := t.TempDir()
	emulator := writeScript(t, dir, "emulator", "echo \"booting $*\"\n")
	logPath := filepath.Join(dir, "logs", "emulator-emu1-5560.log")
	runner := NewExecRunner(Env{})

	proc, err := runner.Start(context.Background(), logPath, emulator, "-avd", "emu1", "-port", "5560")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if proc.PID == 0 || proc.LogPath != logPath {
		t.Fatalf("unexpected process %+v", proc)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		b, _ := os.ReadFile(logPath)
		if strings.Contains(string(b), "booting -avd emu1 -port 5560") {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("detached process output never reached the log file")
}

func TestDryRunRunnerExecutesNothing(t *testing.T) {
	quietLogs(t)
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	runner := NewDryRunRunner(Env{})
	runner.Devices = []string{"emulator-5560"}

	if _, err := runner.Run(context.Background(), "touch", marker); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if _, err := runner.Start(context.Background(), "", "touch", marker); err != nil {
		t.Fatalf("dry run start: %v", err)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatal("dry run executed a command")
	}

	reg := NewRegistry(Env{}, runner)
	if err := reg.Add("1", EmulatorConfig{Serial: "emulator-5560", Name: "emu1"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	e, _ := reg.Get("1")
	if !e.IsRunning(context.Background()) {
		t.Fatal("dry run devices must satisfy the liveness gate")
	}
}
