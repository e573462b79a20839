// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package emu

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/containerd/errdefs"
)

func TestPortFromSerial(t *testing.T) {
	port, err := PortFromSerial("emulator-5562")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	if port != "5562" {
		t.Fatalf("expected 5562, got %s", port)
	}
	if port, err := PortFromSerial("emulator-65535"); err != nil || port != "65535" {
		t.Fatalf("expected 65535 to be accepted, got %q %v", port, err)
	}

	for _, bad := range []string{
		"", "5562", "device-5562", "emulator-", "emulator-abc",
		"emulator-+5560", "emulator--5560", "emulator- 5560", "emulator-0", "emulator-65536", "emulator-99999",
	} {
		if _, err := PortFromSerial(bad); !errdefs.IsInvalidArgument(err) {
			t.Fatalf("expected invalid argument for %q, got %v", bad, err)
		}
	}
}

func TestNewEmulatorPlaceholderName(t *testing.T) {
	quietLogs(t)
	e, err := NewEmulator(Env{}, &fakeRunner{}, "7", EmulatorConfig{Serial: "emulator-5570"})
	if err != nil {
		t.Fatalf("new emulator: %v", err)
	}
	if e.Name != PlaceholderName {
		t.Fatalf("expected placeholder name, got %q", e.Name)
	}
	want := []string{"-avd", PlaceholderName, "-port", "5570"}
	if got := e.StartArgs(true); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestEmulatorStartUsesLogDir(t *testing.T) {
	quietLogs(t)
	dir := t.TempDir()
	runner := &fakeRunner{}
	e, err := NewEmulator(Env{LogDir: dir, Emulator: "/opt/sdk/emulator"}, runner, "1", EmulatorConfig{Serial: "emulator-5560", Name: "emu1"})
	if err != nil {
		t.Fatalf("new emulator: %v", err)
	}
	proc, err := e.Start(context.Background(), false)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	wantLog := filepath.Join(dir, "emulator-emu1-5560.log")
	if proc.LogPath != wantLog {
		t.Fatalf("expected log %s, got %s", wantLog, proc.LogPath)
	}
	want := "/opt/sdk/emulator -avd emu1 -port 5560 -wipe-data -no-boot-anim -no-window -noaudio"
	if len(runner.starts) != 1 || runner.starts[0] != want {
		t.Fatalf("got %q, want %q", runner.starts, want)
	}
}

func TestEmulatorAppCommands(t *testing.T) {
	quietLogs(t)
	apk := filepath.Join(t.TempDir(), "app.apk")
	if err := os.WriteFile(apk, make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("write apk: %v", err)
	}
	runner := &fakeRunner{}
	e, err := NewEmulator(Env{ADB: "adb"}, runner, "1", EmulatorConfig{Serial: "emulator-5560", Name: "emu1"})
	if err != nil {
		t.Fatalf("new emulator: %v", err)
	}
	ctx := context.Background()
	_ = e.Stop(ctx)
	_ = e.ForceStopApp(ctx, "com.example")
	_ = e.ClearAppData(ctx, "com.example")
	_ = e.InstallAPK(ctx, apk)
	_ = e.UninstallApp(ctx, "com.example")

	want := []string{
		"adb -s emulator-5560 emu kill",
		"adb -s emulator-5560 shell am force-stop com.example",
		"adb -s emulator-5560 shell pm clear com.example",
		"adb -s emulator-5560 install " + apk,
		"adb -s emulator-5560 uninstall com.example",
	}
	if !reflect.DeepEqual(runner.calls, want) {
		t.Fatalf("got %q\nwant %q", runner.calls, want)
	}
}

func TestEmulatorIsRunningExactSerial(t *testing.T) {
	quietLogs(t)
	runner := &fakeRunner{devices: []string{"emulator-55600", "emulator-5562"}}
	e, err := NewEmulator(Env{}, runner, "1", EmulatorConfig{Serial: "emulator-5560"})
	if err != nil {
		t.Fatalf("new emulator: %v", err)
	}
	if e.IsRunning(context.Background()) {
		t.Fatal("emulator-5560 must not match emulator-55600")
	}
	runner.devices = append(runner.devices, "emulator-5560")
	if !e.IsRunning(context.Background()) {
		t.Fatal("expected emulator-5560 to be running")
	}
}
