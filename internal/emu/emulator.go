// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package emu

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	units "github.com/docker/go-units"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	serialPrefix = "emulator-"
	// PlaceholderName is used to launch an emulator defined without an AVD name.
	PlaceholderName = "default"
)

// headlessArgs are appended to the launch command unless visual mode is requested.
var headlessArgs = []string{"-wipe-data", "-no-boot-anim", "-no-window", "-noaudio"}

// EmulatorConfig is the definition an Emulator is built from.
type EmulatorConfig struct {
	Serial string `json:"serial" yaml:"serial"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Emulator is one configured emulator instance, which may not be running.
// It turns actions into adb/emulator invocations issued through a Runner.
type Emulator struct {
	ID     string
	Serial string
	Name   string

	port   string
	env    Env
	runner Runner
}

// NewEmulator validates cfg and binds it to env and runner.
func NewEmulator(env Env, runner Runner, id string, cfg EmulatorConfig) (*Emulator, error) {
	port, err := PortFromSerial(cfg.Serial)
	if err != nil {
		return nil, fmt.Errorf("emulator %s: %w", id, err)
	}
	name := cfg.Name
	if name == "" {
		name = PlaceholderName
	}
	return &Emulator{
		ID:     id,
		Serial: cfg.Serial,
		Name:   name,
		port:   port,
		env:    env.withDefaults(),
		runner: runner,
	}, nil
}

// PortFromSerial strips the emulator- prefix: "emulator-5562" yields "5562".
func PortFromSerial(serial string) (string, error) {
	if serial == "" {
		return "", invalidArgument("empty serial")
	}
	if !strings.HasPrefix(serial, serialPrefix) {
		return "", invalidArgument("invalid serial format: %s (expected emulator-XXXX)", serial)
	}
	port := strings.TrimPrefix(serial, serialPrefix)
	if port == "" || strings.TrimLeft(port, "0123456789") != "" {
		return "", invalidArgument("invalid serial format: %s (port is not a number)", serial)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return "", invalidArgument("invalid serial format: %s (port out of range)", serial)
	}
	return port, nil
}

func (e *Emulator) Port() string { return e.port }

// LogPath is where the output of a detached launch is written.
func (e *Emulator) LogPath() string {
	return filepath.Join(e.env.LogDir, fmt.Sprintf("emulator-%s-%s.log", e.Name, e.port))
}

// StartArgs builds the emulator launch arguments.
func (e *Emulator) StartArgs(visual bool) []string {
	args := []string{"-avd", e.Name, "-port", e.port}
	if !visual {
		args = append(args, headlessArgs...)
	}
	return args
}

// Start launches the emulator detached. It is never gated: it is what brings
// the device up.
func (e *Emulator) Start(ctx context.Context, visual bool) (Process, error) {
	ctx, span := e.startSpan(ctx, "emu.Start", attribute.Bool("visual", visual))
	defer span.End()
	logEvent(e.env, "emulator start requested", "id", e.ID, "name", e.Name, "port", e.port, "visual", visual)
	proc, err := e.runner.Start(ctx, e.LogPath(), e.env.Emulator, e.StartArgs(visual)...)
	if err != nil {
		recordSpanError(span, err)
		return proc, err
	}
	span.SetAttributes(attribute.Int("pid", proc.PID), attribute.String("log_path", proc.LogPath))
	logEvent(e.env, "emulator started", "id", e.ID, "name", e.Name, "serial", e.Serial, "pid", proc.PID, "log_path", proc.LogPath)
	return proc, nil
}

// Stop asks the emulator console to exit.
func (e *Emulator) Stop(ctx context.Context) error {
	return e.adb(ctx, "emu.Stop", "emu", "kill")
}

func (e *Emulator) ForceStopApp(ctx context.Context, app string) error {
	return e.adb(ctx, "emu.ForceStopApp", "shell", "am", "force-stop", app)
}

func (e *Emulator) ClearAppData(ctx context.Context, app string) error {
	return e.adb(ctx, "emu.ClearAppData", "shell", "pm", "clear", app)
}

func (e *Emulator) InstallAPK(ctx context.Context, apk string) error {
	if st, err := os.Stat(apk); err == nil {
		logEvent(e.env, "installing apk", "id", e.ID, "serial", e.Serial, "apk", apk, "size", units.HumanSize(float64(st.Size())))
	}
	return e.adb(ctx, "emu.InstallAPK", "install", apk)
}

func (e *Emulator) UninstallApp(ctx context.Context, app string) error {
	return e.adb(ctx, "emu.UninstallApp", "uninstall", app)
}

// IsRunning reports whether adb currently lists this emulator's serial.
// The answer may be stale by the time the next command runs.
func (e *Emulator) IsRunning(ctx context.Context) bool {
	serials, err := ListDevices(ctx, e.env, e.runner)
	if err != nil {
		logEvent(e.env, "liveness check failed", "id", e.ID, "serial", e.Serial, "error", err)
		return false
	}
	for _, s := range serials {
		if s == e.Serial {
			return true
		}
	}
	return false
}

// adb runs `adb -s <serial> args...` synchronously.
func (e *Emulator) adb(ctx context.Context, spanName string, args ...string) error {
	ctx, span := e.startSpan(ctx, spanName, attribute.String("args", strings.Join(args, " ")))
	defer span.End()
	full := append([]string{"-s", e.Serial}, args...)
	if _, err := e.runner.Run(ctx, e.env.ADB, full...); err != nil {
		recordSpanError(span, err)
		return err
	}
	return nil
}

func (e *Emulator) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("id", e.ID),
		attribute.String("serial", e.Serial),
		attribute.String("port", e.port),
	)
	return startSpanFrom(ctx, e.env, name, attrs...)
}
