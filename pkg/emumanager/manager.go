// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

// Package emumanager provides a Go library for driving a fixed fleet of
// Android emulators and the apps installed on them.
package emumanager

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/forkbombeu/emulators/internal/emu"
)

// Runner executes adb/emulator commands. Implement it to intercept commands
// in tests.
type Runner = emu.Runner

// CommandResult and Process are what a Runner returns.
type (
	CommandResult = emu.Result
	Process       = emu.Process
)

// Manager owns an emulator registry and dispatches commands to it. Once
// loaded it may be shared between goroutines; Load and Add may not run
// concurrently with anything else.
type Manager struct {
	env      emu.Env
	runner   emu.Runner
	registry *emu.Registry
}

// New creates a Manager with auto-detected environment and a real runner.
// The registry starts empty; call Load or Add.
func New() *Manager {
	return NewWithEnv(Environment{})
}

// NewWithCorrelationID creates a Manager with a correlation ID for structured logs.
func NewWithCorrelationID(correlationID string) *Manager {
	return NewWithEnv(Environment{CorrelationID: correlationID})
}

// NewWithEnv creates a Manager from explicit configuration. Empty fields fall
// back to the auto-detected environment.
func NewWithEnv(env Environment) *Manager {
	detected := emu.Detect()
	e := emu.Env{
		ConfigPath:    pick(env.ConfigPath, detected.ConfigPath),
		DefaultApp:    pick(env.DefaultApp, detected.DefaultApp),
		LogDir:        pick(env.LogDir, detected.LogDir),
		ADB:           pick(env.ADBBin, detected.ADB),
		Emulator:      pick(env.EmulatorBin, detected.Emulator),
		CorrelationID: pick(env.CorrelationID, detected.CorrelationID),
		Context:       env.Context,
	}
	if e.Context == nil {
		e.Context = context.Background()
	}
	runner := env.Runner
	switch {
	case runner != nil:
	case env.DryRun:
		runner = emu.NewDryRunRunner(e)
	default:
		runner = emu.NewExecRunner(e)
	}
	return &Manager{
		env:      e,
		runner:   runner,
		registry: emu.NewRegistry(e, runner),
	}
}

func pick(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Environment holds configuration for the manager.
type Environment struct {
	ConfigPath    string          // Properties file (default: $EMULATORS_CONFIG or ant.properties)
	DefaultApp    string          // App used when Options.App is empty (default: $EMULATORS_APP)
	LogDir        string          // Directory for detached emulator logs (default: os temp dir)
	ADBBin        string          // Path to adb binary (default: "adb")
	EmulatorBin   string          // Path to emulator binary (default: "emulator")
	CorrelationID string          // Correlation ID for log enrichment
	Context       context.Context // Context for tracing
	DryRun        bool            // Log commands instead of executing them
	Runner        Runner          // Overrides the command runner (tests)
}

// EmulatorInfo describes one configured emulator.
type EmulatorInfo struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Serial string `json:"serial" yaml:"serial"`
	Port   string `json:"port" yaml:"port"`
}

// Options are the per-command parameters.
type Options struct {
	App     string        // App identifier (forceStop, clear, uninstall)
	APK     string        // APK path (install)
	Visual  bool          // Start with a window
	Timeout time.Duration // Per-emulator command timeout (0 = none)
	Ungated []string      // Commands that skip the liveness check
}

// Result is the outcome for one requested emulator ID.
type Result struct {
	ID      string
	Serial  string
	Outcome string // issued, failed, not_running, unknown_id
	Err     error
}

// Load reads emulator definitions from the configured properties file.
func (m *Manager) Load() error {
	return m.LoadFile(m.env.ConfigPath)
}

// LoadFile reads emulator definitions from path.
func (m *Manager) LoadFile(path string) error {
	_, span := m.startSpan("emumanager.Load", attribute.String("path", path))
	defer span.End()
	if err := m.registry.LoadProperties(path); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Add defines or replaces an emulator.
func (m *Manager) Add(id, serial, name string) error {
	return m.registry.Add(id, emu.EmulatorConfig{Serial: serial, Name: name})
}

// List returns the configured emulators in stable ID order.
func (m *Manager) List() []EmulatorInfo {
	emus := m.registry.Emulators()
	out := make([]EmulatorInfo, len(emus))
	for i, e := range emus {
		out[i] = EmulatorInfo{ID: e.ID, Name: e.Name, Serial: e.Serial, Port: e.Port()}
	}
	return out
}

// Running reports which configured emulators adb currently lists.
func (m *Manager) Running(ctx context.Context) (map[string]bool, error) {
	serials, err := emu.ListDevices(ctx, m.env, m.runner)
	if err != nil {
		return nil, err
	}
	live := make(map[string]bool, len(serials))
	for _, s := range serials {
		live[s] = true
	}
	out := make(map[string]bool)
	for _, e := range m.registry.Emulators() {
		out[e.ID] = live[e.Serial]
	}
	return out, nil
}

// RestartADB bounces the adb server. Failures are logged, not returned.
func (m *Manager) RestartADB(ctx context.Context) {
	emu.RestartADB(ctx, m.env, m.runner)
}

// Dispatch runs the named command on ids, or on every emulator when ids is
// empty. The error is non-nil only for configuration problems (unknown
// command, missing option); per-emulator outcomes are in the results.
func (m *Manager) Dispatch(ctx context.Context, command string, ids []string, opts Options) ([]Result, error) {
	if opts.App == "" {
		opts.App = m.env.DefaultApp
	}
	report, err := m.registry.Dispatch(ctx, command, ids, emu.Options{
		App:     opts.App,
		APK:     opts.APK,
		Visual:  opts.Visual,
		Timeout: opts.Timeout,
		Ungated: opts.Ungated,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Result, len(report.Results))
	for i, r := range report.Results {
		out[i] = Result{ID: r.ID, Serial: r.Serial, Outcome: string(r.Outcome), Err: r.Err}
	}
	return out, nil
}

// Start launches emulators detached (headless unless visual).
func (m *Manager) Start(ctx context.Context, ids []string, visual bool) ([]Result, error) {
	return m.Dispatch(ctx, "start", ids, Options{Visual: visual})
}

// Stop kills running emulators.
func (m *Manager) Stop(ctx context.Context, ids []string) ([]Result, error) {
	return m.Dispatch(ctx, "stop", ids, Options{})
}

// Install installs apk on running emulators.
func (m *Manager) Install(ctx context.Context, ids []string, apk string) ([]Result, error) {
	return m.Dispatch(ctx, "install", ids, Options{APK: apk})
}

// Commands returns the names of the supported commands.
func Commands() []string {
	return emu.CommandNames()
}

func (m *Manager) startSpan(name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if m.env.CorrelationID != "" {
		attrs = append(attrs, attribute.String("correlation_id", m.env.CorrelationID))
	}
	ctx := m.env.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return otel.Tracer("emumanager").Start(ctx, name, trace.WithAttributes(attrs...))
}
