// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package emu

import (
	"context"
	"os"
	"strings"
	"time"
)

// Options carries the per-invocation parameters of a command.
type Options struct {
	App     string        // app identifier, e.g. com.example.app
	APK     string        // apk path for install
	Visual  bool          // start with a window instead of headless
	Timeout time.Duration // per-target command timeout; 0 means none
	// Ungated lists command names that skip the liveness gate for this run.
	Ungated []string
}

// Command is one entry of the closed set of operations the CLI exposes.
type Command struct {
	Name     string
	Short    string
	NeedsApp bool
	NeedsAPK bool
	// Gated commands are skipped on emulators that adb does not list.
	Gated bool

	run func(ctx context.Context, e *Emulator, opts Options) error
}

var commandTable = []Command{
	{
		Name:  "start",
		Short: "Start emulators (headless unless --visual)",
		run: func(ctx context.Context, e *Emulator, opts Options) error {
			_, err := e.Start(ctx, opts.Visual)
			return err
		},
	},
	{
		Name:  "stop",
		Short: "Stop running emulators",
		Gated: true,
		run: func(ctx context.Context, e *Emulator, _ Options) error {
			return e.Stop(ctx)
		},
	},
	{
		Name:     "forceStop",
		Short:    "Force-stop an app on running emulators",
		NeedsApp: true,
		Gated:    true,
		run: func(ctx context.Context, e *Emulator, opts Options) error {
			return e.ForceStopApp(ctx, opts.App)
		},
	},
	{
		Name:     "clear",
		Short:    "Clear an app's data on running emulators",
		NeedsApp: true,
		Gated:    true,
		run: func(ctx context.Context, e *Emulator, opts Options) error {
			return e.ClearAppData(ctx, opts.App)
		},
	},
	{
		Name:     "install",
		Short:    "Install an APK on running emulators",
		NeedsAPK: true,
		Gated:    true,
		run: func(ctx context.Context, e *Emulator, opts Options) error {
			return e.InstallAPK(ctx, opts.APK)
		},
	},
	{
		Name:     "uninstall",
		Short:    "Uninstall an app from running emulators",
		NeedsApp: true,
		Gated:    true,
		run: func(ctx context.Context, e *Emulator, opts Options) error {
			return e.UninstallApp(ctx, opts.App)
		},
	},
}

// Commands returns the command table in help order.
func Commands() []Command {
	out := make([]Command, len(commandTable))
	copy(out, commandTable)
	return out
}

func CommandNames() []string {
	names := make([]string, len(commandTable))
	for i, c := range commandTable {
		names[i] = c.Name
	}
	return names
}

func LookupCommand(name string) (Command, error) {
	for _, c := range commandTable {
		if c.Name == name {
			return c, nil
		}
	}
	if name == "" {
		return Command{}, invalidArgument("must provide a command (one of %s)", strings.Join(CommandNames(), ", "))
	}
	return Command{}, invalidArgument("unknown command: %s (one of %s)", name, strings.Join(CommandNames(), ", "))
}

// Validate checks opts before any emulator is touched.
func (c Command) Validate(opts Options) error {
	if c.NeedsApp && opts.App == "" {
		return invalidArgument("%s requires --app (or EMULATORS_APP)", c.Name)
	}
	if c.NeedsAPK {
		if opts.APK == "" {
			return invalidArgument("%s requires --apk", c.Name)
		}
		if _, err := os.Stat(opts.APK); err != nil {
			return notFound("apk %s", opts.APK)
		}
	}
	for _, name := range opts.Ungated {
		if _, err := LookupCommand(name); err != nil {
			return err
		}
	}
	return nil
}

// GatedFor reports whether the liveness gate applies under opts.
func (c Command) GatedFor(opts Options) bool {
	if !c.Gated {
		return false
	}
	for _, name := range opts.Ungated {
		if name == c.Name {
			return false
		}
	}
	return true
}
