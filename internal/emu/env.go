// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package emu

import (
	"context"
	"os"
)

// DefaultConfigPath is the properties file read when EMULATORS_CONFIG is unset.
const DefaultConfigPath = "ant.properties"

type Env struct {
	ConfigPath string // EMULATORS_CONFIG (default ant.properties)
	DefaultApp string // EMULATORS_APP (optional)
	LogDir     string // EMULATORS_LOG_DIR (default os.TempDir())
	ADB        string // EMULATORS_ADB (default adb)
	Emulator   string // EMULATORS_EMULATOR (default emulator)
	// CorrelationID is used to tie logs to a specific workflow/activity.
	CorrelationID string
	// Context is used to parent OpenTelemetry spans.
	Context context.Context
}

func Detect() Env {
	return Env{
		ConfigPath:    getenv("EMULATORS_CONFIG", DefaultConfigPath),
		DefaultApp:    os.Getenv("EMULATORS_APP"),
		LogDir:        getenv("EMULATORS_LOG_DIR", os.TempDir()),
		ADB:           getenv("EMULATORS_ADB", "adb"),
		Emulator:      getenv("EMULATORS_EMULATOR", "emulator"),
		CorrelationID: os.Getenv("EMULATORS_CORRELATION_ID"),
		Context:       context.Background(),
	}
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// withDefaults fills zero fields so a hand-built Env behaves like Detect().
func (env Env) withDefaults() Env {
	if env.ADB == "" {
		env.ADB = "adb"
	}
	if env.Emulator == "" {
		env.Emulator = "emulator"
	}
	if env.LogDir == "" {
		env.LogDir = os.TempDir()
	}
	if env.ConfigPath == "" {
		env.ConfigPath = DefaultConfigPath
	}
	return env
}
