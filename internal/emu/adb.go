// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package emu

import (
	"context"
	"strings"
)

// ListDevices returns the identifiers printed by `adb devices`, whatever their
// state (device, offline, unauthorized).
func ListDevices(ctx context.Context, env Env, runner Runner) ([]string, error) {
	env = env.withDefaults()
	res, err := runner.Run(ctx, env.ADB, "devices")
	if err != nil {
		return nil, err
	}
	return parseDevices(res.Stdout), nil
}

func parseDevices(out string) []string {
	var serials []string
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) < 2 || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(f[0], "*") {
			continue
		}
		serials = append(serials, f[0])
	}
	return serials
}

// RestartADB bounces the adb server, which tends to lose track of emulators.
// Failures are logged and otherwise ignored.
func RestartADB(ctx context.Context, env Env, runner Runner) {
	env = env.withDefaults()
	ctx, span := startSpanFrom(ctx, env, "emu.RestartADB")
	defer span.End()
	logEvent(env, "restarting adb")
	if _, err := runner.Run(ctx, env.ADB, "kill-server"); err != nil {
		recordSpanError(span, err)
	}
	if _, err := runner.Run(ctx, env.ADB, "start-server"); err != nil {
		recordSpanError(span, err)
		logEvent(env, "adb restart failed", "error", err)
		return
	}
	logEvent(env, "adb restart complete")
}
