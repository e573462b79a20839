// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package emu

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

// ErrNotRunning is recorded for gated commands whose target is not listed by
// `adb devices`. It classifies as errdefs.ErrUnavailable.
var ErrNotRunning = fmt.Errorf("emulator not running: %w", errdefs.ErrUnavailable)

// IsConfigError reports whether err must abort the invocation before any
// device command is issued.
func IsConfigError(err error) bool {
	return errdefs.IsInvalidArgument(err) || errdefs.IsNotFound(err)
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errdefs.ErrInvalidArgument)
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errdefs.ErrNotFound)
}

// IsNotRunning reports whether err came from the liveness gate.
func IsNotRunning(err error) bool {
	return errors.Is(err, ErrNotRunning)
}
