// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

//go:build !unix

package emu

import "syscall"

func detachedProcAttr() *syscall.SysProcAttr { return nil }
