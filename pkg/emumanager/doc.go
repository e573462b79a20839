// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

/*
Package emumanager provides a Go library for driving a fixed fleet of Android
emulators and the apps installed on them.

# Overview

Emulators are declared once in an Ant-style properties file and addressed by
logical ID. Every command is applied to an explicit list of IDs or, when the
list is empty, to every configured emulator, one after the other.

# Quick Start

	import "github.com/forkbombeu/emulators/pkg/emumanager"

	func main() {
		mgr := emumanager.NewWithEnv(emumanager.Environment{
			ConfigPath: "ant.properties",
		})
		if err := mgr.Load(); err != nil {
			log.Fatal(err)
		}

		// Boot emulators 2 and 3 headless
		mgr.Start(ctx, []string{"2", "3"}, false)

		// Reset the app everywhere it is running
		mgr.Dispatch(ctx, "forceStop", nil, emumanager.Options{App: "com.example.app"})
		mgr.Dispatch(ctx, "clear", nil, emumanager.Options{App: "com.example.app"})
	}

# Configuration File

	emulator.0.name=Nexus_5_API_21
	emulator.0.console.port=emulator-5560
	emulator.1.name=Nexus_7_API_21
	emulator.1.console.port=emulator-5562

IDs may be sparse. Entries missing a name or carrying a serial that is not
emulator-<port> are skipped.

# Commands

  - start: launch detached (headless unless visual)
  - stop: adb emu kill
  - forceStop: am force-stop <app>
  - clear: pm clear <app>
  - install: adb install <apk>
  - uninstall: adb uninstall <app>

All commands except start are skipped on emulators that `adb devices` does not
list. Options.Ungated lifts that check for named commands.

# Errors

Dispatch returns an error only for configuration problems: unknown command,
missing app or apk. Everything that happens on a single emulator is reported in
the returned results and never stops the remaining emulators.

# Thread Safety

Load and Add are not thread-safe and must finish before the Manager is shared.
After that the registry is only read, so Dispatch, Start, Stop, Install,
List and Running may be called from several goroutines as long as the Runner
is safe for concurrent use (the built-in exec and dry-run runners are). Within
one Dispatch call the emulators are still handled one after the other.

# License

AGPL-3.0-only

Copyright (C) 2025 Forkbomb B.V.
*/
package emumanager
