// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package emumanager_test

import (
	"context"
	"fmt"
	"log"

	"github.com/forkbombeu/emulators/pkg/emumanager"
)

func Example_basicUsage() {
	mgr := emumanager.NewWithEnv(emumanager.Environment{
		ConfigPath: "ant.properties",
	})
	if err := mgr.Load(); err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	// adb loses track of emulators easily
	mgr.RestartADB(ctx)

	// Boot emulators 2 and 3 headless
	if _, err := mgr.Start(ctx, []string{"2", "3"}, false); err != nil {
		log.Fatal(err)
	}

	// Install on every running emulator
	results, err := mgr.Install(ctx, nil, "app-debug.apk")
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range results {
		fmt.Printf("%s %s: %s\n", r.ID, r.Serial, r.Outcome)
	}
}

func Example_dryRun() {
	mgr := emumanager.NewWithEnv(emumanager.Environment{DryRun: true})
	if err := mgr.Add("1", "emulator-5560", "Nexus_5_API_21"); err != nil {
		log.Fatal(err)
	}
	for _, e := range mgr.List() {
		fmt.Println(e.ID, e.Name, e.Serial, e.Port)
	}
	// Output: 1 Nexus_5_API_21 emulator-5560 5560
}
