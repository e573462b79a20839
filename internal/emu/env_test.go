package emu

import "testing"

func TestDetect(t *testing.T) {
	t.Setenv("EMULATORS_CONFIG", "")
	t.Setenv("EMULATORS_APP", "com.example.app")
	t.Setenv("EMULATORS_ADB", "/opt/sdk/platform-tools/adb")
	env := Detect()
	if env.ConfigPath != DefaultConfigPath {
		t.Fatalf("expected default config path, got %q", env.ConfigPath)
	}
	if env.DefaultApp != "com.example.app" {
		t.Fatalf("expected app from env, got %q", env.DefaultApp)
	}
	if env.ADB != "/opt/sdk/platform-tools/adb" || env.Emulator != "emulator" {
		t.Fatalf("unexpected binaries %q %q", env.ADB, env.Emulator)
	}
	if env.LogDir == "" {
		t.Fatal("LogDir should not be empty")
	}
}
