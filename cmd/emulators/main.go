// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	core "github.com/forkbombeu/emulators/internal/emu"
)

type flags struct {
	config       string
	app          string
	apk          string
	visual       bool
	dryRun       bool
	noADBRestart bool
	timeout      time.Duration
	ungated      []string
}

func main() {
	ctx := context.Background()
	shutdown, err := core.SetupTracing(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tracing disabled:", err)
	}

	code := 0
	if err := newRootCmd(core.Detect(), os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code = 1
	}
	_ = shutdown(ctx)
	os.Exit(code)
}

func newRootCmd(env core.Env, out io.Writer) *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:   "emulators <command> [ID...]",
		Short: "Start, stop and manage apps on a fleet of Android emulators",
		Long: "Manage an array of Android emulators and installed applications.\n\n" +
			"Emulators are defined in a properties file (emulator.<N>.name and\n" +
			"emulator.<N>.console.port). Commands apply to the given IDs, or to all\n" +
			"emulators when no ID is given.\n\n" +
			"Valid commands: " + strings.Join(core.CommandNames(), ", "),
		Example: "  emulators start 2 3 4 --visual\n" +
			"  emulators forceStop --app com.myapp\n" +
			"  emulators install 1 --apk app-debug.apk",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Unknown names land here instead of in cobra's own arg check, so
		// they get the help text too.
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			if _, err := core.LookupCommand(name); err != nil {
				return err
			}
			return fmt.Errorf("command %s not registered", name)
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVarP(&f.config, "config", "c", env.ConfigPath, "emulator properties file ($EMULATORS_CONFIG)")
	pf.StringVarP(&f.app, "app", "a", env.DefaultApp, "app identifier, e.g. com.zixcorp.brooklyndroid ($EMULATORS_APP)")
	pf.StringVar(&f.apk, "apk", "", "apk file to install, e.g. brooklyndroid.apk")
	pf.BoolVarP(&f.visual, "visual", "v", false, "run emulators in visual rather than headless mode")
	pf.BoolVar(&f.dryRun, "dry-run", false, "log commands instead of executing them")
	pf.BoolVar(&f.noADBRestart, "no-adb-restart", false, "do not restart the adb server before dispatching")
	pf.DurationVar(&f.timeout, "timeout", 0, "per-emulator command timeout (0 = none)")
	pf.StringSliceVar(&f.ungated, "ungated", nil, "commands to run without checking the emulator is running")

	for _, c := range core.Commands() {
		name := c.Name
		root.AddCommand(&cobra.Command{
			Use:   name + " [ID...]",
			Short: c.Short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return dispatch(cmd, env, f, name, args)
			},
		})
	}

	// list
	var listJSON, listYAML, listStatus bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List configured emulators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listJSON && listYAML {
				return errors.New("use only one of --json and --yaml")
			}
			runner, reg, err := load(env, f)
			if err != nil {
				return err
			}
			type row struct {
				ID      string `json:"id" yaml:"id"`
				Name    string `json:"name" yaml:"name"`
				Serial  string `json:"serial" yaml:"serial"`
				Port    string `json:"port" yaml:"port"`
				Running *bool  `json:"running,omitempty" yaml:"running,omitempty"`
			}
			var live map[string]bool
			if listStatus {
				serials, err := core.ListDevices(cmd.Context(), env, runner)
				if err != nil {
					return err
				}
				live = make(map[string]bool, len(serials))
				for _, s := range serials {
					live[s] = true
				}
			}
			rows := make([]row, 0, reg.Len())
			for _, e := range reg.Emulators() {
				r := row{ID: e.ID, Name: e.Name, Serial: e.Serial, Port: e.Port()}
				if live != nil {
					running := live[e.Serial]
					r.Running = &running
				}
				rows = append(rows, r)
			}
			w := cmd.OutOrStdout()
			switch {
			case listJSON:
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			case listYAML:
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2)
				if err := enc.Encode(rows); err != nil {
					return err
				}
				return enc.Close()
			}
			if len(rows) == 0 {
				fmt.Fprintln(w, "(no emulators)")
				return nil
			}
			for _, r := range rows {
				state := ""
				if r.Running != nil {
					state = "stopped"
					if *r.Running {
						state = "running"
					}
				}
				fmt.Fprintf(w, "%-4s %-24s %-16s port=%-5s %s\n", r.ID, r.Name, r.Serial, r.Port, state)
			}
			return nil
		},
	}
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output JSON")
	listCmd.Flags().BoolVar(&listYAML, "yaml", false, "output YAML")
	listCmd.Flags().BoolVar(&listStatus, "status", false, "query adb for running state")
	root.AddCommand(listCmd)

	return root
}

// load builds the runner and reads the registry. Any error here is a
// configuration error.
func load(env core.Env, f flags) (core.Runner, *core.Registry, error) {
	env.ConfigPath = f.config
	env.DefaultApp = f.app
	var runner core.Runner
	var dry *core.DryRunRunner
	if f.dryRun {
		dry = core.NewDryRunRunner(env)
		runner = dry
	} else {
		runner = core.NewExecRunner(env)
	}
	reg := core.NewRegistry(env, runner)
	if err := reg.LoadProperties(f.config); err != nil {
		return nil, nil, err
	}
	if dry != nil {
		// A dry run treats every configured emulator as running.
		for _, e := range reg.Emulators() {
			dry.Devices = append(dry.Devices, e.Serial)
		}
	}
	return runner, reg, nil
}

func dispatch(cmd *cobra.Command, env core.Env, f flags, name string, ids []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env.Context = ctx

	c, err := core.LookupCommand(name)
	if err != nil {
		return err
	}
	opts := core.Options{
		App:     f.app,
		APK:     f.apk,
		Visual:  f.visual,
		Timeout: f.timeout,
		Ungated: f.ungated,
	}
	// Reject bad options before loading or touching adb.
	if err := c.Validate(opts); err != nil {
		return err
	}
	runner, reg, err := load(env, f)
	if err != nil {
		return err
	}
	if !f.noADBRestart {
		core.RestartADB(ctx, env, runner)
	}
	report, err := reg.Dispatch(ctx, name, ids, opts)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, r := range report.Results {
		line := fmt.Sprintf("%-4s %-16s %s", r.ID, r.Serial, r.Outcome)
		if r.Err != nil && r.Outcome == core.OutcomeFailed {
			line += ": " + r.Err.Error()
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	return nil
}
