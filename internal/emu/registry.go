// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package emu

import (
	"context"
	"sort"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
)

// Outcome classifies what happened to one dispatch target.
type Outcome string

const (
	OutcomeIssued     Outcome = "issued"
	OutcomeFailed     Outcome = "failed"
	OutcomeNotRunning Outcome = "not_running"
	OutcomeUnknownID  Outcome = "unknown_id"
)

// TargetResult is the outcome of a command on one requested ID.
type TargetResult struct {
	ID      string
	Serial  string
	Outcome Outcome
	Err     error
}

// Report collects per-target outcomes of a dispatch. Per-target failures end
// up here, never in the error returned by Dispatch.
type Report struct {
	Command string
	Results []TargetResult
}

func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Registry maps logical emulator IDs to emulators. It is filled once at
// startup and only read afterwards.
type Registry struct {
	env       Env
	runner    Runner
	emulators map[string]*Emulator
}

func NewRegistry(env Env, runner Runner) *Registry {
	return &Registry{
		env:       env.withDefaults(),
		runner:    runner,
		emulators: make(map[string]*Emulator),
	}
}

// Add defines or replaces the emulator for id.
func (r *Registry) Add(id string, cfg EmulatorConfig) error {
	e, err := NewEmulator(r.env, r.runner, id, cfg)
	if err != nil {
		return err
	}
	r.emulators[id] = e
	return nil
}

// LoadProperties adds every emulator defined in the properties file at path.
func (r *Registry) LoadProperties(path string) error {
	defs, err := LoadDefinitions(r.env, path)
	if err != nil {
		return err
	}
	for _, d := range defs {
		if err := r.Add(d.ID, d.EmulatorConfig); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Get(id string) (*Emulator, bool) {
	e, ok := r.emulators[id]
	return e, ok
}

func (r *Registry) Len() int { return len(r.emulators) }

// IDs returns every registered ID, numeric IDs in numeric order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.emulators))
	for id := range r.emulators {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func (r *Registry) Emulators() []*Emulator {
	ids := r.IDs()
	out := make([]*Emulator, len(ids))
	for i, id := range ids {
		out[i] = r.emulators[id]
	}
	return out
}

// Apply runs op on the emulators named by ids, in order, or on every
// emulator when ids is empty. Unknown IDs are logged and skipped. An op error
// never stops the remaining targets.
func (r *Registry) Apply(ctx context.Context, ids []string, op func(context.Context, *Emulator) error) []TargetResult {
	if len(ids) == 0 {
		ids = r.IDs()
	}
	results := make([]TargetResult, 0, len(ids))
	for _, id := range ids {
		e, ok := r.emulators[id]
		if !ok {
			logEvent(r.env, "unknown emulator id", "id", id)
			results = append(results, TargetResult{ID: id, Outcome: OutcomeUnknownID, Err: notFound("emulator %s", id)})
			continue
		}
		res := TargetResult{ID: id, Serial: e.Serial, Outcome: OutcomeIssued}
		if err := op(ctx, e); err != nil {
			res.Err = err
			res.Outcome = OutcomeFailed
			if IsNotRunning(err) {
				res.Outcome = OutcomeNotRunning
			}
		}
		results = append(results, res)
	}
	return results
}

// Dispatch resolves name in the command table, validates opts and applies the
// command to ids (all emulators when empty). Only configuration errors are
// returned; everything that happens per target is in the Report.
func (r *Registry) Dispatch(ctx context.Context, name string, ids []string, opts Options) (Report, error) {
	cmd, err := LookupCommand(name)
	if err != nil {
		return Report{}, err
	}
	if err := cmd.Validate(opts); err != nil {
		return Report{}, err
	}
	if ctx == nil {
		ctx = spanContext(r.env)
	}
	ctx, span := startSpanFrom(
		ctx,
		r.env,
		"emu.Dispatch",
		attribute.String("command", cmd.Name),
		attribute.StringSlice("ids", ids),
	)
	defer span.End()

	gated := cmd.GatedFor(opts)
	logEvent(r.env, "dispatch", "command", cmd.Name, "ids", ids, "gated", gated)

	results := r.Apply(ctx, ids, func(ctx context.Context, e *Emulator) error {
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		if gated && !e.IsRunning(ctx) {
			logEvent(r.env, "emulator not running, skipping", "command", cmd.Name, "id", e.ID, "serial", e.Serial)
			return ErrNotRunning
		}
		err := cmd.run(ctx, e, opts)
		if err != nil {
			logEvent(r.env, "command failed on emulator", "command", cmd.Name, "id", e.ID, "serial", e.Serial, "error", err)
		}
		return err
	})

	report := Report{Command: cmd.Name, Results: results}
	span.SetAttributes(
		attribute.Int("issued", report.Count(OutcomeIssued)),
		attribute.Int("failed", report.Count(OutcomeFailed)),
		attribute.Int("not_running", report.Count(OutcomeNotRunning)),
		attribute.Int("unknown_id", report.Count(OutcomeUnknownID)),
	)
	logEvent(
		r.env,
		"dispatch finished",
		"command",
		cmd.Name,
		"issued",
		report.Count(OutcomeIssued),
		"failed",
		report.Count(OutcomeFailed),
		"not_running",
		report.Count(OutcomeNotRunning),
		"unknown_id",
		report.Count(OutcomeUnknownID),
	)
	return report, nil
}

// sortIDs orders numeric IDs numerically and puts them before other IDs,
// which are ordered lexically.
func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		switch {
		case errA == nil && errB == nil:
			if a != b {
				return a < b
			}
			return ids[i] < ids[j]
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}
