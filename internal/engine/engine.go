// Package engine is the embedding surface a host program imports: it
// wraps internal/core's registry and internal/shell's helpers behind four
// registration entry points (File, Phony, Sh, Rm) plus the Loop
// convenience helper. Resolution, freshness and execution live in
// internal/dag and are driven by internal/cli, not by this package. The engine instance itself carries no
// process-wide state — a host may construct more than one, though in
// practice exactly one backs a given cmd/weave binary.
package engine

import (
	"context"

	"weave/internal/core"
	"weave/internal/shell"
)

// Config is the construction-time configuration record for an Engine.
type Config struct {
	// UseHash is the DSL-wide default freshness policy; individual file
	// targets may override it via FileOption.
	UseHash bool
	// NJobs is the global parallelism bound J (default 1).
	NJobs int
	// NSerial is the per-serial-class bound S (default 1).
	NSerial int
	// KeepGoing, when true, runs the build to quiescence past failures
	// rather than stopping dispatch at the first one (default true). A nil
	// value is distinguished from an explicit false the same way
	// FileTarget.UseHash is: a plain bool's zero value can't tell "the
	// caller omitted this field" from "the caller wants stop-on-failure",
	// so New treats nil as unset and fills in the documented default.
	KeepGoing *bool
}

// BoolPtr is a convenience for populating Config.KeepGoing (or any other
// *bool field) from a literal, since Go has no address-of operator for a
// literal value.
func BoolPtr(v bool) *bool { return &v }

// Engine is the explicit, host-owned instance registration calls hang off
// of, in place of a global DSL object with mutable registry: registration
// calls take an *Engine receiver rather than mutating implicit singleton
// state.
type Engine struct {
	reg *core.Registry
	cfg Config
}

// New constructs an engine with an empty registry.
func New(cfg Config) *Engine {
	if cfg.NJobs == 0 {
		cfg.NJobs = 1
	}
	if cfg.NSerial == 0 {
		cfg.NSerial = 1
	}
	if cfg.KeepGoing == nil {
		cfg.KeepGoing = BoolPtr(true)
	}
	return &Engine{reg: core.NewRegistry(cfg.UseHash), cfg: cfg}
}

// Registry exposes the underlying registry to the driver.
func (e *Engine) Registry() *core.Registry { return e.reg }

// Config returns the engine's construction-time configuration.
func (e *Engine) Config() Config { return e.cfg }

// FileOption configures a single File registration call.
type FileOption func(*core.FileTarget)

// Desc attaches a human description shown by -t/--targets.
func Desc(d string) FileOption { return func(t *core.FileTarget) { t.Desc = d } }

// Serial assigns an automatic serial class keyed on the target's primary
// output, giving a deterministic per-target class when no explicit tag is
// given.
func Serial() FileOption {
	return func(t *core.FileTarget) {
		if t.SerialClass == "" && len(t.Outputs) > 0 {
			t.SerialClass = t.Outputs[0]
		}
	}
}

// SerialClass tags the target with an explicit serial class shared with
// any other target carrying the same tag.
func SerialClass(tag string) FileOption {
	return func(t *core.FileTarget) { t.SerialClass = tag }
}

// UseHash overrides the engine-wide default freshness policy for this
// target.
func UseHash(use bool) FileOption {
	return func(t *core.FileTarget) { t.UseHash = &use }
}

// File registers a file target producing outputs from inputs by running
// action.
func (e *Engine) File(outputs, inputs []string, action core.Action, opts ...FileOption) error {
	t := &core.FileTarget{Outputs: outputs, Inputs: inputs, Action: action}
	for _, opt := range opts {
		opt(t)
	}
	return e.reg.RegisterFile(t)
}

// PhonyOption configures a single Phony registration call.
type PhonyOption func(*core.PhonyTarget)

// PhonyDesc attaches a human description shown by -t/--targets.
func PhonyDesc(d string) PhonyOption { return func(p *core.PhonyTarget) { p.Desc = d } }

// Phony registers a named alias with dependencies and no file output.
func (e *Engine) Phony(name string, inputs []string, opts ...PhonyOption) error {
	p := &core.PhonyTarget{Name: name, Inputs: inputs}
	for _, opt := range opts {
		opt(p)
	}
	return e.reg.RegisterPhony(p)
}

// Sh runs cmd through job's shell handle, failing the containing action on
// non-zero exit. It is a convenience so an Action body reads as a sequence
// of commands rather than repeated job.Shell.Run calls.
func Sh(ctx context.Context, job core.JobContext, cmd string) error {
	return job.Shell.Run(ctx, cmd)
}

// Rm unlinks paths, ignoring absence.
func Rm(paths []string) error {
	return shell.Rm(paths)
}

// Loop iterates items, invoking fn once per element. It exists purely so a
// host program can compose repeated File/Phony registrations ergonomically
// inside a single construction-phase function body.
func Loop[T any](items []T, fn func(T)) {
	for _, it := range items {
		fn(it)
	}
}
