// SPDX-License-Identifier: MIT
//
// Package pipeline is the Pipeline Driver (spec §4.H): the single public
// entry point that walks a module through its configured obfuscation
// cycles and hands back a rendered report. `Run` owns the pass's RNG,
// metrics recorder, and accumulated encrypted-string table for the
// lifetime of one invocation, per spec §5's single-pass-instance model.
package pipeline

import (
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Option configures one Run invocation. The only thing a caller can adjust
// beyond the module and its Config is where diagnostic logging goes — spec
// §5 gives the driver no other external knobs.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

func resolveOptions(opts []Option) *options {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger routes the driver's structured diagnostics through l instead of
// the default no-op logger. A nil l is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// cycleReport accumulates one cycle's non-fatal diagnostics (spec §7: hard
// caps reached, transforms skipped for structural reasons) behind a
// multierror.Error so Run can flatten every cycle's notices into the
// report's Diagnostics section without the pipeline ever treating them as
// failures — only a terminal verifier failure is fatal (spec §7).
type cycleReport struct {
	cycle       int
	diagnostics *multierror.Error
}

func newCycleReport(cycle int) *cycleReport {
	return &cycleReport{cycle: cycle, diagnostics: &multierror.Error{}}
}

func (c *cycleReport) notef(format string, args ...any) {
	c.diagnostics = multierror.Append(c.diagnostics, &diagnostic{cycle: c.cycle, format: format, args: args})
}

// diagnostic defers formatting to Error(), which Run calls for every
// diagnostic when it flattens each cycle's notices at the end of the cycle.
type diagnostic struct {
	cycle  int
	format string
	args   []any
}

func (d *diagnostic) Error() string {
	return sprintfCycle(d.cycle, d.format, d.args...)
}
