// SPDX-License-Identifier: MIT
//
// Package report is the Report Emitter (spec §4.I): it renders the fixed,
// bit-exact plain-text report the pipeline driver produces once per
// invocation — title and timestamp, input parameters, enabled-technique
// list, output module statistics, per-technique metrics, a short narrative
// per enabled technique, an effectiveness score, and a summary footer.
//
// Rendering is plain fmt/text-tabwriter over a bytes.Buffer; spec §6 fixes
// the report down to column counts and exact technique-name strings, which
// leaves no latitude for a templating or markup library to add value — see
// DESIGN.md.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/irobf/obfuscator/config"
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/metrics"
)

const bannerWidth = 78

var banner = strings.Repeat("=", bannerWidth)

// Report is the rendered result of one pipeline run, immutable once built.
type Report struct {
	GeneratedAt time.Time

	ModuleName   string
	TargetTriple string
	DataLayout   string

	Config config.Config

	FunctionCount    int
	BlockCount       int
	InstructionCount int

	CyclesCompleted int
	Metrics         map[metrics.Key]int64

	// Diagnostics carries the non-fatal per-cycle notices the pipeline
	// driver accumulated (spec §7: hard-cap and skipped-transform notices),
	// rendered as a trailing section when non-empty.
	Diagnostics []string
}

// New builds a Report from the final module, the base configuration, a
// metrics snapshot taken once at emission (spec §4.C), the number of cycles
// actually completed, and any accumulated non-fatal diagnostics.
func New(m *ir.Module, cfg config.Config, snapshot map[metrics.Key]int64, cyclesCompleted int, diagnostics []string) *Report {
	fnCount, blockCount, instrCount := 0, 0, 0
	for _, fn := range m.Functions() {
		if fn.IsDeclaration {
			continue
		}
		fnCount++
		blockCount += len(fn.Blocks)
		instrCount += fn.InstructionCount()
	}

	return &Report{
		GeneratedAt:      time.Now(),
		ModuleName:       m.Name,
		TargetTriple:     m.TargetTriple,
		DataLayout:       m.DataLayout,
		Config:           cfg,
		FunctionCount:    fnCount,
		BlockCount:       blockCount,
		InstructionCount: instrCount,
		CyclesCompleted:  cyclesCompleted,
		Metrics:          snapshot,
		Diagnostics:      append([]string(nil), diagnostics...),
	}
}

// WriteTo renders the report as plain text and writes it to w — the sole
// report I/O surface (spec §6); any file-path handling is the caller's job.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer

	r.writeHeader(&buf)
	r.writeInputParameters(&buf)
	r.writeEnabledTechniques(&buf)
	r.writeModuleStatistics(&buf)
	r.writePerTechniqueMetrics(&buf)
	r.writeNarrative(&buf)
	r.writeDiagnostics(&buf)
	r.writeSummary(&buf)

	return buf.WriteTo(w)
}

func section(buf *bytes.Buffer, title string) {
	fmt.Fprintln(buf, banner)
	fmt.Fprintln(buf, title)
	fmt.Fprintln(buf, banner)
}

func (r *Report) writeHeader(buf *bytes.Buffer) {
	fmt.Fprintln(buf, banner)
	fmt.Fprintln(buf, "OBFUSCATION PASS REPORT")
	fmt.Fprintf(buf, "Generated: %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(buf, "Module:    %s\n", r.ModuleName)
	fmt.Fprintln(buf, banner)
	fmt.Fprintln(buf)
}

func (r *Report) writeInputParameters(buf *bytes.Buffer) {
	section(buf, "INPUT PARAMETERS")
	tw := tabwriter.NewWriter(buf, 0, 2, 2, ' ', 0)
	fmt.Fprintf(tw, "cycles\t%d\n", r.Config.Cycles)
	fmt.Fprintf(tw, "bogus-percent\t%d\n", r.Config.BogusPercent)
	fmt.Fprintf(tw, "fake-loops\t%d\n", r.Config.FakeLoopCount)
	fmt.Fprintf(tw, "mba-level\t%d\n", r.Config.MBALevel)
	fmt.Fprintf(tw, "flatten-prob\t%d\n", r.Config.FlattenProb)
	fmt.Fprintf(tw, "vm-level\t%d\n", r.Config.VMLevel)
	fmt.Fprintf(tw, "poly-variants\t%d\n", r.Config.PolyVariants)
	fmt.Fprintf(tw, "string-scheme\t%s\n", r.Config.StringScheme)
	fmt.Fprintf(tw, "pbkdf2-iters\t%d\n", r.Config.PBKDF2Iters)
	fmt.Fprintf(tw, "decrypt-at-startup\t%t\n", r.Config.DecryptAtStartup)
	fmt.Fprintf(tw, "size-mode\t%s\n", r.Config.SizeMode)
	fmt.Fprintf(tw, "max-growth-pct\t%d\n", r.Config.MaxGrowthPct)
	fmt.Fprintf(tw, "auto-select\t%t\n", r.Config.AutoSelect)
	tw.Flush()
	fmt.Fprintln(buf)
}

func (r *Report) writeEnabledTechniques(buf *bytes.Buffer) {
	section(buf, "ENABLED TECHNIQUES")
	for _, t := range techniqueTable {
		state := "DISABLED"
		if r.Config.Toggles.Enabled(t.Technique) {
			state = "ENABLED"
		}
		fmt.Fprintf(buf, "%-40s%s\n", t.Name, state)
	}
	fmt.Fprintln(buf)
}

func (r *Report) writeModuleStatistics(buf *bytes.Buffer) {
	section(buf, "OUTPUT MODULE STATISTICS")
	tw := tabwriter.NewWriter(buf, 0, 2, 2, ' ', 0)
	fmt.Fprintf(tw, "functions\t%d\n", r.FunctionCount)
	fmt.Fprintf(tw, "blocks\t%d\n", r.BlockCount)
	fmt.Fprintf(tw, "instructions\t%d\n", r.InstructionCount)
	fmt.Fprintf(tw, "target-triple\t%s\n", orNone(r.TargetTriple))
	fmt.Fprintf(tw, "data-layout\t%s\n", orNone(r.DataLayout))
	tw.Flush()
	fmt.Fprintln(buf)
}

func (r *Report) writePerTechniqueMetrics(buf *bytes.Buffer) {
	section(buf, "PER-TECHNIQUE METRICS")
	tw := tabwriter.NewWriter(buf, 0, 2, 2, ' ', 0)
	for _, t := range techniqueTable {
		if t.Metric == "" {
			fmt.Fprintf(tw, "%s\t(uncounted)\n", t.Name)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\n", t.Name, r.Metrics[t.Metric])
	}
	tw.Flush()
	fmt.Fprintln(buf)
}

func (r *Report) writeNarrative(buf *bytes.Buffer) {
	section(buf, "DETAILED NARRATIVE")
	for _, t := range techniqueTable {
		if !r.Config.Toggles.Enabled(t.Technique) {
			continue
		}
		fmt.Fprintf(buf, "%s:\n  %s\n", t.Name, t.Narrative)
	}
	fmt.Fprintf(buf, "\nEffectiveness score: %.2f%%\n", r.effectivenessScore())
	fmt.Fprintln(buf)
}

func (r *Report) writeDiagnostics(buf *bytes.Buffer) {
	if len(r.Diagnostics) == 0 {
		return
	}
	section(buf, "DIAGNOSTICS")
	for _, d := range r.Diagnostics {
		fmt.Fprintf(buf, "- %s\n", d)
	}
	fmt.Fprintln(buf)
}

func (r *Report) writeSummary(buf *bytes.Buffer) {
	section(buf, "SUMMARY")
	fmt.Fprintf(buf, "Total transformations: %d\n", r.totalTransformations())
	fmt.Fprintf(buf, "Cycles completed:      %d\n", r.CyclesCompleted)
	fmt.Fprintln(buf, banner)
}

// effectivenessScore is the weighted sum of enabled techniques' fixed
// weights divided by the total possible weight, as a percentage (spec §6).
// Techniques with Weight 0 (constant obfuscation, indirect function calls,
// anti-tamper protection — absent from §6's weight table) never contribute
// to either the numerator or totalPossibleWeight.
func (r *Report) effectivenessScore() float64 {
	if totalPossibleWeight == 0 {
		return 0
	}
	earned := 0
	for _, t := range techniqueTable {
		if r.Config.Toggles.Enabled(t.Technique) {
			earned += t.Weight
		}
	}
	return float64(earned) / float64(totalPossibleWeight) * 100
}

// totalTransformations sums every counted metric (all but "cycles", which
// the summary reports separately as CyclesCompleted).
func (r *Report) totalTransformations() int64 {
	var total int64
	for _, k := range metrics.Keys() {
		if k == metrics.Cycles {
			continue
		}
		total += r.Metrics[k]
	}
	return total
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
