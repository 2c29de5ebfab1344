// SPDX-License-Identifier: MIT
//
// Package metrics is the Metrics Recorder (spec §4.C): additive integer
// counters keyed by a fixed set of metric names, incremented per
// transformation event, snapshotted once at report emission.
//
// Counters are backed by a private prometheus.Registry
// (github.com/prometheus/client_golang, a dependency of the pack's R3E
// service_layer and nmxmxh-inos_v1 repos) rather than a plain map, so the
// same counters could be scraped mid-run by an embedding service without
// this package inventing its own thread-safe-counter primitive — Prometheus
// counters are safe for concurrent Add/Inc even though spec §5 does not
// require it. The registry is always private to one Recorder: two Recorders
// in the same process never collide on metric registration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Key identifies one of the fixed metric names spec §3 enumerates.
type Key string

// The fixed enumerated metric keys (spec §3).
const (
	ControlFlowObfs     Key = "control-flow-obfs"
	BogusInstrs         Key = "bogus-instrs"
	FakeLoops           Key = "fake-loops"
	StringEncrypts      Key = "string-encrypts"
	Cycles              Key = "cycles"
	InstrSubs           Key = "instr-subs"
	FlattenedFunctions  Key = "flattened-functions"
	MBATransforms       Key = "mba-transforms"
	AntiDebug           Key = "anti-debug"
	IndirectCalls       Key = "indirect-calls"
	ConstObfs           Key = "const-obfs"
	VirtualizedFunctions Key = "virtualized-functions"
	PolymorphicVariants Key = "polymorphic-variants"
	AntiAnalysis        Key = "anti-analysis"
	Metamorphic         Key = "metamorphic"
	DynamicObfs         Key = "dynamic-obfs"
)

// allKeys is the fixed, ordered key set — report emission walks this order
// so the rendered report is stable across runs.
var allKeys = []Key{
	ControlFlowObfs, StringEncrypts, BogusInstrs, FakeLoops, InstrSubs,
	FlattenedFunctions, MBATransforms, AntiDebug, IndirectCalls, ConstObfs,
	VirtualizedFunctions, PolymorphicVariants, Metamorphic, DynamicObfs,
	AntiAnalysis, Cycles,
}

// Recorder accumulates per-technique counters for one pass invocation.
type Recorder struct {
	registry *prometheus.Registry
	counters map[Key]prometheus.Counter
}

// New returns a Recorder with every fixed metric key registered at zero.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	counters := make(map[Key]prometheus.Counter, len(allKeys))
	for _, k := range allKeys {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "irobf_" + sanitize(string(k)),
			Help: "obfuscation pass counter: " + string(k),
		})
		reg.MustRegister(c)
		counters[k] = c
	}
	return &Recorder{registry: reg, counters: counters}
}

// Inc increments key by one. Unknown keys are a no-op (defensive against a
// typo'd constant; the fixed key set is closed by design).
func (r *Recorder) Inc(key Key) { r.Add(key, 1) }

// Add increments key by n (n may be zero; negative n is clamped to zero
// since counters are monotonically non-decreasing, spec §8 property 4).
func (r *Recorder) Add(key Key, n int) {
	if n <= 0 {
		return
	}
	if c, ok := r.counters[key]; ok {
		c.Add(float64(n))
	}
}

// Snapshot reads every fixed counter's current value into a plain map,
// taken once at report emission (spec §4.C).
func (r *Recorder) Snapshot() map[Key]int64 {
	out := make(map[Key]int64, len(allKeys))
	for _, k := range allKeys {
		var m dto.Metric
		_ = r.counters[k].Write(&m)
		out[k] = int64(m.GetCounter().GetValue())
	}
	return out
}

// Keys returns the fixed metric key set in stable report order.
func Keys() []Key { return append([]Key(nil), allKeys...) }

func sanitize(s string) string {
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			b[i] = '_'
		} else {
			b[i] = s[i]
		}
	}
	return string(b)
}
