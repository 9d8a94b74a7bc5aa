// SPDX-License-Identifier: MIT
//
// Package metrics records per-cycle timings and counters of the analyzer
// and the synthesizer.
package metrics

import "time"

// Metric names shared by the pipeline components.
const (
	AnalyzerCycle    = "analyzer.cycle"
	AnalyzerFrames   = "analyzer.frames"
	AnalyzerSimulate = "analyzer.simulate"
	SynthCycle       = "synth.cycle"
	SynthMissingBins = "synth.missing_bins"
	SynthActivation  = "synth.activation"
	SynthActiveBins  = "synth.active_bins"
)

// Recorder is implemented by metric sinks. Recording never fails from the
// caller's point of view and must be safe for concurrent use.
type Recorder interface {
	Timing(name string, d time.Duration)
	Gauge(name string, value float64)
	Count(name string, n int64)
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Timing(string, time.Duration) {}
func (Nop) Gauge(string, float64)        {}
func (Nop) Count(string, int64)          {}
func (Nop) Close() error                 { return nil }

var _ Recorder = Nop{}
