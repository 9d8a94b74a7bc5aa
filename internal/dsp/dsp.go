// SPDX-License-Identifier: MIT
//
// Package dsp holds the constants and sample-level helpers shared by the
// spectrum analyzer and the sine-bank synthesizer. The package has no
// mutable state.
package dsp

import "math"

const (
	// Pi is the circle constant used by every oscillator and window.
	Pi = math.Pi

	// MaxSample and MinSample bound a signed 16-bit PCM sample.
	MaxSample = math.MaxInt16
	MinSample = math.MinInt16

	// BytesPerSample is the width of one PCM sample on the wire.
	BytesPerSample = 2
)

// Normalize scales raw samples into [-1, 1] by dividing by MaxSample.
// MinSample maps slightly below -1, as it does on the capture side.
// dst must be at least as long as src.
func Normalize(dst []float64, src []int16) {
	for i, s := range src {
		dst[i] = float64(s) / MaxSample
	}
}

// Clip saturates an accumulated sample to the 16-bit range.
func Clip(v int32) int16 {
	if v > MaxSample {
		return MaxSample
	}
	if v < MinSample {
		return MinSample
	}
	return int16(v)
}

// Sine returns amplitude*sin(2π·freq·i/sampleRate), the oscillator shared
// by the synthetic test tone and the synthesizer bank.
func Sine(i int, freq, sampleRate, amplitude float64) float64 {
	return math.Sin(2*Pi*freq*float64(i)/sampleRate) * amplitude
}
