// SPDX-License-Identifier: MIT
package analysis

import "time"

// Frame is one block of captured audio as delivered by a capture source.
// Samples are interleaved when Channels > 1.
type Frame struct {
	Channels  int
	Samples   []int16
	Timestamp time.Time
}

// FrameProcessor is implemented by components driven once per captured
// frame. Implementations should be efficient as this is often called from
// within the real-time audio callback.
type FrameProcessor interface {
	Process(f Frame) []float64
}

// Frames returns the number of sample frames in f.
func (f Frame) Frames() int {
	if f.Channels <= 1 {
		return len(f.Samples)
	}
	return len(f.Samples) / f.Channels
}
