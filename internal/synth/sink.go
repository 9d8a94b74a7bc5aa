// SPDX-License-Identifier: MIT
package synth

import (
	"context"
	"encoding/binary"
	"errors"
)

var (
	// ErrSinkConfigure wraps a failure to set the output sample rate.
	ErrSinkConfigure = errors.New("synth: configure output sink")
	// ErrSinkSend wraps a failure to hand a buffer to the output sink.
	ErrSinkSend = errors.New("synth: send to output sink")
)

// Sink is the output device contract. SetSampleRate is called once before
// the first Send. Send blocks until the device accepted the buffer.
type Sink interface {
	SetSampleRate(rate int) error
	Send(ctx context.Context, sampleCount int, payload []byte) error
}

// Interleave writes each mono sample into both the left and the right slot
// of dst and returns dst resliced to 2*len(mono).
func Interleave(dst, mono []int16) []int16 {
	if cap(dst) < 2*len(mono) {
		dst = make([]int16, 2*len(mono))
	}
	dst = dst[:2*len(mono)]
	for i, s := range mono {
		dst[2*i] = s
		dst[2*i+1] = s
	}
	return dst
}

// EncodePayload appends samples to dst[:0] as little-endian 16-bit PCM.
func EncodePayload(dst []byte, samples []int16) []byte {
	dst = dst[:0]
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// DecodePayload is the inverse of EncodePayload. A trailing odd byte is
// ignored.
func DecodePayload(dst []int16, payload []byte) []int16 {
	n := len(payload) / 2
	if cap(dst) < n {
		dst = make([]int16, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(payload[2*i:]))
	}
	return dst
}
