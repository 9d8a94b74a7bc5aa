// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/MatthiasKeysermann/ICALA/internal/analysis"
	"github.com/MatthiasKeysermann/ICALA/internal/dsp"
	"github.com/MatthiasKeysermann/ICALA/internal/synth"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned for input that is not a PCM WAV file.
var ErrInvalidWAV = errors.New("invalid WAV file")

// WAVSink writes synthesizer buffers to a 16-bit stereo WAV file.
type WAVSink struct {
	w       io.WriteSeeker
	enc     *wav.Encoder
	buf     *audio.IntBuffer
	samples []int16
	frames  int
}

// NewWAVSink returns a sink writing to w. The header is written once the
// sample rate is known.
func NewWAVSink(w io.WriteSeeker) *WAVSink {
	return &WAVSink{w: w}
}

func (s *WAVSink) SetSampleRate(rate int) error {
	if s.enc != nil {
		return errors.New("WAV sink already configured")
	}
	if rate <= 0 {
		return fmt.Errorf("invalid sample rate %d", rate)
	}
	s.enc = wav.NewEncoder(s.w, rate, 16, outputChannels, 1)
	s.buf = &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: outputChannels, SampleRate: rate},
		SourceBitDepth: 16,
	}
	return nil
}

func (s *WAVSink) Send(ctx context.Context, sampleCount int, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.enc == nil {
		return errors.New("WAV sink not configured")
	}
	if err := checkPayload(sampleCount, sampleCount, payload); err != nil {
		return err
	}

	s.samples = synth.DecodePayload(s.samples, payload)
	if cap(s.buf.Data) < len(s.samples) {
		s.buf.Data = make([]int, len(s.samples))
	}
	s.buf.Data = s.buf.Data[:len(s.samples)]
	for i, v := range s.samples {
		s.buf.Data[i] = int(v)
	}
	if err := s.enc.Write(s.buf); err != nil {
		return fmt.Errorf("write WAV: %w", err)
	}
	s.frames += sampleCount
	return nil
}

// Frames returns the number of stereo frames written.
func (s *WAVSink) Frames() int { return s.frames }

// Close finalizes the WAV header. The underlying writer is left open.
func (s *WAVSink) Close() error {
	if s.enc == nil {
		return nil
	}
	return s.enc.Close()
}

var _ synth.Sink = (*WAVSink)(nil)

// WAVReader delivers a PCM WAV file as a sequence of capture frames.
type WAVReader struct {
	dec      *wav.Decoder
	buf      *audio.IntBuffer
	samples  []int16
	channels int
	rate     int
	depth    int
	total    int
}

// NewWAVReader reads the header of r. Every Next call returns
// framesPerBuffer frames, except possibly the last.
func NewWAVReader(r io.ReadSeeker, framesPerBuffer int) (*WAVReader, error) {
	if framesPerBuffer < 1 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", framesPerBuffer)
	}
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWAV, err)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		return nil, fmt.Errorf("%w: no channels", ErrInvalidWAV)
	}
	depth := int(dec.BitDepth)
	switch depth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, depth)
	}

	return &WAVReader{
		dec: dec,
		buf: &audio.IntBuffer{
			Format: dec.Format(),
			Data:   make([]int, framesPerBuffer*channels),
		},
		samples:  make([]int16, framesPerBuffer*channels),
		channels: channels,
		rate:     int(dec.SampleRate),
		depth:    depth,
		total:    int(dec.PCMLen()) / (channels * depth / 8),
	}, nil
}

func (r *WAVReader) SampleRate() int { return r.rate }
func (r *WAVReader) Channels() int   { return r.channels }

// Frames returns the number of frames in the file.
func (r *WAVReader) Frames() int { return r.total }

// Next returns the next frame, converted to 16-bit samples. The returned
// samples are overwritten by the following call. It returns io.EOF after the
// last frame.
func (r *WAVReader) Next() (analysis.Frame, error) {
	r.buf.Data = r.buf.Data[:cap(r.buf.Data)]
	n, err := r.dec.PCMBuffer(r.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return analysis.Frame{}, fmt.Errorf("read WAV: %w", err)
	}
	n -= n % r.channels
	if n == 0 {
		return analysis.Frame{}, io.EOF
	}

	samples := r.samples[:n]
	for i, v := range r.buf.Data[:n] {
		samples[i] = toInt16(v, r.depth)
	}
	return analysis.Frame{Channels: r.channels, Samples: samples}, nil
}

// toInt16 rescales a decoded sample of the given bit depth. 8-bit WAV
// samples are unsigned.
func toInt16(v, depth int) int16 {
	switch depth {
	case 8:
		v = (v - 128) << 8
	case 24:
		v >>= 8
	case 32:
		v >>= 16
	}
	if v > dsp.MaxSample {
		return dsp.MaxSample
	}
	if v < dsp.MinSample {
		return dsp.MinSample
	}
	return int16(v)
}
