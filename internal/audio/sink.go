// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MatthiasKeysermann/ICALA/internal/dsp"
	"github.com/MatthiasKeysermann/ICALA/internal/log"
	"github.com/MatthiasKeysermann/ICALA/internal/synth"
	"github.com/gordonklaus/portaudio"
)

const outputChannels = 2

// PortAudioSink plays synthesizer buffers on an output device through a
// blocking stereo stream.
type PortAudioSink struct {
	device  *portaudio.DeviceInfo
	latency time.Duration
	frames  int // Mono samples per Send.

	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
}

// NewPortAudioSink resolves the output device. framesPerSend is the
// synthesizer's cycle length.
func NewPortAudioSink(deviceID, framesPerSend int, lowLatency bool) (*PortAudioSink, error) {
	if framesPerSend < 1 {
		return nil, fmt.Errorf("frames per send must be positive, got %d", framesPerSend)
	}
	device, err := OutputDevice(deviceID)
	if err != nil {
		return nil, err
	}

	s := &PortAudioSink{device: device, frames: framesPerSend}
	if lowLatency {
		s.latency = device.DefaultLowOutputLatency
	} else {
		s.latency = device.DefaultHighOutputLatency
	}
	log.Infof("Audio: Using output device %q", device.Name)
	return s, nil
}

// SetSampleRate opens and starts the output stream at rate.
func (s *PortAudioSink) SetSampleRate(rate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return errors.New("output stream already open")
	}

	s.buf = make([]int16, outputChannels*s.frames)
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   s.device,
			Channels: outputChannels,
			Latency:  s.latency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: s.frames,
	}

	stream, err := portaudio.OpenStream(params, s.buf)
	if err != nil {
		return fmt.Errorf("open output stream at %d Hz: %w", rate, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start output stream: %w", err)
	}
	s.stream = stream
	return nil
}

// Send blocks until the device accepted the buffer. Output underflows are
// logged and tolerated.
func (s *PortAudioSink) Send(ctx context.Context, sampleCount int, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return errors.New("output stream not open")
	}
	if err := checkPayload(s.frames, sampleCount, payload); err != nil {
		return err
	}

	synth.DecodePayload(s.buf, payload)
	if err := s.stream.Write(); err != nil {
		if errors.Is(err, portaudio.OutputUnderflowed) {
			log.Debugf("Audio: Output underflow")
			return nil
		}
		return err
	}
	return nil
}

// Close stops and closes the output stream.
func (s *PortAudioSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}
	err := errors.Join(s.stream.Stop(), s.stream.Close())
	s.stream = nil
	return err
}

// checkPayload verifies a stereo payload of want mono samples.
func checkPayload(want, sampleCount int, payload []byte) error {
	if sampleCount != want {
		return fmt.Errorf("sample count %d, stream expects %d", sampleCount, want)
	}
	if len(payload) != outputChannels*want*dsp.BytesPerSample {
		return fmt.Errorf("payload of %d bytes, stream expects %d", len(payload), outputChannels*want*dsp.BytesPerSample)
	}
	return nil
}

var _ synth.Sink = (*PortAudioSink)(nil)
