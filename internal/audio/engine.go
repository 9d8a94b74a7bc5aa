// SPDX-License-Identifier: MIT
/*
Package audio connects the pipeline to the host's audio devices and files:
- Real-time capture using PortAudio, one analysis per captured buffer
- Blocking stereo playback for the synthesizer
- Optional noise gate with a branchless peak detector
- WAV recording of the captured stream, WAV file input and output

Thread Safety:
- Uses atomic operations for the recording flag
- Pre-allocates buffers to avoid GC in the hot path
- Locks the OS thread during capture processing
*/
package audio

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MatthiasKeysermann/ICALA/internal/analysis"
	"github.com/MatthiasKeysermann/ICALA/internal/config"
	"github.com/MatthiasKeysermann/ICALA/internal/log"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

type Engine struct {
	// Core configuration.
	config    config.AudioConfig
	processor analysis.FrameProcessor

	// Audio input handling.
	inputBuffer  []int16
	silence      []int16 // Delivered instead of the input while the gate is closed.
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream
	buffers      atomic.Uint64 // Captured buffers since start.

	// Noise gate for signal conditioning.
	gateEnabled   bool
	gateThreshold int32 // Absolute amplitude threshold (0-32767).

	// Recording state and buffers.
	isRecording int32      // Atomic flag for thread-safe state.
	recordMu    sync.Mutex // Guards the encoder against StopRecording.
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion.
}

// NewEngine resolves the capture device and prepares the buffers. Every
// captured buffer is handed to processor.
func NewEngine(cfg config.AudioConfig, processor analysis.FrameProcessor) (*Engine, error) {
	if processor == nil {
		return nil, fmt.Errorf("audio engine requires a frame processor")
	}
	inputDevice, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}

	engine := newEngine(cfg, processor)
	engine.inputDevice = inputDevice
	if cfg.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	log.Infof("Audio: Using input device %q (%d ch, %.0f Hz, %d frames/buffer, gate %v)",
		inputDevice.Name, cfg.InputChannels, cfg.SampleRate, cfg.FramesPerBuffer, cfg.GateEnabled)
	return engine, nil
}

// newEngine builds an engine without touching PortAudio.
func newEngine(cfg config.AudioConfig, processor analysis.FrameProcessor) *Engine {
	inputSize := cfg.FramesPerBuffer * cfg.InputChannels
	e := &Engine{
		config:      cfg,
		processor:   processor,
		inputBuffer: make([]int16, inputSize),
		silence:     make([]int16, inputSize),
		gateEnabled: cfg.GateEnabled,
	}
	e.SetGateThreshold(cfg.GateThreshold)
	return e
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.FramesPerBuffer,
		SampleRate:      e.config.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return fmt.Errorf("start input stream: %w", err)
	}

	log.Infof("Audio: Input stream started")
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
		log.Infof("Audio: Input stream stopped after %d buffers", e.buffers.Load())
	}

	return nil
}

// Buffers returns how many buffers have been captured.
func (e *Engine) Buffers() uint64 {
	return e.buffers.Load()
}

// processInputStream is the capture callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
func (e *Engine) processInputStream(in []int16) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	n := copy(e.inputBuffer, in)
	buffer := e.inputBuffer[:n]
	e.buffers.Add(1)

	e.processBuffer(buffer)

	if atomic.LoadInt32(&e.isRecording) == 1 {
		e.writeRecording(buffer)
	}
}

// processBuffer applies the gate and delivers the buffer to the processor.
// A closed gate delivers silence of the same length, so the analyzer still
// publishes a zero spectrum.
func (e *Engine) processBuffer(buffer []int16) {
	frame := buffer
	if e.gateEnabled && peakAmplitude(buffer) <= e.gateThreshold {
		frame = e.silence[:len(buffer)]
	}

	e.processor.Process(analysis.Frame{
		Channels:  e.config.InputChannels,
		Samples:   frame,
		Timestamp: time.Now(),
	})
}

// peakAmplitude returns the largest absolute sample without branching.
func peakAmplitude(buffer []int16) int32 {
	var maxAmplitude int32
	for _, s := range buffer {
		sample := int32(s)
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		diff := amplitude - maxAmplitude
		maxAmplitude += (diff & (diff >> 31)) ^ diff
	}
	return maxAmplitude
}

// Close stops recording and the input stream.
func (e *Engine) Close() error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		if err := e.StopRecording(); err != nil {
			return err
		}
	}

	return e.StopInputStream()
}
