// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/MatthiasKeysermann/ICALA/internal/log"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// RecordingPath returns a timestamped file name for a capture recording in dir.
func RecordingPath(dir string, now time.Time) string {
	return filepath.Join(dir, "capture-"+now.Format("20060102-150405")+".wav")
}

// StartRecording writes every captured buffer to filename as 16-bit WAV.
func (e *Engine) StartRecording(filename string) error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	e.recordMu.Lock()
	e.outputFile = file
	e.wavEncoder = wav.NewEncoder(file, int(e.config.SampleRate),
		16, e.config.InputChannels, 1)
	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: e.config.InputChannels,
			SampleRate:  int(e.config.SampleRate),
		},
		SourceBitDepth: 16,
		Data:           make([]int, e.config.FramesPerBuffer*e.config.InputChannels),
	}
	e.recordMu.Unlock()

	atomic.StoreInt32(&e.isRecording, 1)
	log.Infof("Audio: Recording to %s", filename)

	return nil
}

// writeRecording appends one captured buffer to the recording.
func (e *Engine) writeRecording(buffer []int16) {
	e.recordMu.Lock()
	defer e.recordMu.Unlock()

	if e.wavEncoder == nil {
		return
	}
	if cap(e.sampleBuf.Data) < len(buffer) {
		e.sampleBuf.Data = make([]int, len(buffer))
	}
	e.sampleBuf.Data = e.sampleBuf.Data[:len(buffer)]
	for i, sample := range buffer {
		e.sampleBuf.Data[i] = int(sample)
	}

	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		log.Errorf("Audio: Writing to WAV file: %v", err)
	}
}

func (e *Engine) StopRecording() error {
	if atomic.LoadInt32(&e.isRecording) == 0 {
		return nil
	}

	atomic.StoreInt32(&e.isRecording, 0)

	e.recordMu.Lock()
	defer e.recordMu.Unlock()

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}

	if e.outputFile != nil {
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
	}

	log.Infof("Audio: Recording stopped")
	return nil
}
