// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MatthiasKeysermann/ICALA/internal/analysis"
	"github.com/MatthiasKeysermann/ICALA/internal/audio"
	"github.com/MatthiasKeysermann/ICALA/internal/config"
	"github.com/MatthiasKeysermann/ICALA/internal/log"
	"github.com/MatthiasKeysermann/ICALA/internal/synth"
	"github.com/cheggaaa/pb"
)

// render analyzes inPath frame by frame and writes one synthesizer cycle
// per frame to outPath. Without a configured initial activation the
// synthesizer runs at full activation.
func render(ctx context.Context, cfg *config.Config, inPath, outPath string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	return renderWAV(ctx, cfg, in, out, os.Stderr)
}

func renderWAV(ctx context.Context, cfg *config.Config, in io.ReadSeeker, out io.WriteSeeker, progress io.Writer) (err error) {
	reader, err := audio.NewWAVReader(in, cfg.Audio.FramesPerBuffer)
	if err != nil {
		return err
	}

	st, err := newStore(cfg)
	if err != nil {
		return err
	}
	if cfg.Store.InitialActivation == 0 {
		if err := st.Set(cfg.Synth.ActivationKey, 1); err != nil {
			return err
		}
	}
	rec := newRecorder(cfg.Metrics)
	defer rec.Close()

	params, err := cfg.AnalyzerParams()
	if err != nil {
		return err
	}
	params.SampleRate = reader.SampleRate()
	analyzer, err := analysis.New(params, st, analysis.WithMetrics(rec))
	if err != nil {
		return err
	}

	sink := audio.NewWAVSink(out)
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("finalize output: %w", cerr))
		}
	}()
	s, err := synth.New(cfg.SynthParams(), st, sink, synth.WithMetrics(rec))
	if err != nil {
		return err
	}
	if err := s.Setup(); err != nil {
		return err
	}

	log.Infof("Render: %d frames at %d Hz, %d channels", reader.Frames(), reader.SampleRate(), reader.Channels())

	bar := pb.New(reader.Frames())
	bar.Output = progress
	bar.ShowSpeed = false
	bar.Start()
	defer bar.Finish()

	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		analyzer.Process(frame)
		if err := s.Cycle(ctx); err != nil {
			return err
		}
		bar.Add(frame.Frames())
	}

	log.Infof("Render: wrote %d frames", sink.Frames())
	return nil
}
