// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MatthiasKeysermann/ICALA/cmd"
	"github.com/MatthiasKeysermann/ICALA/internal/analysis"
	"github.com/MatthiasKeysermann/ICALA/internal/audio"
	"github.com/MatthiasKeysermann/ICALA/internal/config"
	"github.com/MatthiasKeysermann/ICALA/internal/log"
	"github.com/MatthiasKeysermann/ICALA/internal/store"
	"github.com/MatthiasKeysermann/ICALA/internal/synth"
	"github.com/MatthiasKeysermann/ICALA/internal/transport"
	"github.com/MatthiasKeysermann/ICALA/internal/transport/udp"
	"github.com/MatthiasKeysermann/ICALA/internal/tui"
	"golang.org/x/sync/errgroup"
)

// run captures from the input device, analyzes every buffer into the
// store and plays the resynthesized spectrum until ctx is done or the
// monitor quits.
func run(ctx context.Context, opts *cmd.Options) (err error) {
	cfg := opts.Config

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	st, err := newStore(cfg)
	if err != nil {
		return err
	}
	rec := newRecorder(cfg.Metrics)
	defer rec.Close()

	transports, err := newTransports(cfg, st)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := transports.Close(); cerr != nil {
			log.Warnf("Transport: Close: %v", cerr)
		}
	}()

	params, err := cfg.AnalyzerParams()
	if err != nil {
		return err
	}
	analyzerOpts := []analysis.Option{analysis.WithMetrics(rec)}
	if len(transports) > 0 {
		analyzerOpts = append(analyzerOpts, analysis.WithTransport(transports))
	}
	analyzer, err := analysis.New(params, st, analyzerOpts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Synth.Enabled {
		sink, err := audio.NewPortAudioSink(cfg.Audio.OutputDevice, cfg.Synth.NumSamples, cfg.Audio.LowLatency)
		if err != nil {
			return err
		}
		defer sink.Close()
		s, err := synth.New(cfg.SynthParams(), st, sink, synth.WithMetrics(rec))
		if err != nil {
			return err
		}
		if err := s.Setup(); err != nil {
			return err
		}
		g.Go(func() error { return s.Run(ctx) })
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		defer sender.Close()
		pub, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, st, analyzer.Keys())
		if err != nil {
			return err
		}
		g.Go(func() error { return pub.Run(ctx) })
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	engine, err := audio.NewEngine(cfg.Audio, analyzer)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing audio engine: %w", cerr))
		}
	}()

	// The first call to StartInputStream triggers PortAudio to begin
	// calling the capture callback.
	if err := engine.StartInputStream(); err != nil {
		return err
	}

	if cfg.Recording.Enabled {
		if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
			return fmt.Errorf("recording directory: %w", err)
		}
		path := audio.RecordingPath(cfg.Recording.OutputDir, time.Now())
		if err := engine.StartRecording(path); err != nil {
			return err
		}
		defer func() {
			if err := engine.StopRecording(); err != nil {
				log.Errorf("Error stopping recording: %v", err)
				return
			}
			log.Infof("Recording saved to: %s", path)
		}()
	}

	if opts.Monitor {
		// The monitor owns the terminal.
		log.SetOutput(io.Discard)
		defer log.SetOutput(os.Stderr)
		g.Go(func() error {
			defer cancel()
			return tui.Run(ctx, st, tui.MonitorConfig{
				Bins:          analyzer.Keys(),
				ActivationKey: cfg.Synth.ActivationKey,
				SimulateKey:   cfg.Analyzer.SimulateKey,
			})
		})
	} else {
		log.Infof("Running; press Ctrl+C to stop")
	}

	// Block until termination signal is received or a task fails.
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	return g.Wait()
}

// newTransports builds the enabled spectrum transports.
func newTransports(cfg *config.Config, st store.Store) (transport.Multi, error) {
	var ts transport.Multi
	if cfg.Transport.LogSpectrum {
		ts = append(ts, transport.NewLoggingTransport())
	}
	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress,
			transport.WithControls(st, cfg.Synth.ActivationKey, cfg.Analyzer.SimulateKey))
		if err != nil {
			return nil, errors.Join(err, ts.Close())
		}
		ts = append(ts, ws)
	}
	return ts, nil
}
