// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/MatthiasKeysermann/ICALA/cmd"
	"github.com/MatthiasKeysermann/ICALA/internal/audio"
	"github.com/MatthiasKeysermann/ICALA/internal/config"
	"github.com/MatthiasKeysermann/ICALA/internal/log"
	"github.com/MatthiasKeysermann/ICALA/internal/metrics"
	"github.com/MatthiasKeysermann/ICALA/internal/store"
	"github.com/MatthiasKeysermann/ICALA/pkg/build"
)

// main is the entry point for soundbridge.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Capture callback analyzes every buffer into the store
//   - Synthesizer loop, publishers and monitor run in an errgroup
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording if active
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Debugf("Build: %v", err)
	}

	// One thread for the capture callback, one for the synthesizer and I/O.
	runtime.GOMAXPROCS(2)

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if opts.Command == "" {
		return
	}
	configureLogging(opts.Config)
	log.Infof("Starting %s", build.Get())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch opts.Command {
	case cmd.CommandList:
		err = listDevices()
	case cmd.CommandRender:
		err = render(ctx, opts.Config, opts.RenderInput, opts.RenderOutput)
	default:
		err = run(ctx, opts)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func configureLogging(cfg *config.Config) {
	level, _ := log.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = log.LevelDebug
	}
	log.SetLevel(level)
}

func listDevices() error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return audio.ListDevices(os.Stdout)
}

// newStore builds the shared store and writes the configured initial
// controls.
func newStore(cfg *config.Config) (*store.Memory, error) {
	var opts []store.Option
	if cfg.Store.TTL > 0 {
		opts = append(opts, store.WithTTL(cfg.Store.TTL))
	}
	st := store.NewMemory(opts...)

	if cfg.Store.InitialActivation > 0 {
		if err := st.Set(cfg.Synth.ActivationKey, cfg.Store.InitialActivation); err != nil {
			return nil, err
		}
	}
	simulate := 0.0
	if cfg.Store.SimulateSine {
		simulate = 1
	}
	if err := st.Set(cfg.Analyzer.SimulateKey, simulate); err != nil {
		return nil, err
	}
	return st, nil
}

// newRecorder returns the statsd recorder when enabled. A statsd client
// that cannot be created degrades to no metrics.
func newRecorder(cfg config.MetricsConfig) metrics.Recorder {
	if !cfg.StatsdEnabled {
		return metrics.Nop{}
	}
	rec, err := metrics.NewStatsd(cfg.StatsdAddress, cfg.Namespace, cfg.Tags)
	if err != nil {
		log.Warnf("Metrics: statsd disabled: %v", err)
		return metrics.Nop{}
	}
	log.Infof("Metrics: Sending to statsd at %s", cfg.StatsdAddress)
	return rec
}
