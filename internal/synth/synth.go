// SPDX-License-Identifier: MIT
//
// Package synth renders the shared bin vector as a bank of sine oscillators
// and streams the result to an output sink.
package synth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/MatthiasKeysermann/ICALA/internal/dsp"
	"github.com/MatthiasKeysermann/ICALA/internal/log"
	"github.com/MatthiasKeysermann/ICALA/internal/metrics"
	"github.com/MatthiasKeysermann/ICALA/internal/store"
)

// Config holds the synthesizer parameters, fixed for the lifetime of a
// Synthesizer.
type Config struct {
	SampleRate    int
	NumSamples    int // Mono samples per cycle.
	NumBins       int
	BinKeyPrefix  string
	ActivationKey string
	Threshold     float64 // Bins at or below this post-gain amplitude are silent.
	Headroom      float64 // Scale applied to every oscillator.
	Pace          bool    // Wait one cycle period between sends, for sinks that do not block.
}

// DefaultConfig returns the parameters of the live pipeline: 200 ms cycles
// of 16 kHz audio from 16 bins.
func DefaultConfig() Config {
	return Config{
		SampleRate:    16000,
		NumSamples:    3200,
		NumBins:       16,
		BinKeyPrefix:  "SoundSpectrum/front",
		ActivationKey: "SoundGeneration/activation",
		Threshold:     0.2,
		Headroom:      0.1,
	}
}

// Validate reports invalid parameters.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}
	if c.NumSamples <= 0 {
		errs = append(errs, fmt.Errorf("num samples must be positive, got %d", c.NumSamples))
	}
	if c.NumBins <= 0 {
		errs = append(errs, fmt.Errorf("num bins must be positive, got %d", c.NumBins))
	}
	if strings.TrimSpace(c.BinKeyPrefix) == "" {
		errs = append(errs, errors.New("bin key prefix is empty"))
	}
	if strings.TrimSpace(c.ActivationKey) == "" {
		errs = append(errs, errors.New("activation key is empty"))
	}
	if c.Threshold < 0 {
		errs = append(errs, fmt.Errorf("threshold must not be negative, got %g", c.Threshold))
	}
	return errors.Join(errs...)
}

// Period is the playback duration of one cycle.
func (c Config) Period() time.Duration {
	return time.Duration(c.NumSamples) * time.Second / time.Duration(c.SampleRate)
}

// BinCenter returns the oscillator frequency of bin i, the middle of its
// sub-band.
func (c Config) BinCenter(i int) float64 {
	binSize := float64(c.SampleRate) / 2 / float64(c.NumBins)
	return float64(i)*binSize + binSize/2
}

// Synthesizer is the sine-bank synthesizer. Synthesize, Cycle and Run must
// not be called concurrently.
type Synthesizer struct {
	cfg     Config
	store   store.Getter
	sink    Sink
	keys    store.BinKeys
	metrics metrics.Recorder

	setupOnce sync.Once
	setupErr  error

	freqs   []float64
	bins    []float64
	accum   []int32
	mono    []int16
	stereo  []int16
	payload []byte
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithMetrics records per-cycle timings to r.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Synthesizer) { s.metrics = r }
}

// New creates a synthesizer reading bins and activation from st and
// writing to sink.
func New(cfg Config, st store.Getter, sink Sink, opts ...Option) (*Synthesizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("synth config: %w", err)
	}
	if st == nil {
		return nil, errors.New("synth requires a store")
	}
	if sink == nil {
		return nil, errors.New("synth requires an output sink")
	}

	s := &Synthesizer{
		cfg:     cfg,
		store:   st,
		sink:    sink,
		keys:    store.NewBinKeys(cfg.BinKeyPrefix, cfg.NumBins),
		metrics: metrics.Nop{},
		freqs:   make([]float64, cfg.NumBins),
		bins:    make([]float64, cfg.NumBins),
		accum:   make([]int32, cfg.NumSamples),
		mono:    make([]int16, cfg.NumSamples),
		stereo:  make([]int16, 2*cfg.NumSamples),
		payload: make([]byte, 0, 2*cfg.NumSamples*dsp.BytesPerSample),
	}
	for i := range s.freqs {
		s.freqs[i] = cfg.BinCenter(i)
	}
	for _, opt := range opts {
		opt(s)
	}

	log.Infof("Synth: Initializing synthesizer (Bins: %d, SampleRate: %d Hz, Cycle: %d samples / %v)",
		cfg.NumBins, cfg.SampleRate, cfg.NumSamples, cfg.Period())
	return s, nil
}

// Setup configures the sink's sample rate. It runs once; later calls
// return the first result.
func (s *Synthesizer) Setup() error {
	s.setupOnce.Do(func() {
		if err := s.sink.SetSampleRate(s.cfg.SampleRate); err != nil {
			s.setupErr = fmt.Errorf("%w: sample rate %d: %w", ErrSinkConfigure, s.cfg.SampleRate, err)
		}
	})
	return s.setupErr
}

// Mono returns the mono buffer of the last Synthesize call. It is
// overwritten by the next call.
func (s *Synthesizer) Mono() []int16 { return s.mono }

// Synthesize reads the current bins and activation, renders one cycle and
// returns the interleaved stereo buffer. The buffer is overwritten by the
// next call. Unreadable keys count as zero.
func (s *Synthesizer) Synthesize() []int16 {
	missing := s.keys.Read(s.store, s.bins)
	activation, ok := store.Scalar(s.store, s.cfg.ActivationKey)
	if !ok {
		missing++
	}
	for i := range s.bins {
		s.bins[i] *= activation
	}

	clear(s.accum)
	active := 0
	sr := float64(s.cfg.SampleRate)
	for i, amp := range s.bins {
		if amp <= s.cfg.Threshold {
			continue
		}
		active++
		scale := s.cfg.Headroom * amp * dsp.MaxSample
		for j := range s.accum {
			s.accum[j] += int32(math.Round(dsp.Sine(j, s.freqs[i], sr, scale)))
		}
	}

	for j, v := range s.accum {
		s.mono[j] = dsp.Clip(v)
	}
	s.stereo = Interleave(s.stereo, s.mono)

	s.metrics.Gauge(metrics.SynthActivation, activation)
	s.metrics.Gauge(metrics.SynthActiveBins, float64(active))
	if missing > 0 {
		s.metrics.Count(metrics.SynthMissingBins, int64(missing))
	}
	return s.stereo
}

// Cycle synthesizes one buffer and sends it to the sink, tagged with the
// mono sample count.
func (s *Synthesizer) Cycle(ctx context.Context) error {
	start := time.Now()

	stereo := s.Synthesize()
	s.payload = EncodePayload(s.payload, stereo)
	elapsed := time.Since(start)

	if log.Enabled(log.LevelDebug) {
		log.Debugf("Synth: bins %s", formatBins(s.bins))
		log.Debugf("Synth: processing time %v", elapsed)
	}
	s.metrics.Timing(metrics.SynthCycle, elapsed)

	if err := s.sink.Send(ctx, s.cfg.NumSamples, s.payload); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkSend, err)
	}
	return nil
}

// Run configures the sink if needed and cycles until ctx is cancelled or
// the sink fails. Cancellation is checked between cycles and returns nil.
func (s *Synthesizer) Run(ctx context.Context) error {
	if err := s.Setup(); err != nil {
		return err
	}
	log.Infof("Synth: Starting synthesis loop")
	defer log.Infof("Synth: Synthesis loop stopped")

	var tick <-chan time.Time
	if s.cfg.Pace {
		ticker := time.NewTicker(s.cfg.Period())
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := s.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}
	}
}

func formatBins(bins []float64) string {
	var sb strings.Builder
	for i, b := range bins {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%.3f", b)
	}
	return sb.String()
}
