// SPDX-License-Identifier: MIT
//
// Package analysis turns captured PCM frames into a normalized bin vector
// and publishes it to the shared store.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/MatthiasKeysermann/ICALA/internal/dsp"
	"github.com/MatthiasKeysermann/ICALA/internal/fft"
	"github.com/MatthiasKeysermann/ICALA/internal/log"
	"github.com/MatthiasKeysermann/ICALA/internal/metrics"
	"github.com/MatthiasKeysermann/ICALA/internal/store"
	"github.com/MatthiasKeysermann/ICALA/internal/transport"
	"github.com/MatthiasKeysermann/ICALA/pkg/bitint"
)

// Config holds the analyzer parameters. NumBins and SampleRate are fixed
// for the lifetime of an Analyzer.
type Config struct {
	NumBins       int
	SampleRate    int
	Window        dsp.WindowFunc
	BinKeyPrefix  string
	SimulateKey   string
	SineStep      int     // Hz added to the synthetic sine after each frame.
	SineAmplitude float64 // Peak of the synthetic sine, in normalized units.
}

// DefaultConfig returns the parameters of the live pipeline.
func DefaultConfig() Config {
	return Config{
		NumBins:       16,
		SampleRate:    16000,
		Window:        dsp.Hann,
		BinKeyPrefix:  "SoundSpectrum/front",
		SimulateKey:   "SoundSpectrum/simulateSine",
		SineStep:      100,
		SineAmplitude: 0.5,
	}
}

// Validate reports invalid parameters.
func (c Config) Validate() error {
	var errs []error
	if c.NumBins <= 0 {
		errs = append(errs, fmt.Errorf("num bins must be positive, got %d", c.NumBins))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}
	if strings.TrimSpace(c.BinKeyPrefix) == "" {
		errs = append(errs, errors.New("bin key prefix is empty"))
	}
	if c.SineStep < 0 {
		errs = append(errs, fmt.Errorf("synthetic sine step must not be negative, got %d", c.SineStep))
	}
	return errors.Join(errs...)
}

// Pre-allocated buffers, sized for one frame length.
type workspace struct {
	frames  int          // Frame length the buffers were built for.
	mono    []int16      // First channel of an interleaved frame.
	input   []float64    // Normalized, then windowed samples.
	window  []float64    // Window coefficients over the frame length.
	spec    []complex128 // Zero-padded transform buffer.
	scratch []complex128 // FFT scratch.
	mags    []float64    // Retained half-spectrum magnitudes.
}

// Analyzer is the spectrum analyzer. It is safe for concurrent use, but
// frames are processed one at a time.
type Analyzer struct {
	cfg       Config
	store     store.Store
	keys      store.BinKeys
	transport transport.Transport
	metrics   metrics.Recorder

	mu       sync.Mutex
	sineFreq int
	ws       workspace
	bins     []float64
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithTransport publishes every bin vector to t in addition to the store.
func WithTransport(t transport.Transport) Option {
	return func(a *Analyzer) { a.transport = t }
}

// WithMetrics records per-frame timings to r.
func WithMetrics(r metrics.Recorder) Option {
	return func(a *Analyzer) { a.metrics = r }
}

// New creates an analyzer and seeds every bin key with zero so readers see
// silence until the first frame arrives.
func New(cfg Config, st store.Store, opts ...Option) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("analyzer config: %w", err)
	}
	if st == nil {
		return nil, errors.New("analyzer requires a store")
	}

	a := &Analyzer{
		cfg:     cfg,
		store:   st,
		keys:    store.NewBinKeys(cfg.BinKeyPrefix, cfg.NumBins),
		metrics: metrics.Nop{},
		bins:    make([]float64, cfg.NumBins),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.keys.Write(st, a.bins); err != nil {
		log.Warnf("Analysis: Seeding bin keys: %v", err)
	}

	log.Infof("Analysis: Initializing analyzer (Bins: %d, SampleRate: %d Hz, Window: %v, Keys: %s0..%d)",
		cfg.NumBins, cfg.SampleRate, cfg.Window, cfg.BinKeyPrefix, cfg.NumBins-1)
	return a, nil
}

// NumBins returns the fixed bin count.
func (a *Analyzer) NumBins() int { return a.cfg.NumBins }

// Keys returns the store keys the analyzer publishes to.
func (a *Analyzer) Keys() store.BinKeys { return a.keys }

// SineFrequency returns the frequency the next synthetic frame will use.
func (a *Analyzer) SineFrequency() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sineFreq
}

// Analyze computes the bin vector of one mono frame without publishing it.
// The returned slice is owned by the caller. An empty frame yields all
// zeros.
func (a *Analyzer) Analyze(frame []int16) []float64 {
	out := make([]float64, a.cfg.NumBins)

	a.mu.Lock()
	a.analyze(frame)
	copy(out, a.bins)
	a.mu.Unlock()
	return out
}

// Process analyzes f, publishes the bin vector to the store under the bin
// keys and to the optional transport, and returns a copy of it. Multi
// channel frames are reduced to their first channel.
func (a *Analyzer) Process(f Frame) []float64 {
	start := time.Now()
	out := make([]float64, a.cfg.NumBins)

	a.mu.Lock()
	a.analyze(a.firstChannel(f))
	copy(out, a.bins)
	a.mu.Unlock()

	if err := a.keys.Write(a.store, out); err != nil {
		log.Debugf("Analysis: Publishing bins: %v", err)
	}
	if a.transport != nil {
		ts := f.Timestamp
		if ts.IsZero() {
			ts = start
		}
		if err := a.transport.Send(transport.Spectrum{Source: "analyzer", Timestamp: ts, Bins: out}); err != nil {
			log.Debugf("Analysis: Transport send: %v", err)
		}
	}

	elapsed := time.Since(start)
	a.metrics.Timing(metrics.AnalyzerCycle, elapsed)
	a.metrics.Count(metrics.AnalyzerFrames, 1)
	if log.Enabled(log.LevelDebug) {
		log.Debugf("Analysis: bins %s", formatBins(out))
		log.Debugf("Analysis: processing time %v", elapsed)
	}
	return out
}

func (a *Analyzer) firstChannel(f Frame) []int16 {
	if f.Channels <= 1 {
		return f.Samples
	}
	n := f.Frames()
	if cap(a.ws.mono) < n {
		a.ws.mono = make([]int16, n)
	}
	mono := a.ws.mono[:n]
	for i := range mono {
		mono[i] = f.Samples[i*f.Channels]
	}
	return mono
}

// analyze runs the pipeline into a.bins. Callers hold a.mu.
func (a *Analyzer) analyze(frame []int16) {
	for i := range a.bins {
		a.bins[i] = 0
	}
	n := len(frame)
	if n == 0 {
		return
	}
	a.prepare(n)
	ws := &a.ws

	dsp.Normalize(ws.input, frame)

	if store.Flag(a.store, a.cfg.SimulateKey) {
		a.simulate(ws.input)
	}

	for i := range ws.spec {
		if i < n {
			ws.spec[i] = complex(ws.input[i]*ws.window[i], 0)
		} else {
			ws.spec[i] = 0
		}
	}

	fft.TransformWith(ws.spec, ws.scratch)

	half := len(ws.spec) / 2
	for i := range ws.mags {
		c := ws.spec[i]
		ws.mags[i] = math.Sqrt(real(c)*real(c) + imag(c)*imag(c))
	}

	aggregate(a.bins, ws.mags)
	for i := range a.bins {
		a.bins[i] /= float64(half)
		if a.bins[i] > 1 {
			a.bins[i] = 1
		}
	}
}

// simulate overwrites buf with the synthetic sine and advances its
// frequency, wrapping below Nyquist.
func (a *Analyzer) simulate(buf []float64) {
	freq := float64(a.sineFreq)
	sr := float64(a.cfg.SampleRate)
	for i := range buf {
		buf[i] = dsp.Sine(i, freq, sr, a.cfg.SineAmplitude)
	}
	a.metrics.Gauge(metrics.AnalyzerSimulate, freq)

	nyquist := a.cfg.SampleRate / 2
	if nyquist > 0 {
		a.sineFreq = (a.sineFreq + a.cfg.SineStep) % nyquist
	}
}

// prepare sizes the workspace for frames of length n. Frames that are not
// a power of two are zero-padded to the next one after windowing.
func (a *Analyzer) prepare(n int) {
	if a.ws.frames == n {
		return
	}
	padded := max(bitint.NextPowerOfTwo(n), 2)
	a.ws.frames = n
	a.ws.input = make([]float64, n)
	a.ws.window = dsp.Coefficients(a.cfg.Window, n)
	a.ws.spec = make([]complex128, padded)
	a.ws.scratch = make([]complex128, padded)
	a.ws.mags = make([]float64, padded/2)
	if padded != n {
		log.Debugf("Analysis: Frame length %d is not a power of two, zero-padding to %d", n, padded)
	}
}

// aggregate sums mags into len(bins) equal groups of len(mags)/len(bins)
// magnitudes. Magnitudes past the last full group are dropped.
func aggregate(bins, mags []float64) {
	per := len(mags) / len(bins)
	if per == 0 {
		return
	}
	for i := range bins {
		var sum float64
		for _, m := range mags[i*per : (i+1)*per] {
			sum += m
		}
		bins[i] = sum
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

var _ FrameProcessor = (*Analyzer)(nil)
