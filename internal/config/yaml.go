// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MatthiasKeysermann/ICALA/internal/dsp"
	"github.com/MatthiasKeysermann/ICALA/internal/log"
	"github.com/MatthiasKeysermann/ICALA/pkg/bitint"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it looks for DefaultConfigFile in the working directory and otherwise uses built-in
// defaults. Environment overrides are applied after the file; the caller validates
// once command line flags have been applied on top.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err != nil {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		add("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	// Audio.
	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		add("audio.sample_rate %.0f outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer < 1 || a.FramesPerBuffer > MaxBufferFrames {
		add("audio.frames_per_buffer %d outside [1, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.InputChannels < 1 || a.InputChannels > MaxChannels {
		add("audio.input_channels %d outside [1, %d]", a.InputChannels, MaxChannels)
	}
	if a.InputDevice < MinDeviceID {
		add("audio.input_device %d is invalid", a.InputDevice)
	}
	if a.OutputDevice < MinDeviceID {
		add("audio.output_device %d is invalid", a.OutputDevice)
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		add("audio.gate_threshold %g outside [0, 1]", a.GateThreshold)
	}

	// Analyzer.
	an := c.Analyzer
	if an.NumBins < 1 {
		add("analyzer.num_bins must be positive, got %d", an.NumBins)
	} else if half := bitint.NextPowerOfTwo(a.FramesPerBuffer) / 2; a.FramesPerBuffer >= 1 && an.NumBins > half {
		add("analyzer.num_bins %d exceeds the %d spectrum lines of a %d frame buffer", an.NumBins, half, a.FramesPerBuffer)
	}
	if _, err := dsp.ParseWindowFunc(an.Window); err != nil {
		add("analyzer.window: %v", err)
	}
	if strings.TrimSpace(an.KeyPrefix) == "" {
		add("analyzer.key_prefix is empty")
	}
	if an.SineStep < 0 {
		add("analyzer.sine_step must not be negative, got %d", an.SineStep)
	}

	// Synth.
	s := c.Synth
	if s.SampleRate < MinSampleRate || s.SampleRate > MaxSampleRate {
		add("synth.sample_rate %d outside [%d, %d]", s.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if s.NumSamples < 1 {
		add("synth.num_samples must be positive, got %d", s.NumSamples)
	}
	if s.NumBins < 1 {
		add("synth.num_bins must be positive, got %d", s.NumBins)
	}
	if strings.TrimSpace(s.KeyPrefix) == "" {
		add("synth.key_prefix is empty")
	}
	if strings.TrimSpace(s.ActivationKey) == "" {
		add("synth.activation_key is empty")
	}
	if s.Threshold < 0 {
		add("synth.threshold must not be negative, got %g", s.Threshold)
	}
	if s.Headroom <= 0 {
		add("synth.headroom must be positive, got %g", s.Headroom)
	}

	// Store.
	if c.Store.TTL < 0 {
		add("store.ttl must not be negative, got %v", c.Store.TTL)
	}
	if c.Store.InitialActivation < 0 || c.Store.InitialActivation > 1 {
		add("store.initial_activation %g outside [0, 1]", c.Store.InitialActivation)
	}

	// Recording.
	if c.Recording.Enabled && strings.TrimSpace(c.Recording.OutputDir) == "" {
		add("recording.output_dir must be set when recording is enabled")
	}

	// Transport.
	t := c.Transport
	if t.UDPEnabled {
		if !strings.Contains(t.UDPTargetAddress, ":") {
			add("transport.udp_target_address %q appears invalid (missing port?)", t.UDPTargetAddress)
		}
		if t.UDPSendInterval <= 0 {
			add("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if t.WebSocketEnabled && !strings.Contains(t.WebSocketAddress, ":") {
		add("transport.websocket_address %q appears invalid (missing port?)", t.WebSocketAddress)
	}

	// Metrics.
	if c.Metrics.StatsdEnabled && !strings.Contains(c.Metrics.StatsdAddress, ":") {
		add("metrics.statsd_address %q appears invalid (missing port?)", c.Metrics.StatsdAddress)
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies SOUNDBRIDGE_* variables. Unparseable values are
// logged and ignored.
func (c *Config) applyEnvOverrides() {
	envBool("DEBUG", &c.Debug)
	envString("LOG_LEVEL", &c.LogLevel)

	envInt("INPUT_DEVICE", &c.Audio.InputDevice)
	envInt("OUTPUT_DEVICE", &c.Audio.OutputDevice)
	envFloat("SAMPLE_RATE", &c.Audio.SampleRate)
	envInt("FRAMES_PER_BUFFER", &c.Audio.FramesPerBuffer)

	envInt("NUM_BINS", &c.Analyzer.NumBins)
	envString("WINDOW", &c.Analyzer.Window)

	envBool("SYNTH_ENABLED", &c.Synth.Enabled)
	envInt("SYNTH_SAMPLE_RATE", &c.Synth.SampleRate)

	envDuration("STORE_TTL", &c.Store.TTL)
	envFloat("ACTIVATION", &c.Store.InitialActivation)
	envBool("SIMULATE_SINE", &c.Store.SimulateSine)

	envBool("UDP_ENABLED", &c.Transport.UDPEnabled)
	envString("UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	envDuration("UDP_SEND_INTERVAL", &c.Transport.UDPSendInterval)
	envBool("WS_ENABLED", &c.Transport.WebSocketEnabled)
	envString("WS_ADDRESS", &c.Transport.WebSocketAddress)

	envBool("STATSD_ENABLED", &c.Metrics.StatsdEnabled)
	envString("STATSD_ADDRESS", &c.Metrics.StatsdAddress)
}

func envString(name string, dst *string) {
	if val, ok := os.LookupEnv(EnvPrefix + name); ok {
		*dst = val
		log.Debugf("Config: Overriding %s from env: %s", name, val)
	}
}

func envBool(name string, dst *bool) {
	envParse(name, dst, strconv.ParseBool)
}

func envInt(name string, dst *int) {
	envParse(name, dst, strconv.Atoi)
}

func envFloat(name string, dst *float64) {
	envParse(name, dst, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func envDuration(name string, dst *time.Duration) {
	envParse(name, dst, time.ParseDuration)
}

func envParse[T any](name string, dst *T, parse func(string) (T, error)) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return
	}
	v, err := parse(strings.TrimSpace(val))
	if err != nil {
		log.Warnf("Config: Ignoring %s%s=%q: %v", EnvPrefix, name, val, err)
		return
	}
	*dst = v
	log.Debugf("Config: Overriding %s from env: %v", name, v)
}
