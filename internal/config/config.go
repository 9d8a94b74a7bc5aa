// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// of the pipeline.
const (
	DefaultConfigFile = "soundbridge.yaml"
	EnvPrefix         = "SOUNDBRIDGE_"

	// Hardware and processing limits.
	MinDeviceID     = -1     // -1 represents the system default device.
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz).
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz).
	MaxBufferFrames = 8192   // Maximum frames per capture buffer.
	MaxChannels     = 2      // Front (mono) or stereo capture.

	DefaultSampleRate      = 16000
	DefaultFramesPerBuffer = 1024
	DefaultNumBins         = 16
	DefaultSynthSamples    = 3200 // 200 ms at 16 kHz.
	DefaultBinKeyPrefix    = "SoundSpectrum/front"
	DefaultSimulateKey     = "SoundSpectrum/simulateSine"
	DefaultActivationKey   = "SoundGeneration/activation"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Capture and playback devices.
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`  // Spectrum analyzer.
	Synth     SynthConfig     `yaml:"synth"`     // Sine-bank synthesizer.
	Store     StoreConfig     `yaml:"store"`     // Shared key-value store.
	Recording RecordingConfig `yaml:"recording"` // WAV recording of the captured stream.
	Transport TransportConfig `yaml:"transport"` // Outbound spectrum publishing.
	Metrics   MetricsConfig   `yaml:"metrics"`   // statsd metrics.
}

// AudioConfig holds settings related to audio input/output.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for capture (-1 for default).
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index for playback (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Capture sample rate in Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per captured buffer; one analysis per buffer.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio.
	InputChannels   int     `yaml:"input_channels"`    // 1 for mono, 2 for stereo; the first channel is analyzed.
	GateEnabled     bool    `yaml:"gate_enabled"`      // Analyze quiet buffers as silence.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Gate threshold, 0.0-1.0 of full scale.
}

// AnalyzerConfig holds spectrum analyzer settings. The sample rate is the
// capture sample rate.
type AnalyzerConfig struct {
	NumBins       int     `yaml:"num_bins"`
	Window        string  `yaml:"window"`         // "hann", "hamming", "blackman", ... or "rectangular".
	KeyPrefix     string  `yaml:"key_prefix"`     // Bin keys are KeyPrefix0 .. KeyPrefix{n-1}.
	SimulateKey   string  `yaml:"simulate_key"`   // Control key; non-zero replaces input with a sweeping sine.
	SineStep      int     `yaml:"sine_step"`      // Hz per frame of the synthetic sweep.
	SineAmplitude float64 `yaml:"sine_amplitude"` // Peak of the synthetic sine.
}

// SynthConfig holds sine-bank synthesizer settings.
type SynthConfig struct {
	Enabled       bool    `yaml:"enabled"`
	SampleRate    int     `yaml:"sample_rate"`
	NumSamples    int     `yaml:"num_samples"` // Mono samples per cycle.
	NumBins       int     `yaml:"num_bins"`
	KeyPrefix     string  `yaml:"key_prefix"`
	ActivationKey string  `yaml:"activation_key"`
	Threshold     float64 `yaml:"threshold"` // Post-gain amplitude a bin must exceed to sound.
	Headroom      float64 `yaml:"headroom"`  // Per-oscillator scale.
}

// StoreConfig holds settings of the in-process key-value store.
type StoreConfig struct {
	TTL               time.Duration `yaml:"ttl"`                // Values older than this read as missing; 0 disables.
	InitialActivation float64       `yaml:"initial_activation"` // Written to the activation key at startup when > 0.
	SimulateSine      bool          `yaml:"simulate_sine"`      // Initial value of the simulate control.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record the captured stream.
	OutputDir string `yaml:"output_dir"` // Directory for recordings.
}

// TransportConfig holds settings related to sending processed data over the network.
type TransportConfig struct {
	LogSpectrum      bool          `yaml:"log_spectrum"`       // Log every published spectrum at debug level.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send the bin vector over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target "host:port" for UDP packets.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Serve spectra and accept control writes over WebSocket.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address, e.g. ":8080".
}

// MetricsConfig holds statsd settings.
type MetricsConfig struct {
	StatsdEnabled bool     `yaml:"statsd_enabled"`
	StatsdAddress string   `yaml:"statsd_address"`
	Namespace     string   `yaml:"namespace"`
	Tags          []string `yaml:"tags"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     MinDeviceID,
			OutputDevice:    MinDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   1,
			GateThreshold:   0.001,
		},
		Analyzer: AnalyzerConfig{
			NumBins:       DefaultNumBins,
			Window:        "hann",
			KeyPrefix:     DefaultBinKeyPrefix,
			SimulateKey:   DefaultSimulateKey,
			SineStep:      100,
			SineAmplitude: 0.5,
		},
		Synth: SynthConfig{
			Enabled:       true,
			SampleRate:    DefaultSampleRate,
			NumSamples:    DefaultSynthSamples,
			NumBins:       DefaultNumBins,
			KeyPrefix:     DefaultBinKeyPrefix,
			ActivationKey: DefaultActivationKey,
			Threshold:     0.2,
			Headroom:      0.1,
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
		},
		Transport: TransportConfig{
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  33 * time.Millisecond, // ~30Hz.
			WebSocketAddress: ":8080",
		},
		Metrics: MetricsConfig{
			StatsdAddress: "127.0.0.1:8125",
			Namespace:     "soundbridge.",
		},
	}
}
