// SPDX-License-Identifier: MIT
//
// Package cmd parses the soundbridge command line into a validated
// configuration and the command to execute.
package cmd

import (
	"fmt"

	"github.com/MatthiasKeysermann/ICALA/internal/config"
	"github.com/MatthiasKeysermann/ICALA/pkg/build"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Commands selected by ParseArgs.
const (
	CommandRun    = "run"
	CommandList   = "list"
	CommandRender = "render"
)

// Options is the parsed command line.
type Options struct {
	Command    string
	ConfigFile string
	Config     *config.Config

	// Monitor shows the live terminal monitor while running.
	Monitor bool

	// Render input and output WAV files.
	RenderInput  string
	RenderOutput string
}

// flagValues holds the raw flag values; only flags set on the command line
// override the loaded configuration.
type flagValues struct {
	inputDevice     int
	outputDevice    int
	sampleRate      float64
	framesPerBuffer int
	channels        int
	lowLatency      bool
	gate            bool
	numBins         int
	window          string
	noSynth         bool
	activation      float64
	simulate        bool
	record          bool
	outputDir       string
	udp             bool
	udpTarget       string
	websocket       bool
	websocketAddr   string
	statsd          bool
	verbose         bool
	logLevel        string
}

// ParseArgs executes the command tree on args (without the program name).
// Options.Command is empty when only help or the version was printed.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.Get()
	options := &Options{}
	var fv flagValues

	load := func(cmd *cobra.Command, command string) error {
		cfg, err := config.LoadConfig(options.ConfigFile)
		if err != nil {
			return err
		}
		fv.apply(cmd.Flags(), cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration:\n%w", err)
		}
		options.Command = command
		options.Config = cfg
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandRun)
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze the input device and play the resynthesized spectrum (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandRun)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandList)
		},
	}

	renderCmd := &cobra.Command{
		Use:   "render <input.wav> <output.wav>",
		Short: "Analyze a WAV file and write the resynthesized audio to another WAV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.RenderInput = args[0]
			options.RenderOutput = args[1]
			return load(cmd, CommandRender)
		},
	}
	rootCmd.AddCommand(runCmd, listCmd, renderCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&options.ConfigFile, "config", "f", "",
		"Configuration file (default ./"+config.DefaultConfigFile+" when present)")

	// Audio Device Configuration
	flags.IntVarP(&fv.inputDevice, "device", "d", config.MinDeviceID,
		"Input device ID. Use 'list' command to see available devices.")
	flags.IntVar(&fv.outputDevice, "output-device", config.MinDeviceID,
		"Output device ID for the synthesizer")
	flags.Float64VarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Capture sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&fv.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"Frames per analyzed buffer (affects latency and resolution)")
	flags.IntVarP(&fv.channels, "channels", "c", 1,
		"Number of channels to capture (1=mono, 2=stereo); the first is analyzed")
	flags.BoolVarP(&fv.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")
	flags.BoolVar(&fv.gate, "gate", false,
		"Analyze buffers below the gate threshold as silence")

	// Pipeline Configuration
	flags.IntVarP(&fv.numBins, "bins", "n", config.DefaultNumBins,
		"Number of spectrum bins")
	flags.StringVarP(&fv.window, "window", "w", "hann",
		"Analysis window (hann, hamming, blackman, blackmannuttall, bartletthann, nuttall, rectangular)")
	flags.BoolVar(&fv.noSynth, "no-synth", false,
		"Do not run the synthesizer")
	flags.Float64VarP(&fv.activation, "activation", "a", 0,
		"Initial synthesizer activation, 0.0-1.0")
	flags.BoolVar(&fv.simulate, "simulate", false,
		"Replace the input with a sweeping test sine")

	// Recording Configuration
	flags.BoolVarP(&fv.record, "record", "r", false,
		"Record the captured stream to WAV")
	flags.StringVarP(&fv.outputDir, "output-dir", "o", "./recordings",
		"Directory for recordings")

	// Transport Configuration
	flags.BoolVar(&fv.udp, "udp", false, "Publish the bins over UDP")
	flags.StringVar(&fv.udpTarget, "udp-target", "127.0.0.1:9090", "UDP target host:port")
	flags.BoolVar(&fv.websocket, "websocket", false, "Serve bins and controls over WebSocket")
	flags.StringVar(&fv.websocketAddr, "websocket-addr", ":8080", "WebSocket listen address")
	flags.BoolVar(&fv.statsd, "statsd", false, "Send metrics to statsd")

	// Debug Configuration
	flags.BoolVarP(&options.Monitor, "monitor", "m", false,
		"Show the live terminal monitor")
	flags.BoolVarP(&fv.verbose, "verbose", "v", false,
		"Show verbose output")
	flags.StringVar(&fv.logLevel, "log-level", "info",
		"Log level (debug, info, warn, error)")

	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// apply copies every flag that was set on the command line into cfg.
func (fv *flagValues) apply(flags *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, fn func()) {
		if flags.Changed(name) {
			fn()
		}
	}
	set("device", func() { cfg.Audio.InputDevice = fv.inputDevice })
	set("output-device", func() { cfg.Audio.OutputDevice = fv.outputDevice })
	set("sample-rate", func() {
		cfg.Audio.SampleRate = fv.sampleRate
		cfg.Synth.SampleRate = int(fv.sampleRate)
	})
	set("frames-per-buffer", func() { cfg.Audio.FramesPerBuffer = fv.framesPerBuffer })
	set("channels", func() { cfg.Audio.InputChannels = fv.channels })
	set("low-latency", func() { cfg.Audio.LowLatency = fv.lowLatency })
	set("gate", func() { cfg.Audio.GateEnabled = fv.gate })
	set("bins", func() {
		cfg.Analyzer.NumBins = fv.numBins
		cfg.Synth.NumBins = fv.numBins
	})
	set("window", func() { cfg.Analyzer.Window = fv.window })
	set("no-synth", func() { cfg.Synth.Enabled = !fv.noSynth })
	set("activation", func() { cfg.Store.InitialActivation = fv.activation })
	set("simulate", func() { cfg.Store.SimulateSine = fv.simulate })
	set("record", func() { cfg.Recording.Enabled = fv.record })
	set("output-dir", func() { cfg.Recording.OutputDir = fv.outputDir })
	set("udp", func() { cfg.Transport.UDPEnabled = fv.udp })
	set("udp-target", func() { cfg.Transport.UDPTargetAddress = fv.udpTarget })
	set("websocket", func() { cfg.Transport.WebSocketEnabled = fv.websocket })
	set("websocket-addr", func() { cfg.Transport.WebSocketAddress = fv.websocketAddr })
	set("statsd", func() { cfg.Metrics.StatsdEnabled = fv.statsd })
	set("verbose", func() { cfg.Debug = fv.verbose })
	set("log-level", func() { cfg.LogLevel = fv.logLevel })
}
