// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MatthiasKeysermann/ICALA/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory so no stray config file is
// picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestParseArgs_DefaultCommand(t *testing.T) {
	isolate(t)

	opts, err := ParseArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, CommandRun, opts.Command)
	assert.Equal(t, config.Default(), opts.Config)
	assert.False(t, opts.Monitor)
}

func TestParseArgs_FlagsOverrideConfig(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
audio:
  frames_per_buffer: 512
analyzer:
  num_bins: 8
synth:
  num_bins: 8
`), 0o644))

	opts, err := ParseArgs([]string{
		"run", "-f", path,
		"--sample-rate", "48000",
		"--activation", "0.7",
		"--simulate",
		"--no-synth",
		"--udp", "--udp-target", "10.0.0.1:7000",
		"-m", "-v",
	})
	require.NoError(t, err)

	cfg := opts.Config
	assert.Equal(t, CommandRun, opts.Command)
	assert.True(t, opts.Monitor)
	assert.Equal(t, 512, cfg.Audio.FramesPerBuffer, "file value kept when the flag is not set")
	assert.Equal(t, 8, cfg.Analyzer.NumBins)
	assert.Equal(t, 48000.0, cfg.Audio.SampleRate)
	assert.Equal(t, 48000, cfg.Synth.SampleRate)
	assert.Equal(t, 0.7, cfg.Store.InitialActivation)
	assert.True(t, cfg.Store.SimulateSine)
	assert.False(t, cfg.Synth.Enabled)
	assert.True(t, cfg.Transport.UDPEnabled)
	assert.Equal(t, "10.0.0.1:7000", cfg.Transport.UDPTargetAddress)
	assert.True(t, cfg.Debug)
}

func TestParseArgs_List(t *testing.T) {
	isolate(t)

	opts, err := ParseArgs([]string{"list"})
	require.NoError(t, err)
	assert.Equal(t, CommandList, opts.Command)
}

func TestParseArgs_Render(t *testing.T) {
	isolate(t)

	opts, err := ParseArgs([]string{"render", "in.wav", "out.wav", "--bins", "8"})
	require.NoError(t, err)
	assert.Equal(t, CommandRender, opts.Command)
	assert.Equal(t, "in.wav", opts.RenderInput)
	assert.Equal(t, "out.wav", opts.RenderOutput)
	assert.Equal(t, 8, opts.Config.Analyzer.NumBins)
	assert.Equal(t, 8, opts.Config.Synth.NumBins)

	_, err = ParseArgs([]string{"render", "in.wav"})
	assert.Error(t, err, "render needs two files")
}

func TestParseArgs_InvalidConfiguration(t *testing.T) {
	isolate(t)

	_, err := ParseArgs([]string{"--bins", "4096", "--frames-per-buffer", "256"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyzer.num_bins")

	_, err = ParseArgs([]string{"--window", "triangle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyzer.window")
}

func TestParseArgs_MissingConfigFile(t *testing.T) {
	isolate(t)

	_, err := ParseArgs([]string{"-f", "does-not-exist.yaml"})
	assert.Error(t, err)
}

func TestParseArgs_UnknownFlag(t *testing.T) {
	isolate(t)

	_, err := ParseArgs([]string{"--frobnicate"})
	assert.Error(t, err)
}

func TestParseArgs_Version(t *testing.T) {
	isolate(t)

	opts, err := ParseArgs([]string{"--version"})
	require.NoError(t, err)
	assert.Empty(t, opts.Command, "nothing to run after printing the version")
	assert.Nil(t, opts.Config)
}
