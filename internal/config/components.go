// SPDX-License-Identifier: MIT
package config

import (
	"github.com/MatthiasKeysermann/ICALA/internal/analysis"
	"github.com/MatthiasKeysermann/ICALA/internal/dsp"
	"github.com/MatthiasKeysermann/ICALA/internal/synth"
)

// AnalyzerParams returns the analyzer parameters. The analyzer runs at the
// capture sample rate.
func (c *Config) AnalyzerParams() (analysis.Config, error) {
	w, err := dsp.ParseWindowFunc(c.Analyzer.Window)
	if err != nil {
		return analysis.Config{}, err
	}
	return analysis.Config{
		NumBins:       c.Analyzer.NumBins,
		SampleRate:    int(c.Audio.SampleRate),
		Window:        w,
		BinKeyPrefix:  c.Analyzer.KeyPrefix,
		SimulateKey:   c.Analyzer.SimulateKey,
		SineStep:      c.Analyzer.SineStep,
		SineAmplitude: c.Analyzer.SineAmplitude,
	}, nil
}

// SynthParams returns the synthesizer parameters.
func (c *Config) SynthParams() synth.Config {
	return synth.Config{
		SampleRate:    c.Synth.SampleRate,
		NumSamples:    c.Synth.NumSamples,
		NumBins:       c.Synth.NumBins,
		BinKeyPrefix:  c.Synth.KeyPrefix,
		ActivationKey: c.Synth.ActivationKey,
		Threshold:     c.Synth.Threshold,
		Headroom:      c.Synth.Headroom,
	}
}
