// SPDX-License-Identifier: MIT
package dsp

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	src := []int16{0, MaxSample, -MaxSample, MaxSample / 2, MinSample}
	dst := make([]float64, len(src))
	Normalize(dst, src)

	want := []float64{0, 1, -1, float64(MaxSample/2) / MaxSample, float64(MinSample) / MaxSample}
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-12 {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestClip(t *testing.T) {
	tests := []struct {
		in   int32
		want int16
	}{
		{0, 0},
		{1234, 1234},
		{-1234, -1234},
		{MaxSample, MaxSample},
		{MaxSample + 1, MaxSample},
		{1 << 20, MaxSample},
		{MinSample, MinSample},
		{MinSample - 1, MinSample},
		{-(1 << 20), MinSample},
	}

	for _, tt := range tests {
		if got := Clip(tt.in); got != tt.want {
			t.Errorf("Clip(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSine(t *testing.T) {
	// Quarter period of 1kHz at 16kHz is 4 samples.
	if got := Sine(4, 1000, 16000, 0.5); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("Sine at quarter period = %v, want 0.5", got)
	}
	if got := Sine(123, 0, 16000, 1); got != 0 {
		t.Errorf("Sine at 0Hz = %v, want 0", got)
	}
}

func TestHannCoefficients(t *testing.T) {
	for _, n := range []int{2, 8, 1024, 1365} {
		coeffs := Coefficients(Hann, n)
		for i, c := range coeffs {
			want := 0.5 * (1 - math.Cos(2*Pi*float64(i)/float64(n-1)))
			if math.Abs(c-want) > 1e-12 {
				t.Fatalf("n=%d: coeffs[%d] = %v, want %v", n, i, c, want)
			}
		}
	}
}

func TestCoefficientsSingleSample(t *testing.T) {
	for _, w := range []WindowFunc{Hann, Hamming, Blackman, Rectangular} {
		coeffs := Coefficients(w, 1)
		if len(coeffs) != 1 || coeffs[0] != 1 {
			t.Errorf("%v: single-sample window = %v, want [1]", w, coeffs)
		}
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"Hann", Hann, false},
		{"hanning", Hann, false},
		{"", Hann, false},
		{"HAMMING", Hamming, false},
		{"blackman", Blackman, false},
		{"none", Rectangular, false},
		{"kaiser", Hann, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWindowFunc(tt.name)
			if got != tt.want {
				t.Errorf("ParseWindowFunc(%q) = %v, want %v", tt.name, got, tt.want)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseWindowFunc(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}
