// SPDX-License-Identifier: MIT
//
// Package fft implements the radix-2 Cooley-Tukey decimation-in-time
// transform used by the spectrum analyzer. It is stateless: every call
// works on the caller's buffer.
package fft

import (
	"fmt"
	"math"

	"github.com/MatthiasKeysermann/ICALA/pkg/bitint"
)

// Transform replaces x with its discrete Fourier transform
//
//	X[k] = Σ x[n]·exp(-2πi·k·n/N)
//
// len(x) must be zero or a power of two; any other length panics.
// Transform allocates a scratch buffer of len(x); use TransformWith on
// hot paths.
func Transform(x []complex128) {
	TransformWith(x, make([]complex128, len(x)))
}

// TransformWith is Transform with a caller-provided scratch buffer, which
// must be at least len(x) long. It does not allocate.
func TransformWith(x, scratch []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}
	if !bitint.IsPowerOfTwo(n) {
		panic(fmt.Sprintf("fft: length %d is not a power of two", n))
	}
	if len(scratch) < n {
		panic(fmt.Sprintf("fft: scratch length %d is shorter than %d", len(scratch), n))
	}
	transform(x, scratch[:n])
}

// transform splits x into its even and odd halves inside scratch,
// transforms both halves recursively (x serving as their scratch space),
// then combines them back into x.
func transform(x, scratch []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}
	half := n / 2

	even := scratch[:half]
	odd := scratch[half:]
	for k := 0; k < half; k++ {
		even[k] = x[2*k]
		odd[k] = x[2*k+1]
	}

	transform(even, x[:half])
	transform(odd, x[half:])

	for k := 0; k < half; k++ {
		sin, cos := math.Sincos(-2 * math.Pi * float64(k) / float64(n))
		t := complex(cos, sin) * odd[k]
		x[k] = even[k] + t
		x[k+half] = even[k] - t
	}
}
