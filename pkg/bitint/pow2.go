// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-two helpers used to size transform
buffers. Both functions are branch-light, allocation free and safe to call
from the capture callback.

NextPowerOfTwo relies on bits.Len of (size-1): for an exact power of two
the highest set bit of size-1 sits one position lower, so shifting 1 by
that length returns size itself instead of doubling it.

	size  size-1  bits.Len  result
	8     0111    3         8
	9     1000    4         16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Sizes <= 0
// return 1.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
