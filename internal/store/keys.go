// SPDX-License-Identifier: MIT
package store

import (
	"errors"
	"fmt"
	"strconv"
)

// BinKeys are the fixed per-bin key names: a base string suffixed with the
// zero-based bin index.
type BinKeys []string

// NewBinKeys builds n keys "prefix0" .. "prefix{n-1}".
func NewBinKeys(prefix string, n int) BinKeys {
	keys := make(BinKeys, n)
	for i := range keys {
		keys[i] = prefix + strconv.Itoa(i)
	}
	return keys
}

// Read fills dst with one value per key. A key that cannot be read yields
// 0 for that bin only. It returns how many bins fell back to zero.
func (k BinKeys) Read(g Getter, dst []float64) (missing int) {
	for i, key := range k {
		if i >= len(dst) {
			break
		}
		v, err := g.Get(key)
		if err != nil {
			v = 0
			missing++
		}
		dst[i] = v
	}
	return missing
}

// Write stores v[i] under key i. Writes are best effort: every key is
// attempted and the failures are joined into the returned error.
func (k BinKeys) Write(s Setter, v []float64) error {
	var errs []error
	for i, key := range k {
		if i >= len(v) {
			break
		}
		if err := s.Set(key, v[i]); err != nil {
			errs = append(errs, fmt.Errorf("set %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Scalar reads key and reports whether a usable value was found. Callers
// apply their own fallback when ok is false.
func Scalar(g Getter, key string) (value float64, ok bool) {
	v, err := g.Get(key)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Flag reads a boolean-like control: any non-zero value is true, and a
// failed read is false.
func Flag(g Getter, key string) bool {
	v, ok := Scalar(g, key)
	return ok && v != 0
}
