// SPDX-License-Identifier: MIT
//
// Package transport carries analysis results out of the process for
// debugging and visualisation. Transports are optional: the pipeline itself
// only depends on the shared store.
package transport

import (
	"errors"
	"time"
)

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Spectrum is one published bin vector.
type Spectrum struct {
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Bins      []float64 `json:"bins"`
}

// Multi sends to every transport in order.
type Multi []Transport

// Send delivers data to all transports and joins their errors.
func (m Multi) Send(data any) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all transports and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Multi(nil)
