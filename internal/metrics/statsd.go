// SPDX-License-Identifier: MIT
package metrics

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/MatthiasKeysermann/ICALA/internal/log"
)

// statsdClient is the subset of statsd.ClientInterface the recorder uses.
type statsdClient interface {
	Timing(name string, value time.Duration, tags []string, rate float64) error
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
	Close() error
}

// Statsd sends metrics to a DogStatsD agent over UDP.
type Statsd struct {
	client statsdClient
	tags   []string
}

// NewStatsd connects to addr ("host:port"). Metric names are prefixed with
// namespace.
func NewStatsd(addr, namespace string, tags []string) (*Statsd, error) {
	client, err := statsd.New(addr,
		statsd.WithNamespace(namespace),
		statsd.WithoutTelemetry(),
	)
	if err != nil {
		return nil, fmt.Errorf("statsd client for %s: %w", addr, err)
	}
	log.Infof("Metrics: Sending to statsd at %s (namespace %q)", addr, namespace)
	return &Statsd{client: client, tags: tags}, nil
}

func (s *Statsd) Timing(name string, d time.Duration) {
	if err := s.client.Timing(name, d, s.tags, 1); err != nil {
		log.Debugf("Metrics: timing %s: %v", name, err)
	}
}

func (s *Statsd) Gauge(name string, value float64) {
	if err := s.client.Gauge(name, value, s.tags, 1); err != nil {
		log.Debugf("Metrics: gauge %s: %v", name, err)
	}
}

func (s *Statsd) Count(name string, n int64) {
	if err := s.client.Count(name, n, s.tags, 1); err != nil {
		log.Debugf("Metrics: count %s: %v", name, err)
	}
}

// Close flushes buffered metrics.
func (s *Statsd) Close() error {
	return s.client.Close()
}

var _ Recorder = (*Statsd)(nil)
