// SPDX-License-Identifier: MIT
package transport

import (
	"strconv"
	"strings"
	"sync"

	"github.com/MatthiasKeysermann/ICALA/internal/log"
)

// LoggingTransport implements the Transport interface by logging data at
// debug level.
type LoggingTransport struct {
	mu sync.Mutex
	sb strings.Builder
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data. Spectra are printed as a compact bin list.
// Logging transport never fails to "send".
func (lt *LoggingTransport) Send(data any) error {
	if !log.Enabled(log.LevelDebug) {
		return nil
	}
	switch v := data.(type) {
	case Spectrum:
		log.Debugf("LOG_TRANSPORT: %s spectrum %s", v.Source, lt.formatBins(v.Bins))
	case *Spectrum:
		log.Debugf("LOG_TRANSPORT: %s spectrum %s", v.Source, lt.formatBins(v.Bins))
	default:
		log.Debugf("LOG_TRANSPORT: Received (%T): %+v", data, data)
	}
	return nil
}

func (lt *LoggingTransport) formatBins(bins []float64) string {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.sb.Reset()
	lt.sb.WriteByte('[')
	for i, b := range bins {
		if i > 0 {
			lt.sb.WriteByte(' ')
		}
		lt.sb.WriteString(strconv.FormatFloat(b, 'f', 3, 64))
	}
	lt.sb.WriteByte(']')
	return lt.sb.String()
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	log.Debugf("LOG_TRANSPORT: Close called.")
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
