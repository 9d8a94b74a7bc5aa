// SPDX-License-Identifier: MIT
package udp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/MatthiasKeysermann/ICALA/internal/log"
	"github.com/MatthiasKeysermann/ICALA/internal/store"
)

// DefaultInterval is used when NewUDPPublisher gets a non-positive interval.
const DefaultInterval = 16 * time.Millisecond

const headerSize = 4 + 8 + 2

// ErrShortPacket is returned by ParsePacket for truncated input.
var ErrShortPacket = errors.New("udp: short packet")

// PacketSender transmits one datagram.
type PacketSender interface {
	Send(data []byte) error
}

// UDPPublisher periodically reads the bin vector from the shared store,
// packs it into the binary packet format and sends it with a PacketSender.
// It runs in a separate goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   PacketSender
	src      store.Getter
	keys     store.BinKeys
	interval time.Duration
	now      func() time.Time

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32

	bins   []float64
	packet []byte
}

// NewUDPPublisher creates a publisher for the bins named by keys.
// If interval is not positive, DefaultInterval is used.
func NewUDPPublisher(interval time.Duration, sender PacketSender, src store.Getter, keys store.BinKeys) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if src == nil {
		return nil, fmt.Errorf("UDPPublisher: store cannot be nil")
	}
	if len(keys) == 0 || len(keys) > math.MaxUint16 {
		return nil, fmt.Errorf("UDPPublisher: invalid bin count %d", len(keys))
	}

	if interval <= 0 {
		interval = DefaultInterval
		log.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}
	log.Infof("UDPPublisher: Initializing (Interval: %s, Bins: %d)", interval, len(keys))

	return &UDPPublisher{
		sender:   sender,
		src:      src,
		keys:     keys,
		interval: interval,
		now:      time.Now,
		bins:     make([]float64, len(keys)),
		packet:   make([]byte, 0, headerSize+4*len(keys)),
	}, nil
}

// Start begins the periodic publishing. Calling Start on a running
// publisher is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		log.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it.
// Calling Stop on a stopped publisher is a no-op.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	log.Debugf("UDPPublisher: Publisher goroutine finished.")
	return nil
}

// Run publishes until ctx is done.
func (p *UDPPublisher) Run(ctx context.Context) error {
	p.Start()
	<-ctx.Done()
	return p.Stop()
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Bin Count         | uint16         | 2            | Number of floats (N)    |
| Bins              | []float32      | N * 4        | Normalized bin values   |
+-----------------------------------------------------------------------------+
*/

// publish sends one packet. Missing bins are sent as zero.
func (p *UDPPublisher) publish() {
	if missing := p.keys.Read(p.src, p.bins); missing > 0 {
		log.Debugf("UDPPublisher: %d of %d bins unavailable", missing, len(p.bins))
	}

	p.sequenceNum++
	p.packet = AppendPacket(p.packet[:0], p.sequenceNum, p.now(), p.bins)

	if err := p.sender.Send(p.packet); err != nil {
		log.Debugf("UDPPublisher: Packet %d not sent: %v", p.sequenceNum, err)
		return
	}
	log.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(p.packet))
}

// Close stops the publisher goroutine.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

// Packet is a decoded bin packet.
type Packet struct {
	Sequence  uint32
	Timestamp time.Time
	Bins      []float32
}

// AppendPacket appends the encoded packet to dst.
func AppendPacket(dst []byte, seq uint32, ts time.Time, bins []float64) []byte {
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(ts.UnixNano()))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(bins)))
	for _, b := range bins {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(b)))
	}
	return dst
}

// ParsePacket decodes a packet produced by AppendPacket.
func ParsePacket(b []byte) (Packet, error) {
	if len(b) < headerSize {
		return Packet{}, ErrShortPacket
	}
	n := int(binary.BigEndian.Uint16(b[12:]))
	if len(b) < headerSize+4*n {
		return Packet{}, fmt.Errorf("%w: %d bins in %d bytes", ErrShortPacket, n, len(b))
	}
	p := Packet{
		Sequence:  binary.BigEndian.Uint32(b),
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(b[4:]))),
		Bins:      make([]float32, n),
	}
	for i := range p.Bins {
		p.Bins[i] = math.Float32frombits(binary.BigEndian.Uint32(b[headerSize+4*i:]))
	}
	return p, nil
}
