// SPDX-License-Identifier: MIT
package udp

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/MatthiasKeysermann/ICALA/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSender struct {
	mu      sync.Mutex
	packets [][]byte
	err     error
}

func (s *recordingSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.packets = append(s.packets, append([]byte(nil), data...))
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.packets)
}

func newTestPublisher(t *testing.T, sender PacketSender) (*UDPPublisher, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	keys := store.NewBinKeys("SoundSpectrum/front", 4)
	require.NoError(t, keys.Write(mem, []float64{0.1, 0.2, 0.3, 0.4}))

	p, err := NewUDPPublisher(time.Millisecond, sender, mem, keys)
	require.NoError(t, err)
	p.now = func() time.Time { return time.Unix(1700000000, 42) }
	return p, mem
}

func TestPublisher_PacketLayout(t *testing.T) {
	sender := &recordingSender{}
	p, mem := newTestPublisher(t, sender)
	mem.Delete("SoundSpectrum/front2")

	p.publish()
	p.publish()

	require.Len(t, sender.packets, 2)
	assert.Len(t, sender.packets[0], headerSize+4*4)

	pkt, err := ParsePacket(sender.packets[1])
	require.NoError(t, err)
	assert.Equal(t, uint32(2), pkt.Sequence)
	assert.True(t, pkt.Timestamp.Equal(time.Unix(1700000000, 42)))
	assert.Equal(t, []float32{0.1, 0.2, 0, 0.4}, pkt.Bins, "missing bins are sent as zero")
}

func TestPublisher_SendErrorKeepsSequence(t *testing.T) {
	sender := &recordingSender{err: errors.New("network down")}
	p, _ := newTestPublisher(t, sender)

	p.publish()
	sender.err = nil
	p.publish()

	require.Len(t, sender.packets, 1)
	pkt, err := ParsePacket(sender.packets[0])
	require.NoError(t, err)
	assert.Equal(t, uint32(2), pkt.Sequence)
}

func TestPublisher_StartStop(t *testing.T) {
	sender := &recordingSender{}
	p, _ := newTestPublisher(t, sender)

	p.Start()
	p.Start()
	require.Eventually(t, func() bool { return sender.count() >= 3 }, 2*time.Second, time.Millisecond)
	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())

	n := sender.count()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, n, sender.count(), "no packets after Stop")

	p.Start()
	require.Eventually(t, func() bool { return sender.count() > n }, 2*time.Second, time.Millisecond)
	require.NoError(t, p.Close())
}

func TestPublisher_Run(t *testing.T) {
	sender := &recordingSender{}
	p, _ := newTestPublisher(t, sender)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return sender.count() > 0 }, 2*time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewUDPPublisher_Validation(t *testing.T) {
	mem := store.NewMemory()
	keys := store.NewBinKeys("k", 2)

	_, err := NewUDPPublisher(time.Millisecond, nil, mem, keys)
	assert.Error(t, err)
	_, err = NewUDPPublisher(time.Millisecond, &recordingSender{}, nil, keys)
	assert.Error(t, err)
	_, err = NewUDPPublisher(time.Millisecond, &recordingSender{}, mem, nil)
	assert.Error(t, err)

	p, err := NewUDPPublisher(0, &recordingSender{}, mem, keys)
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, p.interval)
}

func TestParsePacket_Short(t *testing.T) {
	_, err := ParsePacket(make([]byte, headerSize-1))
	assert.ErrorIs(t, err, ErrShortPacket)

	b := AppendPacket(nil, 1, time.Now(), []float64{1, 2})
	_, err = ParsePacket(b[:len(b)-1])
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestUDPSender_Loopback(t *testing.T) {
	ln, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	sender, err := NewUDPSender(ln.LocalAddr().String())
	require.NoError(t, err)

	want := AppendPacket(nil, 7, time.Unix(0, 99), []float64{0.5})
	require.NoError(t, sender.Send(want))

	require.NoError(t, ln.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 512)
	n, _, err := ln.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, want, buf[:n])

	require.NoError(t, sender.Close())
	require.NoError(t, sender.Close())
	assert.ErrorIs(t, sender.Send(want), ErrSenderClosed)
}

func TestNewUDPSender_BadAddress(t *testing.T) {
	_, err := NewUDPSender("no-port")
	assert.Error(t, err)
}
