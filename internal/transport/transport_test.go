// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"errors"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MatthiasKeysermann/ICALA/internal/log"
	"github.com/MatthiasKeysermann/ICALA/internal/store"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func captureLog(t *testing.T, level log.LogLevel) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.GetLevel()
	log.SetOutput(&buf)
	log.SetLevel(level)
	t.Cleanup(func() {
		log.SetLevel(prev)
		log.SetOutput(os.Stderr)
	})
	return &buf
}

func TestLoggingTransport(t *testing.T) {
	buf := captureLog(t, log.LevelDebug)

	lt := NewLoggingTransport()
	require.NoError(t, lt.Send(Spectrum{Source: "analyzer", Bins: []float64{0, 0.5, 1}}))
	require.NoError(t, lt.Send(42))
	require.NoError(t, lt.Close())

	out := buf.String()
	assert.Contains(t, out, "analyzer spectrum [0.000 0.500 1.000]")
	assert.Contains(t, out, "Received (int): 42")
}

func TestLoggingTransport_QuietAboveDebug(t *testing.T) {
	buf := captureLog(t, log.LevelInfo)

	lt := &LoggingTransport{}
	require.NoError(t, lt.Send(Spectrum{Source: "analyzer", Bins: []float64{1}}))
	assert.NotContains(t, buf.String(), "spectrum")
}

func dialTransport(t *testing.T, wst *WebSocketTransport) *websocket.Conn {
	t.Helper()
	u := url.URL{Scheme: "ws", Host: wst.Addr(), Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return wst.Clients() > 0 }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func TestWebSocketTransport_Broadcast(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	require.NoError(t, err)
	defer wst.Close()

	conn := dialTransport(t, wst)

	sent := Spectrum{Source: "analyzer", Timestamp: time.Unix(1700000000, 0).UTC(), Bins: []float64{0.25, 0.75}}
	require.NoError(t, wst.Send(sent))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got Spectrum
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, sent.Source, got.Source)
	assert.True(t, sent.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, sent.Bins, got.Bins)
}

func TestWebSocketTransport_Controls(t *testing.T) {
	const activationKey = "SoundGeneration/activation"
	mem := store.NewMemory()

	wst, err := NewWebSocketTransport("127.0.0.1:0", WithControls(mem, activationKey))
	require.NoError(t, err)
	defer wst.Close()

	conn := dialTransport(t, wst)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(Control{Key: "SoundSpectrum/front0", Value: 9}))
	require.NoError(t, conn.WriteJSON(Control{Key: activationKey, Value: 0.5}))

	require.Eventually(t, func() bool {
		v, err := mem.Get(activationKey)
		return err == nil && v == 0.5
	}, 2*time.Second, 5*time.Millisecond)

	_, err = mem.Get("SoundSpectrum/front0")
	assert.ErrorIs(t, err, store.ErrNotFound, "keys outside the allow list must not be written")
}

func TestWebSocketTransport_ControlsDisabled(t *testing.T) {
	wst := &WebSocketTransport{}
	err := wst.applyControl(Control{Key: "a", Value: 1})
	assert.ErrorContains(t, err, "controls disabled")

	wst.controls = store.NewMemory()
	assert.ErrorContains(t, wst.applyControl(Control{}), "empty key")
	assert.NoError(t, wst.applyControl(Control{Key: "a", Value: 1}))
}

func TestWebSocketTransport_Close(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	require.NoError(t, err)

	conn := dialTransport(t, wst)

	require.NoError(t, wst.Close())
	require.NoError(t, wst.Close())
	assert.ErrorIs(t, wst.Send(Spectrum{}), ErrClosed)
	assert.Zero(t, wst.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "client must observe the closed connection")
}

func TestNewWebSocketTransport_BadAddress(t *testing.T) {
	_, err := NewWebSocketTransport("definitely:not:an:address")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "websocket listen"))
}

type countingTransport struct {
	sent   int
	closed bool
	err    error
}

func (c *countingTransport) Send(any) error {
	c.sent++
	return c.err
}

func (c *countingTransport) Close() error {
	c.closed = true
	return c.err
}

func TestMulti(t *testing.T) {
	ok := &countingTransport{}
	failing := &countingTransport{err: errors.New("boom")}
	m := Multi{failing, ok}

	assert.ErrorContains(t, m.Send(Spectrum{}), "boom")
	assert.Equal(t, 1, ok.sent, "a failing transport must not stop delivery")
	assert.Equal(t, 1, failing.sent)

	assert.Error(t, m.Close())
	assert.True(t, ok.closed)
	assert.True(t, failing.closed)

	assert.NoError(t, Multi(nil).Send(1))
}
