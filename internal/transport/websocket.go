// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MatthiasKeysermann/ICALA/internal/log"
	"github.com/MatthiasKeysermann/ICALA/internal/store"
	"github.com/gorilla/websocket"
)

const (
	writeWait       = time.Second
	broadcastBuffer = 256
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Control is a store write requested by a WebSocket client.
type Control struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// WebSocketOption configures a WebSocketTransport.
type WebSocketOption func(*WebSocketTransport)

// WithControls lets clients write the given keys into s. Without keys any
// key is accepted.
func WithControls(s store.Setter, keys ...string) WebSocketOption {
	return func(wst *WebSocketTransport) {
		wst.controls = s
		if len(keys) > 0 {
			wst.allowed = make(map[string]bool, len(keys))
			for _, k := range keys {
				wst.allowed[k] = true
			}
		}
	}
}

// WebSocketTransport broadcasts every sent value as JSON to the clients
// connected on /ws and applies the Control messages they send back.
type WebSocketTransport struct {
	upgrader websocket.Upgrader
	controls store.Setter
	allowed  map[string]bool

	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	closed    bool

	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	listener net.Listener
	server   *http.Server
}

// NewWebSocketTransport listens on addr and starts serving.
func NewWebSocketTransport(addr string, opts ...WebSocketOption) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("websocket listen on %s: %w", addr, err)
	}

	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, broadcastBuffer),
		done:      make(chan struct{}),
		listener:  ln,
	}
	for _, opt := range opts {
		opt(wst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		log.Infof("WebSocketTransport: Serving on %s", ln.Addr())
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()
	go func() {
		defer wst.wg.Done()
		wst.handleBroadcasts()
	}()
	return wst, nil
}

// Addr returns the listening address.
func (wst *WebSocketTransport) Addr() string {
	return wst.listener.Addr().String()
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	if wst.closed {
		wst.clientsMu.Unlock()
		conn.Close()
		return
	}
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.wg.Add(1)
	wst.clientsMu.Unlock()
	log.Infof("WebSocketTransport: Client connected, total: %d", total)

	defer wst.wg.Done()
	wst.readControls(conn)
	wst.removeClient(conn)
}

// readControls applies client messages until the connection fails.
func (wst *WebSocketTransport) readControls(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var c Control
		if err := json.Unmarshal(msg, &c); err != nil {
			log.Warnf("WebSocketTransport: Malformed control message: %v", err)
			continue
		}
		if err := wst.applyControl(c); err != nil {
			log.Warnf("WebSocketTransport: Control %q rejected: %v", c.Key, err)
			continue
		}
		log.Debugf("WebSocketTransport: Set %s = %g", c.Key, c.Value)
	}
}

func (wst *WebSocketTransport) applyControl(c Control) error {
	if wst.controls == nil {
		return errors.New("controls disabled")
	}
	if c.Key == "" {
		return errors.New("empty key")
	}
	if wst.allowed != nil && !wst.allowed[c.Key] {
		return errors.New("key not writable")
	}
	return wst.controls.Set(c.Key, c.Value)
}

func (wst *WebSocketTransport) removeClient(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	conn.Close()
	if ok {
		log.Infof("WebSocketTransport: Client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends queued messages to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			msg, err := json.Marshal(data)
			if err != nil {
				log.Errorf("WebSocketTransport: Encode %T: %v", data, err)
				continue
			}
			wst.clientsMu.Lock()
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.Warnf("WebSocketTransport: Error sending to client: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Send queues data for broadcast. Data is dropped when the queue is full.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}
	select {
	case wst.broadcast <- data:
	default:
		log.Debugf("WebSocketTransport: Queue full, dropping %T", data)
	}
	return nil
}

// Close disconnects all clients and shuts down the server.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		log.Infof("WebSocketTransport: Closing server")
		close(wst.done)

		wst.clientsMu.Lock()
		wst.closed = true
		for client := range wst.clients {
			client.Close()
		}
		wst.clientsMu.Unlock()

		err = wst.server.Close()
		wst.wg.Wait()
	})
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
