// Package wsbridge pushes selection changes to WebSocket clients.
//
// A Bridge binds to a selection the way a UI host does (see hostbind) and
// broadcasts every rendered selection as a JSON frame. A client receives the
// current selection as soon as it connects.
package wsbridge

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/selector/pkg/hostbind"
	"github.com/vango-dev/selector/pkg/scheduler"
)

// FrameTypeSelection is the type of every frame sent by a Bridge.
const FrameTypeSelection = "selection"

// Frame is sent to clients as JSON.
type Frame[T any] struct {
	Type      string `json:"type"`
	Seq       int64  `json:"seq"`
	Selection T      `json:"selection"`
}

// Option configures a Bridge.
type Option func(*config)

type config struct {
	checkOrigin  func(r *http.Request) bool
	logger       *slog.Logger
	sched        scheduler.Scheduler
	writeTimeout time.Duration
}

// WithCheckOrigin sets the upgrader's origin check. The default accepts
// same-origin requests only.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(c *config) {
		c.checkOrigin = fn
	}
}

// WithLogger sets the bridge's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithScheduler sets where selection re-reads run.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(c *config) {
		c.sched = s
	}
}

// WithWriteTimeout bounds each frame write. Clients that miss it are dropped.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// Bridge broadcasts a selection to WebSocket clients.
type Bridge[T any] struct {
	binding      *hostbind.Binding[T]
	upgrader     websocket.Upgrader
	logger       *slog.Logger
	writeTimeout time.Duration

	// writeMu serializes frame writes and guards last, so a connecting
	// client cannot miss a frame broadcast while it registers.
	writeMu sync.Mutex
	last    []byte

	mu      sync.RWMutex
	clients map[*websocket.Conn]bool

	seq atomic.Int64
}

// New creates a bridge over view. Call Start to begin publishing.
func New[T any](view hostbind.View[T], opts ...Option) *Bridge[T] {
	c := config{
		logger:       slog.Default(),
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&c)
	}

	b := &Bridge[T]{
		clients:      make(map[*websocket.Conn]bool),
		logger:       c.logger,
		writeTimeout: c.writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     c.checkOrigin,
		},
	}

	bindOpts := []hostbind.Option{hostbind.WithLogger(c.logger)}
	if c.sched != nil {
		bindOpts = append(bindOpts, hostbind.WithScheduler(c.sched))
	}
	b.binding = hostbind.New(view, nil, b.publish, bindOpts...)
	return b
}

// Start subscribes to the selection and publishes the current value.
func (b *Bridge[T]) Start() {
	b.binding.Start()
}

// Rebind switches the bridge to another view.
func (b *Bridge[T]) Rebind(view hostbind.View[T]) {
	b.binding.Rebind(view)
}

// ServeHTTP upgrades the request and keeps the client until it disconnects.
func (b *Bridge[T]) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := b.upgrader.Upgrade(w, req, nil)
	if err != nil {
		b.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	b.writeMu.Lock()
	b.mu.Lock()
	b.clients[conn] = true
	b.mu.Unlock()
	if b.last != nil {
		if err := b.write(conn, b.last); err != nil {
			b.writeMu.Unlock()
			b.drop(conn)
			return
		}
	}
	b.writeMu.Unlock()

	// Clients only listen; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	b.drop(conn)
}

// ClientCount returns the number of connected clients.
func (b *Bridge[T]) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Published returns how many frames have been published.
func (b *Bridge[T]) Published() int64 {
	return b.seq.Load()
}

// Close unsubscribes and disconnects every client.
func (b *Bridge[T]) Close() {
	b.binding.Stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for client := range b.clients {
		client.Close()
		delete(b.clients, client)
	}
}

// publish is the binding's render function.
func (b *Bridge[T]) publish(v T) {
	frame := Frame[T]{
		Type:      FrameTypeSelection,
		Seq:       b.seq.Add(1),
		Selection: v,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		b.logger.Error("encode selection frame", "error", err)
		return
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	b.last = data

	b.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(b.clients))
	for client := range b.clients {
		clients = append(clients, client)
	}
	b.mu.RUnlock()

	for _, client := range clients {
		if err := b.write(client, data); err != nil {
			b.logger.Debug("dropping websocket client", "error", err)
			b.drop(client)
		}
	}
}

func (b *Bridge[T]) write(conn *websocket.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(b.writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (b *Bridge[T]) drop(conn *websocket.Conn) {
	b.mu.Lock()
	_, ok := b.clients[conn]
	delete(b.clients, conn)
	b.mu.Unlock()
	if ok {
		conn.Close()
	}
}
