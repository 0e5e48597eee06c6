package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Handler consumes one inbound event's payload. Handlers always run on the
// dispatch goroutine.
type Handler func(payload json.RawMessage)

// WebSocket is the sync transport: one connection to the server carrying
// JSON envelopes both ways. Inbound events are decoded on the read pump and
// handed to the dispatcher; outbound emits are serialized by a write lock.
type WebSocket struct {
	url        string
	header     http.Header
	dispatcher *Dispatcher
	logger     *zap.Logger

	handlers     map[string]Handler
	onConnect    func()
	onDisconnect func(err error)

	writeMu sync.Mutex
	conn    *websocket.Conn
}

// NewWebSocket creates a transport for the given endpoint. Handlers must be
// registered before Connect.
func NewWebSocket(url string, header http.Header, dispatcher *Dispatcher, logger *zap.Logger) *WebSocket {
	return &WebSocket{
		url:        url,
		header:     header,
		dispatcher: dispatcher,
		logger:     logger,
		handlers:   make(map[string]Handler),
	}
}

// Handle registers the handler for an inbound event.
func (w *WebSocket) Handle(event string, h Handler) {
	w.handlers[event] = h
}

// OnConnect registers a callback run on the dispatch goroutine after the
// connection is established.
func (w *WebSocket) OnConnect(fn func()) {
	w.onConnect = fn
}

// OnDisconnect registers a callback run on the dispatch goroutine when the
// read pump ends.
func (w *WebSocket) OnDisconnect(fn func(err error)) {
	w.onDisconnect = fn
}

// Connect dials the server and starts the read pump. Reconnection policy
// belongs to the caller; a failed dial is reported, not retried here.
func (w *WebSocket) Connect(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, w.url, w.header)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", w.url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	w.writeMu.Lock()
	w.conn = conn
	w.writeMu.Unlock()

	w.logger.Info("connected to server", zap.String("url", w.url))

	if w.onConnect != nil {
		w.dispatcher.Post(w.onConnect)
	}

	go w.readPump(ctx, conn)
	go w.pingLoop(ctx, conn)

	return nil
}

// readPump decodes envelopes and posts the matching handler invocation,
// preserving arrival order.
func (w *WebSocket) readPump(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				w.logger.Warn("unexpected close", zap.Error(err))
			} else {
				w.logger.Info("connection closed", zap.Error(err))
			}
			if w.onDisconnect != nil && ctx.Err() == nil {
				w.dispatcher.Post(func() { w.onDisconnect(err) })
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			w.logger.Warn("malformed envelope, skipping", zap.Error(err))
			continue
		}

		handler, ok := w.handlers[env.Event]
		if !ok {
			w.logger.Debug("no handler for event", zap.String("event", env.Event))
			continue
		}

		payload := env.Payload
		w.dispatcher.Post(func() { handler(payload) })
	}
}

func (w *WebSocket) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			w.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Emit sends an outbound message to the peer.
func (w *WebSocket) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", event, err)
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("emit %s: not connected", event)
	}

	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.WriteJSON(Envelope{Event: event, Payload: data})
}

// Close shuts the connection down.
func (w *WebSocket) Close() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}
