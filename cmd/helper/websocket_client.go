package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"bus-tracker/internal/mylogger"
	websocketdto "bus-tracker/internal/tracking-service/core/domain/websocket_dto"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

type WebSocketClient struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	ctx    context.Context
	logger mylogger.Logger
}

func NewWebSocketClient(ctx context.Context, logger mylogger.Logger) *WebSocketClient {
	return &WebSocketClient{
		ctx:    ctx,
		logger: logger,
	}
}

func (w *WebSocketClient) Connect(url, token string) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(w.ctx, url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connecting to websocket: status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("connecting to websocket: %w", err)
	}

	w.conn = conn
	w.logger.Action("ws_connected").Info("WebSocket connected", "url", url)
	return nil
}

func (w *WebSocketClient) Close() error {
	if w.conn == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return w.conn.Close()
}

// Send wraps payload in an event envelope and writes it.
func (w *WebSocketClient) Send(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	msg, err := json.Marshal(websocketdto.Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

// ReadEvents decodes inbound events until the connection fails or ctx is done.
func (w *WebSocketClient) ReadEvents(handler func(ev websocketdto.Event)) error {
	for {
		_, payload, err := w.conn.ReadMessage()
		if err != nil {
			if w.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading message: %w", err)
		}

		var ev websocketdto.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			w.logger.Action("ws_decode_failed").Warn("skipping malformed event", "payload", string(payload))
			continue
		}
		handler(ev)
	}
}
