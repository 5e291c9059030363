package ws

import (
	"sync"
	"time"

	"bus-tracker/internal/mylogger"
	websocketdto "bus-tracker/internal/tracking-service/core/domain/websocket_dto"
	"bus-tracker/internal/tracking-service/core/ports/driven"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

var _ driven.Outbound = (*Client)(nil)

// Client owns one websocket connection. Events queued with Send are written
// by WritePump; inbound frames are handed to the ReadPump callback.
type Client struct {
	conn *websocket.Conn
	log  mylogger.Logger

	send    chan websocketdto.Event
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func NewClient(conn *websocket.Conn, buffer int, log mylogger.Logger) *Client {
	return &Client{
		conn:    conn,
		log:     log,
		send:    make(chan websocketdto.Event, buffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Send queues ev without blocking. It reports false when the queue is full or
// the client is closed.
func (c *Client) Send(ev websocketdto.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which then closes the connection. Safe to call
// more than once and from any goroutine.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// Stopped is closed once WritePump has returned.
func (c *Client) Stopped() <-chan struct{} {
	return c.stopped
}

// WritePump writes queued events and keepalive pings until Close is called or
// a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
		close(c.stopped)
	}()

	for {
		select {
		case ev := <-c.send:
			if err := c.write(ev); err != nil {
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// flush writes whatever is still queued when the client is closed.
func (c *Client) flush() {
	for {
		select {
		case ev := <-c.send:
			if err := c.write(ev); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(ev websocketdto.Event) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		c.log.Action("ws_encode_failed").Error("failed to encode event", err, "type", ev.Type)
		return nil
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Action("ws_write_failed").Debug("failed to write websocket frame", "error", err.Error())
		return err
	}
	return nil
}

// ReadPump blocks reading text frames and passes each to handle. It returns
// when the peer goes away, the read deadline passes or the connection is
// closed by WritePump.
func (c *Client) ReadPump(handle func(msg []byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Action("ws_unexpected_close").Warn("websocket closed unexpectedly", "error", err.Error())
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		// Any inbound frame proves the peer is alive.
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		handle(msg)
	}
}
