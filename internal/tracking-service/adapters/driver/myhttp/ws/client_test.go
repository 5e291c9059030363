package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bus-tracker/internal/mylogger"
	websocketdto "bus-tracker/internal/tracking-service/core/domain/websocket_dto"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// echoServer upgrades every request, echoes inbound frames back as "pong"
// events and hands the server-side client to the test.
func echoServer(t *testing.T, buffer int) (*httptest.Server, chan *Client) {
	t.Helper()
	clients := make(chan *Client, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(conn, buffer, mylogger.NewNop())
		clients <- c
		go c.WritePump()
		c.ReadPump(func(msg []byte) {
			c.Send(websocketdto.Event{Type: websocketdto.EventPong, Data: msg})
		})
		c.Close()
	}))
	t.Cleanup(srv.Close)
	return srv, clients
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) websocketdto.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev websocketdto.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return ev
}

func TestClientRoundTrip(t *testing.T) {
	srv, _ := echoServer(t, 4)
	conn := dial(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"n":1}`)); err != nil {
		t.Fatal(err)
	}
	ev := readEvent(t, conn)
	if ev.Type != websocketdto.EventPong || string(ev.Data) != `{"n":1}` {
		t.Errorf("got %s %s", ev.Type, ev.Data)
	}
}

func TestClientSendPreservesOrder(t *testing.T) {
	srv, clients := echoServer(t, 8)
	conn := dial(t, srv)
	c := <-clients

	for _, typ := range []string{"a", "b", "c"} {
		if !c.Send(websocketdto.Event{Type: typ}) {
			t.Fatalf("Send(%s) refused", typ)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		if got := readEvent(t, conn).Type; got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestClientSendAfterClose(t *testing.T) {
	srv, clients := echoServer(t, 4)
	conn := dial(t, srv)
	c := <-clients

	c.Send(websocketdto.Event{Type: "last"})
	c.Close()
	c.Close()
	if c.Send(websocketdto.Event{Type: "late"}) {
		t.Error("Send succeeded after Close")
	}

	if got := readEvent(t, conn).Type; got != "last" {
		t.Errorf("queued event lost on close, got %q", got)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}

	select {
	case <-c.Stopped():
	case <-time.After(2 * time.Second):
		t.Fatal("write pump did not stop")
	}
}

func TestClientSendFullQueue(t *testing.T) {
	c := NewClient(nil, 1, mylogger.NewNop())
	if !c.Send(websocketdto.Event{Type: "a"}) {
		t.Fatal("first Send refused")
	}
	if c.Send(websocketdto.Event{Type: "b"}) {
		t.Error("Send succeeded on a full queue")
	}
}
