package mq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

// TestWebSocketDialerRoundTrip checks that NewWebSocketDialer produces a
// net.Conn that can exchange bytes with a real WebSocket server, since the
// client's state machine only ever sees it as a net.Conn.
func TestWebSocketDialerRoundTrip(t *testing.T) {
	const payload = "mqtt-over-websocket"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{"mqtt"},
		})
		if err != nil {
			t.Errorf("server accept: %v", err)
			return
		}
		defer c.CloseNow()

		conn := websocket.NetConn(r.Context(), c, websocket.MessageBinary)
		buf := make([]byte, len(payload))
		if _, err := conn.Read(buf); err != nil {
			t.Errorf("server read: %v", err)
			return
		}
		if string(buf) != payload {
			t.Errorf("server got %q, want %q", buf, payload)
		}
		if _, err := conn.Write(buf); err != nil {
			t.Errorf("server write: %v", err)
		}
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]

	dialer := NewWebSocketDialer()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", wsURL)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(payload)); err != nil {
		t.Fatalf("client write: %v", err)
	}

	buf := make([]byte, len(payload))
	if _, err := conn.Read(buf); err != nil {
		t.Fatalf("client read: %v", err)
	}
	if string(buf) != payload {
		t.Fatalf("got %q, want %q", buf, payload)
	}
}
