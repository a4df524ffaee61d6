package mq

import (
	"context"
	"net"

	"nhooyr.io/websocket"
)

// NewWebSocketDialer returns a ContextDialer that connects over MQTT-over-
// WebSocket using nhooyr.io/websocket, for use with WithDialer against a
// "ws://" or "wss://" server URI.
//
// subprotocols defaults to []string{"mqtt"} (the subprotocol name brokers
// expect for MQTT-over-WebSocket, RFC-registered as "mqtt") when none are
// given.
//
// Example:
//
//	client, err := mq.Dial("ws://broker:9001/mqtt",
//	    mq.WithDialer(mq.NewWebSocketDialer()),
//	    mq.WithClientID("ws-client"))
func NewWebSocketDialer(subprotocols ...string) ContextDialer {
	if len(subprotocols) == 0 {
		subprotocols = []string{"mqtt"}
	}
	return DialFunc(func(ctx context.Context, network, addr string) (net.Conn, error) {
		// addr is the full "ws://" or "wss://" URL; network is unused, as
		// the scheme in addr already determines plaintext vs TLS.
		c, _, err := websocket.Dial(ctx, addr, &websocket.DialOptions{
			Subprotocols: subprotocols,
		})
		if err != nil {
			return nil, err
		}
		return websocket.NetConn(ctx, c, websocket.MessageBinary), nil
	})
}
