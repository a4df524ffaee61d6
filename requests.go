package mq

import (
	"fmt"
	"io"
	"time"

	"github.com/corvidsys/mqttv5/internal/packets"
)

// sendOrStop queues pkt on the outgoing channel, completing tok with a
// "client stopped" error if the client shuts down first. The caller must
// not hold sessionLock.
func (c *Client) sendOrStop(pkt packets.Packet, tok *token) {
	select {
	case c.outgoing <- pkt:
	case <-c.stop:
		tok.complete(fmt.Errorf("client stopped"))
	}
}

// registerPending records an outgoing operation under packetID so its
// acknowledgment can be matched back to tok. Caller must hold sessionLock.
func (c *Client) registerPending(packetID uint16, pkt packets.Packet, tok *token, qos uint8) {
	c.pending[packetID] = &pendingOp{
		packet:    pkt,
		token:     tok,
		qos:       qos,
		timestamp: time.Now(),
	}
}

// validatePublish checks req's packet against the server's negotiated
// capabilities, returning a fail-fast error the caller should complete the
// token with instead of transmitting.
func (c *Client) validatePublish(pkt *packets.PublishPacket) error {
	if c.serverCaps.MaximumPacketSize > 0 {
		n, _ := pkt.WriteTo(io.Discard)
		if size := uint32(n); size > c.serverCaps.MaximumPacketSize {
			return fmt.Errorf("packet size %d bytes exceeds server maximum %d bytes", size, c.serverCaps.MaximumPacketSize)
		}
	}
	if pkt.Retain && !c.serverCaps.RetainAvailable {
		return fmt.Errorf("server does not support retained messages")
	}
	if pkt.QoS > c.serverCaps.MaximumQoS {
		return fmt.Errorf("qos %d exceeds server maximum %d", pkt.QoS, c.serverCaps.MaximumQoS)
	}
	return nil
}

// internalPublish processes a publish request synchronously with locking.
func (c *Client) internalPublish(req *publishRequest) {
	pkt := req.packet

	c.sessionLock.Lock()

	if err := c.validatePublish(pkt); err != nil {
		req.token.complete(err)
		c.sessionLock.Unlock()
		return
	}

	if pkt.QoS == 0 {
		c.sessionLock.Unlock()
		select {
		case c.outgoing <- pkt:
			req.token.complete(nil)
		case <-c.stop:
			req.token.complete(fmt.Errorf("client stopped"))
		}
		return
	}

	if c.serverCaps.ReceiveMaximum > 0 && c.inFlightCount >= int(c.serverCaps.ReceiveMaximum) {
		c.publishQueue = append(c.publishQueue, req)
		c.sessionLock.Unlock()
		return
	}

	pkt.PacketID = c.nextID()
	c.registerPending(pkt.PacketID, pkt, req.token, pkt.QoS)
	c.inFlightCount++
	c.persistPendingPublish(pkt.PacketID, req)

	c.sessionLock.Unlock()
	c.sendOrStop(pkt, req.token)
}

// persistPendingPublish saves an in-flight QoS>0 publish to the session
// store, if one is configured, logging (not failing) on error.
func (c *Client) persistPendingPublish(packetID uint16, req *publishRequest) {
	if c.opts.SessionStore == nil || req.packet.QoS == 0 {
		return
	}
	pub := c.convertToPersistedPublish(req)
	if err := c.opts.SessionStore.SavePendingPublish(packetID, pub); err != nil {
		c.opts.Logger.Warn("failed to persist publish", "packet_id", packetID, "error", err)
	}
}

// sendPublishLocked sends a queued publish while sessionLock is held. It
// reports whether the packet was actually handed to the outgoing channel;
// a full channel leaves the operation out of c.pending so it can be retried.
func (c *Client) sendPublishLocked(req *publishRequest) bool {
	pkt := req.packet
	pkt.PacketID = c.nextID()
	c.registerPending(pkt.PacketID, pkt, req.token, pkt.QoS)

	select {
	case c.outgoing <- pkt:
		if pkt.QoS > 0 {
			c.inFlightCount++
		}
		c.persistPendingPublish(pkt.PacketID, req)
		return true
	case <-c.stop:
		return false
	default:
		delete(c.pending, pkt.PacketID)
		return false
	}
}

// internalSubscribe processes a subscribe request synchronously with locking.
func (c *Client) internalSubscribe(req *subscribeRequest) {
	pkt := req.packet

	c.sessionLock.Lock()
	pkt.PacketID = c.nextID()
	c.registerPending(pkt.PacketID, pkt, req.token, 0)

	// Register subscriptions before the SUBACK arrives: the server may
	// start publishing matching messages immediately after SUBSCRIBE.
	for i, topic := range pkt.Topics {
		c.subscriptions[topic] = subscriptionEntry{
			handler: req.handler,
			options: subscribeOptionsAt(pkt, i, req.persistence),
			qos:     qosAt(pkt.QoS, i),
		}
	}

	c.sessionLock.Unlock()
	c.sendOrStop(pkt, req.token)
}

// subscribeOptionsAt reconstructs the per-topic SubscribeOptions at index
// i of a SUBSCRIBE packet, defaulting v5.0-only fields to zero on v3.1.1.
func subscribeOptionsAt(pkt *packets.SubscribePacket, i int, persistence bool) SubscribeOptions {
	opts := SubscribeOptions{Persistence: persistence}
	if pkt.Version < 5 {
		return opts
	}
	if i < len(pkt.NoLocal) {
		opts.NoLocal = pkt.NoLocal[i]
	}
	if i < len(pkt.RetainAsPublished) {
		opts.RetainAsPublished = pkt.RetainAsPublished[i]
	}
	if i < len(pkt.RetainHandling) {
		opts.RetainHandling = pkt.RetainHandling[i]
	}
	return opts
}

// qosAt returns the QoS at index i of qos, or 0 if i is out of range.
func qosAt(qos []uint8, i int) uint8 {
	if i < len(qos) {
		return qos[i]
	}
	return 0
}

// internalUnsubscribe processes an unsubscribe request synchronously with locking.
func (c *Client) internalUnsubscribe(req *unsubscribeRequest) {
	pkt := req.packet

	c.sessionLock.Lock()
	pkt.PacketID = c.nextID()
	c.registerPending(pkt.PacketID, pkt, req.token, 0)

	for _, topic := range req.topics {
		delete(c.subscriptions, topic)
	}

	c.sessionLock.Unlock()
	c.sendOrStop(pkt, req.token)
}
