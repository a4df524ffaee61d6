package mq

import (
	"context"
	"time"

	"github.com/corvidsys/mqttv5/internal/packets"
)

// logicLoop is the single-threaded state machine that owns all session
// state (pending operations, subscriptions, received QoS 2 IDs). Running
// it on one goroutine avoids a mutex around those maps; sessionLock only
// guards them against concurrent reads from other goroutines (e.g. stats).
func (c *Client) logicLoop() {
	defer c.wg.Done()

	retryTicker := time.NewTicker(5 * time.Second)
	defer retryTicker.Stop()

	for {
		select {
		case pkt := <-c.incoming:
			c.sessionLock.Lock()
			c.handleIncoming(pkt)
			c.sessionLock.Unlock()

		case <-retryTicker.C:
			c.sessionLock.Lock()
			c.retryPending()
			c.processPublishQueue()
			c.sessionLock.Unlock()

		case <-c.stop:
			c.opts.Logger.Debug("logicLoop stopped")
			c.sessionLock.Lock()
			c.failAllPending(ErrClientDisconnected)
			c.sessionLock.Unlock()
			return
		}
	}
}

// failAllPending completes every pending operation and queued publish
// with err. Called under sessionLock when the client is shutting down.
func (c *Client) failAllPending(err error) {
	for _, op := range c.pending {
		op.token.complete(err)
	}
	for _, req := range c.publishQueue {
		req.token.complete(err)
	}
	c.publishQueue = nil
}

// internalResetState clears ephemeral session state on a clean-session
// reconnect. It acquires sessionLock itself.
func (c *Client) internalResetState() {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()
	c.receivedQoS2 = make(map[uint16]struct{})
}

// handleIncoming dispatches a decoded packet to its type-specific handler.
func (c *Client) handleIncoming(pkt packets.Packet) {
	switch p := pkt.(type) {
	case *packets.PublishPacket:
		c.handlePublish(p)
	case *packets.PubackPacket:
		c.handlePuback(p)
	case *packets.PubrecPacket:
		c.handlePubrec(p)
	case *packets.PubrelPacket:
		c.handlePubrel(p)
	case *packets.PubcompPacket:
		c.handlePubcomp(p)
	case *packets.SubackPacket:
		c.handleSuback(p)
	case *packets.UnsubackPacket:
		c.handleUnsuback(p)
	case *packets.PingrespPacket:
		c.notifyPong()
	case *packets.DisconnectPacket:
		c.handleDisconnectPacket(p)
	case *packets.AuthPacket:
		c.handleAuth(p)
	}
}

// notifyPong signals writeLoop that a keepalive PINGRESP arrived.
func (c *Client) notifyPong() {
	select {
	case c.pingPendingCh <- struct{}{}:
	default:
		// writeLoop hasn't drained the previous signal yet.
	}
}

// ackError translates a QoS acknowledgment's reason code into an error.
// v3.1.1 acknowledgments carry no reason code at all; in v5.0, codes below
// 0x80 indicate success.
func ackError(version uint8, reasonCode uint8) error {
	if version >= ProtocolV50 && reasonCode >= 0x80 {
		return &MqttError{ReasonCode: ReasonCode(reasonCode)}
	}
	return nil
}

// topicAliasOutcome is the result of resolving a PUBLISH's topic alias.
type topicAliasOutcome int

const (
	aliasOK topicAliasOutcome = iota
	aliasProtocolError
)

// resolveTopicAlias applies MQTT v5.0 topic alias substitution to p,
// registering new alias mappings and resolving alias-only publishes. It
// reports aliasProtocolError (after disconnecting the client) when the
// server violated the alias contract.
func (c *Client) resolveTopicAlias(p *packets.PublishPacket) topicAliasOutcome {
	if c.opts.ProtocolVersion < ProtocolV50 || p.Properties == nil || p.Properties.Presence&packets.PresTopicAlias == 0 {
		return aliasOK
	}

	aliasID := p.Properties.TopicAlias

	if aliasID == 0 {
		c.opts.Logger.Error("server sent invalid topic alias 0")
		c.protocolErrorDisconnect(ReasonCodeTopicAliasInvalid)
		return aliasProtocolError
	}

	if c.opts.TopicAliasMaximum > 0 && aliasID > c.opts.TopicAliasMaximum {
		c.opts.Logger.Error("server exceeded topic alias maximum", "alias", aliasID, "max", c.opts.TopicAliasMaximum)
		c.protocolErrorDisconnect(ReasonCodeTopicAliasInvalid)
		return aliasProtocolError
	}

	if p.Topic == "" {
		c.receivedAliasesLock.RLock()
		topic, exists := c.receivedAliases[aliasID]
		c.receivedAliasesLock.RUnlock()

		if !exists {
			c.opts.Logger.Error("server sent unknown topic alias", "alias", aliasID)
			c.protocolErrorDisconnect(ReasonCodeMalformedPacket)
			return aliasProtocolError
		}

		p.Topic = topic
		c.opts.Logger.Debug("resolved topic alias", "alias", aliasID, "topic", topic)
		return aliasOK
	}

	c.receivedAliasesLock.Lock()
	c.receivedAliases[aliasID] = p.Topic
	c.receivedAliasesLock.Unlock()
	c.opts.Logger.Debug("registered topic alias", "alias", aliasID, "topic", p.Topic)
	return aliasOK
}

// protocolErrorDisconnect tears the connection down after a v5.0 protocol
// violation, falling back to a plain DISCONNECT on v3.1.1 connections
// (which have no reason code to carry).
func (c *Client) protocolErrorDisconnect(reason ReasonCode) {
	var err error
	if c.opts.ProtocolVersion >= ProtocolV50 {
		err = c.disconnectWithReason(context.Background(), uint8(reason), nil)
	} else {
		err = c.Disconnect(context.Background())
	}
	if err != nil {
		c.opts.Logger.Error("failed to disconnect client", "error", err)
	}
}

// admitInbound enforces the v5.0 Receive Maximum on newly seen QoS>0
// packet IDs, returning false when the caller should abort processing
// (the connection was dropped under the strict policy).
func (c *Client) admitInbound(p *packets.PublishPacket) bool {
	if c.opts.ProtocolVersion < ProtocolV50 || p.QoS == 0 {
		return true
	}
	if _, seen := c.inboundUnacked[p.PacketID]; seen {
		return true
	}

	limit := c.opts.ReceiveMaximum
	if limit == 0 {
		limit = 65535
	}
	if len(c.inboundUnacked) >= int(limit) {
		if c.opts.ReceiveMaximumPolicy == LimitPolicyStrict {
			c.opts.Logger.Error("receive maximum exceeded", "limit", limit)
			c.protocolErrorDisconnect(ReasonCodeReceiveMaximumExceed)
			return false
		}
		if !c.receiveMaxExceededLogged {
			c.opts.Logger.Warn("receive maximum exceeded, ignoring (server is misbehaving)", "limit", limit)
			c.receiveMaxExceededLogged = true
		}
	}
	c.inboundUnacked[p.PacketID] = struct{}{}
	return true
}

// matchingHandlers returns the handlers registered for topics matching
// topic, falling back to the default handler when nothing matches.
func (c *Client) matchingHandlers(topic string) []MessageHandler {
	var handlers []MessageHandler
	for filter, entry := range c.subscriptions {
		if entry.handler != nil && MatchTopic(filter, topic) {
			handlers = append(handlers, entry.handler)
		}
	}
	if len(handlers) > 0 {
		return handlers
	}
	if c.opts.DefaultPublishHandler != nil {
		return []MessageHandler{c.opts.DefaultPublishHandler}
	}
	return nil
}

// handlePublish processes an incoming PUBLISH: alias resolution, receive
// maximum admission, QoS 2 dedup, handler dispatch, and acknowledgment.
func (c *Client) handlePublish(p *packets.PublishPacket) {
	if c.resolveTopicAlias(p) != aliasOK {
		return
	}
	if !c.admitInbound(p) {
		return
	}

	if p.QoS == 2 {
		if _, dup := c.receivedQoS2[p.PacketID]; dup {
			c.sendBestEffort(&packets.PubrecPacket{PacketID: p.PacketID})
			return
		}
		c.receivedQoS2[p.PacketID] = struct{}{}

		if c.opts.SessionStore != nil {
			if err := c.opts.SessionStore.SaveReceivedQoS2(p.PacketID); err != nil {
				c.opts.Logger.Warn("failed to persist QoS2 ID", "packet_id", p.PacketID, "error", err)
			}
		}
	}

	msg := Message{
		Topic:      p.Topic,
		Payload:    p.Payload,
		QoS:        QoS(p.QoS),
		Retained:   p.Retain,
		Duplicate:  p.Dup,
		Properties: toPublicProperties(p.Properties),
	}

	for _, handler := range c.matchingHandlers(p.Topic) {
		h := handler
		go h(c, msg)
	}

	switch p.QoS {
	case 1:
		if c.sendBestEffort(&packets.PubackPacket{PacketID: p.PacketID}) {
			delete(c.inboundUnacked, p.PacketID)
		}
	case 2:
		c.sendBestEffort(&packets.PubrecPacket{PacketID: p.PacketID})
	}
}

// sendBestEffort queues pkt on the outgoing channel, giving up only if the
// client is shutting down. It reports whether the packet was queued.
func (c *Client) sendBestEffort(pkt packets.Packet) bool {
	select {
	case c.outgoing <- pkt:
		return true
	case <-c.stop:
		return false
	}
}

// completePending resolves and removes a pending operation tracked by
// packetID, forgetting it from the session store too.
func (c *Client) completePending(packetID uint16, err error) {
	op, ok := c.pending[packetID]
	if !ok {
		return
	}
	op.token.complete(err)
	delete(c.pending, packetID)

	if c.opts.SessionStore != nil {
		if sErr := c.opts.SessionStore.DeletePendingPublish(packetID); sErr != nil {
			c.opts.Logger.Warn("failed to delete pending publish", "packet_id", packetID, "error", sErr)
		}
	}

	c.inFlightCount--
	c.processPublishQueue()
}

// handlePuback processes a PUBACK (QoS 1 acknowledgment).
func (c *Client) handlePuback(p *packets.PubackPacket) {
	if _, ok := c.pending[p.PacketID]; ok {
		c.completePending(p.PacketID, ackError(c.opts.ProtocolVersion, p.ReasonCode))
	}
}

// handlePubrec processes a PUBREC (QoS 2, step 1): either the publish
// failed and the operation completes, or the handshake continues with
// PUBREL.
func (c *Client) handlePubrec(p *packets.PubrecPacket) {
	op, ok := c.pending[p.PacketID]
	if !ok {
		return
	}

	if err := ackError(c.opts.ProtocolVersion, p.ReasonCode); err != nil {
		op.token.complete(err)
		delete(c.pending, p.PacketID)
		c.processPublishQueue()
		return
	}

	pubrel := &packets.PubrelPacket{PacketID: p.PacketID, Version: c.opts.ProtocolVersion}
	if c.sendBestEffort(pubrel) {
		op.packet = pubrel
		op.timestamp = time.Now()
	}
}

// handlePubrel processes a PUBREL (QoS 2, step 2), replying with PUBCOMP
// and forgetting the inbound QoS 2 ID.
func (c *Client) handlePubrel(p *packets.PubrelPacket) {
	if c.sendBestEffort(&packets.PubcompPacket{PacketID: p.PacketID}) {
		delete(c.inboundUnacked, p.PacketID)
	}

	delete(c.receivedQoS2, p.PacketID)

	if c.opts.SessionStore != nil {
		if err := c.opts.SessionStore.DeleteReceivedQoS2(p.PacketID); err != nil {
			c.opts.Logger.Warn("failed to delete QoS2 ID", "packet_id", p.PacketID, "error", err)
		}
	}
}

// handlePubcomp processes a PUBCOMP (QoS 2, step 3).
func (c *Client) handlePubcomp(p *packets.PubcompPacket) {
	if _, ok := c.pending[p.PacketID]; ok {
		c.completePending(p.PacketID, ackError(c.opts.ProtocolVersion, p.ReasonCode))
	}
}

// handleSuback processes a SUBACK, persisting any subscriptions the
// server accepted and failing the token on the first rejected filter.
func (c *Client) handleSuback(p *packets.SubackPacket) {
	op, ok := c.pending[p.PacketID]
	if !ok {
		return
	}

	var err error
	for _, code := range p.ReturnCodes {
		if code < 0x80 {
			continue
		}
		if c.opts.ProtocolVersion >= ProtocolV50 {
			err = &MqttError{ReasonCode: ReasonCode(code), Parent: ErrSubscriptionFailed}
		} else {
			err = ErrSubscriptionFailed
		}
		break
	}

	if err == nil && c.opts.SessionStore != nil {
		if subPkt, ok := op.packet.(*packets.SubscribePacket); ok {
			c.persistAcceptedSubscriptions(subPkt, p.ReturnCodes)
		}
	}

	op.token.complete(err)
	delete(c.pending, p.PacketID)
}

// persistAcceptedSubscriptions saves to the session store every topic in
// subPkt whose corresponding SUBACK return code indicates acceptance and
// whose subscription entry has persistence enabled.
func (c *Client) persistAcceptedSubscriptions(subPkt *packets.SubscribePacket, returnCodes []uint8) {
	for i, topic := range subPkt.Topics {
		if i >= len(returnCodes) || returnCodes[i] >= 0x80 {
			continue
		}
		entry, ok := c.subscriptions[topic]
		if !ok || !entry.options.Persistence {
			continue
		}
		sub := c.convertToPersistedSubscription(entry)
		if err := c.opts.SessionStore.SaveSubscription(topic, sub); err != nil {
			c.opts.Logger.Warn("failed to persist subscription", "topic", topic, "error", err)
		}
	}
}

// handleUnsuback processes an UNSUBACK, removing acknowledged
// subscriptions from the session store.
func (c *Client) handleUnsuback(p *packets.UnsubackPacket) {
	op, ok := c.pending[p.PacketID]
	if !ok {
		return
	}

	var err error
	if c.opts.ProtocolVersion >= ProtocolV50 {
		for _, code := range p.ReasonCodes {
			if code >= 0x80 {
				err = &MqttError{ReasonCode: ReasonCode(code)}
				break
			}
		}
	}

	op.token.complete(err)
	delete(c.pending, p.PacketID)

	if c.opts.SessionStore != nil {
		if unsubPkt, ok := op.packet.(*packets.UnsubscribePacket); ok {
			for _, topic := range unsubPkt.Topics {
				if err := c.opts.SessionStore.DeleteSubscription(topic); err != nil {
					c.opts.Logger.Warn("failed to delete subscription", "topic", topic, "error", err)
				}
			}
		}
	}
}

// retryPending retransmits packets that haven't been acknowledged within
// the retry window, marking resent PUBLISH packets as duplicates.
func (c *Client) retryPending() {
	const retryWindow = 10 * time.Second
	now := time.Now()

	for _, op := range c.pending {
		if now.Sub(op.timestamp) <= retryWindow {
			continue
		}
		if pub, ok := op.packet.(*packets.PublishPacket); ok {
			pub.Dup = true
		}

		select {
		case c.outgoing <- op.packet:
			op.timestamp = now
		case <-c.stop:
			return
		}
	}
}

// nextID returns the next unused packet ID, cycling through 1-65535.
func (c *Client) nextID() uint16 {
	for range 65535 {
		c.nextPacketID++
		if c.nextPacketID == 0 {
			c.nextPacketID = 1
		}
		if _, used := c.pending[c.nextPacketID]; !used {
			return c.nextPacketID
		}
	}
	// Only reachable with 65535 pending operations; return the ID anyway
	// and accept the collision rather than deadlock.
	return c.nextPacketID
}

// handleDisconnectPacket records a server-initiated DISCONNECT for
// handleDisconnect to surface once the connection loop observes the close.
func (c *Client) handleDisconnectPacket(p *packets.DisconnectPacket) {
	reason := "Unknown"
	if name, ok := disconnectReasonCodeNames[ReasonCode(p.ReasonCode)]; ok {
		reason = name
	}

	attrs := []any{"reason_code", p.ReasonCode, "reason", reason}
	if p.Properties != nil && p.Properties.Presence&packets.PresReasonString != 0 {
		attrs = append(attrs, "reason_string", p.Properties.ReasonString)
	}
	c.opts.Logger.Warn("received DISCONNECT from server", attrs...)

	err := &DisconnectError{ReasonCode: ReasonCode(p.ReasonCode)}
	if p.Properties != nil {
		if p.Properties.Presence&packets.PresReasonString != 0 {
			err.ReasonString = p.Properties.ReasonString
		}
		if p.Properties.Presence&packets.PresSessionExpiryInterval != 0 {
			err.SessionExpiryInterval = p.Properties.SessionExpiryInterval
		}
		if p.Properties.Presence&packets.PresServerReference != 0 {
			err.ServerReference = p.Properties.ServerReference
		}
		if len(p.Properties.UserProperties) > 0 {
			err.UserProperties = make(map[string]string, len(p.Properties.UserProperties))
			for _, up := range p.Properties.UserProperties {
				err.UserProperties[up.Key] = up.Value
			}
		}
	}

	c.connLock.Lock()
	c.lastDisconnectReason = err
	c.connLock.Unlock()
}

// disconnectReasonCodeNames maps MQTT v5.0 DISCONNECT reason codes to
// human-readable strings for logging.
var disconnectReasonCodeNames = map[ReasonCode]string{
	ReasonCodeNormalDisconnect:      "Normal disconnect",
	ReasonCodeDisconnectWithWill:    "Disconnect with Will Message",
	ReasonCodeUnspecifiedError:      "Unspecified error",
	ReasonCodeMalformedPacket:       "Malformed Packet",
	ReasonCodeProtocolError:         "Protocol Error",
	ReasonCodeImplementationError:   "Implementation specific error",
	ReasonCodeNotAuthorized:         "Not authorized",
	ReasonCodeServerBusy:            "Server busy",
	ReasonCodeServerShuttingDown:    "Server shutting down",
	ReasonCodeKeepAliveTimeout:      "Keep Alive timeout",
	ReasonCodeSessionTakenOver:      "Session taken over",
	ReasonCodeTopicFilterInvalid:    "Topic Filter invalid",
	ReasonCodeTopicNameInvalid:      "Topic Name invalid",
	ReasonCodeReceiveMaximumExceed:  "Receive Maximum exceeded",
	ReasonCodeTopicAliasInvalid:     "Topic Alias invalid",
	ReasonCodePacketTooLarge:        "Packet too large",
	ReasonCodeMessageRateTooHigh:    "Message rate too high",
	ReasonCodeQuotaExceeded:         "Quota exceeded",
	ReasonCodeAdministrativeAction:  "Administrative action",
	ReasonCodePayloadFormatInvalid:  "Payload format invalid",
	ReasonCodeRetainNotSupported:    "Retain not supported",
	ReasonCodeQoSNotSupported:       "QoS not supported",
	ReasonCodeUseAnotherServer:      "Use another server",
	ReasonCodeServerMoved:           "Server moved",
	ReasonCodeSharedSubNotSupported: "Shared Subscriptions not supported",
	ReasonCodeConnectionRateExceed:  "Connection rate exceeded",
	ReasonCodeMaximumConnectTime:    "Maximum connect time",
	ReasonCodeSubscriptionIDNotSupp: "Subscription Identifiers not supported",
	ReasonCodeWildcardSubNotSupp:    "Wildcard Subscriptions not supported",
}
