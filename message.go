package mq

import "fmt"

// Message represents an MQTT message received on a subscribed topic.
//
// This struct is designed to be compatible with both MQTT v3.1.1 and v5.0.
//
// The message is passed to subscription handlers and contains all relevant
// information about the received message including topic, payload, QoS level,
// and flags.
type Message struct {
	// Topic the message was published to
	Topic string

	// Message payload
	Payload []byte

	// Quality of Service level
	QoS QoS

	// Retained message flag
	Retained bool

	// Duplicate delivery flag
	Duplicate bool

	// MQTT v5.0 properties.
	// This field is nil for MQTT v3.1.1 connections or when no properties are present.
	Properties *Properties
}

// String returns a short human-readable summary of the message, suitable
// for logging. The payload itself is not included.
func (m Message) String() string {
	return fmt.Sprintf("%s (qos=%d, %d bytes, retained=%t, dup=%t)", m.Topic, m.QoS, len(m.Payload), m.Retained, m.Duplicate)
}

// ContentType returns the payload's MIME content type, or "" when the
// message has no properties or none was set.
func (m Message) ContentType() string {
	if m.Properties == nil {
		return ""
	}
	return m.Properties.ContentType
}
