package mq

import "github.com/google/uuid"

// GenerateClientID returns a collision-resistant client identifier built
// from a random UUIDv4, optionally prefixed.
//
// MQTT allows an empty ClientID on CONNECT so the broker can assign one
// (see WithClientID), but applications that want a locally-generated,
// stable-for-the-process identifier without relying on broker assignment
// can use this instead.
//
// Example:
//
//	client, _ := mq.Dial("tcp://localhost:1883",
//	    mq.WithClientID(mq.GenerateClientID("worker-")))
func GenerateClientID(prefix string) string {
	return prefix + uuid.NewString()
}
