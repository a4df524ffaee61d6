package packets

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// lengthPrefixSize is the width of the length prefix MQTT uses for every
// UTF-8 string and binary data field: a 2-byte big-endian byte count.
const lengthPrefixSize = 2

// appendString appends s to dst as an MQTT UTF-8 Encoded String: a 2-byte
// big-endian length followed by the raw bytes.
func appendString(dst []byte, s string) []byte {
	dst = append(dst, byte(len(s)>>8), byte(len(s)))
	return append(dst, s...)
}

// encodeString returns s encoded as a standalone MQTT UTF-8 Encoded String.
func encodeString(s string) []byte {
	return appendString(make([]byte, 0, lengthPrefixSize+len(s)), s)
}

// appendBinary appends data to dst as MQTT Binary Data: a 2-byte
// big-endian length followed by the raw bytes.
func appendBinary(dst []byte, data []byte) []byte {
	dst = append(dst, byte(len(data)>>8), byte(len(data)))
	return append(dst, data...)
}

// encodeBinary returns data encoded as standalone MQTT Binary Data.
func encodeBinary(data []byte) []byte {
	return appendBinary(make([]byte, 0, lengthPrefixSize+len(data)), data)
}

// decodeString reads a length-prefixed UTF-8 string from the front of buf,
// rejecting embedded NUL bytes and invalid UTF-8 per MQTT-1.5.4-1 /
// MQTT-1.5.4-2. Returns the string and the number of bytes consumed.
func decodeString(buf []byte) (string, int, error) {
	if len(buf) < lengthPrefixSize {
		return "", 0, fmt.Errorf("buffer too short for string length")
	}

	length := int(buf[0])<<8 | int(buf[1])
	total := lengthPrefixSize + length
	if len(buf) < total {
		return "", 0, fmt.Errorf("buffer too short for string data: need %d, have %d", total, len(buf))
	}

	s := string(buf[lengthPrefixSize:total])
	if strings.IndexByte(s, 0) >= 0 {
		return "", 0, fmt.Errorf("topic contains null byte which is not allowed")
	}
	if !utf8.ValidString(s) {
		return "", 0, fmt.Errorf("invalid UTF-8 string")
	}
	return s, total, nil
}

// decodeBinary reads length-prefixed binary data from the front of buf.
// The returned slice aliases buf; callers that retain it past the
// lifetime of a pooled buffer must copy it.
func decodeBinary(buf []byte) ([]byte, int, error) {
	if len(buf) < lengthPrefixSize {
		return nil, 0, fmt.Errorf("buffer too short for binary length")
	}

	length := int(buf[0])<<8 | int(buf[1])
	total := lengthPrefixSize + length
	if len(buf) < total {
		return nil, 0, fmt.Errorf("buffer too short for binary data: need %d, have %d", total, len(buf))
	}
	return buf[lengthPrefixSize:total], total, nil
}
