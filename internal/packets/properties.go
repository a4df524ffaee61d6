package packets

import (
	"encoding/binary"
	"fmt"
)

// Property IDs defined by the MQTT v5.0 spec.
const (
	PropPayloadFormatIndicator          uint8 = 0x01
	PropMessageExpiryInterval           uint8 = 0x02
	PropContentType                     uint8 = 0x03
	PropResponseTopic                   uint8 = 0x08
	PropCorrelationData                 uint8 = 0x09
	PropSubscriptionIdentifier          uint8 = 0x0B
	PropSessionExpiryInterval           uint8 = 0x11
	PropAssignedClientIdentifier        uint8 = 0x12
	PropServerKeepAlive                 uint8 = 0x13
	PropAuthenticationMethod            uint8 = 0x15
	PropAuthenticationData              uint8 = 0x16
	PropRequestProblemInformation       uint8 = 0x17
	PropWillDelayInterval               uint8 = 0x18
	PropRequestResponseInformation      uint8 = 0x19
	PropResponseInformation             uint8 = 0x1A
	PropServerReference                 uint8 = 0x1C
	PropReasonString                    uint8 = 0x1F
	PropReceiveMaximum                  uint8 = 0x21
	PropTopicAliasMaximum                uint8 = 0x22
	PropTopicAlias                       uint8 = 0x23
	PropMaximumQoS                       uint8 = 0x24
	PropRetainAvailable                  uint8 = 0x25
	PropUserProperty                     uint8 = 0x26
	PropMaximumPacketSize                uint8 = 0x27
	PropWildcardSubscriptionAvailable    uint8 = 0x28
	PropSubscriptionIdentifierAvailable  uint8 = 0x29
	PropSharedSubscriptionAvailable      uint8 = 0x2A
)

// Presence bits track which optional properties were set, since their
// zero values (0, "", false) are all legal wire values in their own right.
const (
	PresPayloadFormatIndicator          uint32 = 1 << 0
	PresMessageExpiryInterval           uint32 = 1 << 1
	PresContentType                     uint32 = 1 << 2
	PresResponseTopic                   uint32 = 1 << 3
	PresSessionExpiryInterval           uint32 = 1 << 4
	PresAssignedClientIdentifier        uint32 = 1 << 5
	PresServerKeepAlive                 uint32 = 1 << 6
	PresAuthenticationMethod            uint32 = 1 << 7
	PresRequestProblemInformation       uint32 = 1 << 8
	PresWillDelayInterval               uint32 = 1 << 9
	PresRequestResponseInformation      uint32 = 1 << 10
	PresResponseInformation             uint32 = 1 << 11
	PresServerReference                 uint32 = 1 << 12
	PresReasonString                    uint32 = 1 << 13
	PresReceiveMaximum                  uint32 = 1 << 14
	PresTopicAliasMaximum               uint32 = 1 << 15
	PresTopicAlias                      uint32 = 1 << 16
	PresMaximumQoS                      uint32 = 1 << 17
	PresRetainAvailable                 uint32 = 1 << 18
	PresMaximumPacketSize               uint32 = 1 << 19
	PresWildcardSubscriptionAvailable   uint32 = 1 << 20
	PresSubscriptionIdentifierAvailable uint32 = 1 << 21
	PresSharedSubscriptionAvailable     uint32 = 1 << 22
)

// Property is a single decoded property, used by callers that want to
// walk an arbitrary property set without going through the typed struct.
type Property struct {
	ID    uint8
	Value any
}

// UserProperty is an MQTT User Property: an application-defined key/value
// pair. Unlike every other property, it may repeat any number of times.
type UserProperty struct {
	Key   string
	Value string
}

// Properties holds every standard MQTT v5.0 property as a plain field,
// with Presence recording which optional ones were actually set. This
// avoids the allocation a map[uint8]any representation would cost on
// every decode.
type Properties struct {
	Presence                        uint32
	PayloadFormatIndicator          uint8
	MessageExpiryInterval           uint32
	ContentType                     string
	ResponseTopic                   string
	CorrelationData                 []byte
	SubscriptionIdentifier          []int
	SessionExpiryInterval           uint32
	AssignedClientIdentifier        string
	ServerKeepAlive                 uint16
	AuthenticationMethod            string
	AuthenticationData               []byte
	RequestProblemInformation       uint8
	WillDelayInterval                uint32
	RequestResponseInformation      uint8
	ResponseInformation             string
	ServerReference                 string
	ReasonString                    string
	ReceiveMaximum                  uint16
	TopicAliasMaximum               uint16
	TopicAlias                      uint16
	MaximumQoS                      uint8
	RetainAvailable                 bool
	UserProperties                  []UserProperty
	MaximumPacketSize               uint32
	WildcardSubscriptionAvailable   bool
	SubscriptionIdentifierAvailable bool
	SharedSubscriptionAvailable     bool
}

// numericField describes a presence-gated integer property of width 1,
// 2 or 4 bytes. Every such property in MQTT v5.0 shares this shape, so
// appendProperties/decodeProperties drive them from a table instead of
// one bespoke case per property.
type numericField struct {
	id    uint8
	pres  uint32
	width int
	get   func(*Properties) uint32
	set   func(*Properties, uint32)
}

var numericFields = []numericField{
	{PropPayloadFormatIndicator, PresPayloadFormatIndicator, 1,
		func(p *Properties) uint32 { return uint32(p.PayloadFormatIndicator) },
		func(p *Properties, v uint32) { p.PayloadFormatIndicator = uint8(v) }},
	{PropMessageExpiryInterval, PresMessageExpiryInterval, 4,
		func(p *Properties) uint32 { return p.MessageExpiryInterval },
		func(p *Properties, v uint32) { p.MessageExpiryInterval = v }},
	{PropSessionExpiryInterval, PresSessionExpiryInterval, 4,
		func(p *Properties) uint32 { return p.SessionExpiryInterval },
		func(p *Properties, v uint32) { p.SessionExpiryInterval = v }},
	{PropServerKeepAlive, PresServerKeepAlive, 2,
		func(p *Properties) uint32 { return uint32(p.ServerKeepAlive) },
		func(p *Properties, v uint32) { p.ServerKeepAlive = uint16(v) }},
	{PropRequestProblemInformation, PresRequestProblemInformation, 1,
		func(p *Properties) uint32 { return uint32(p.RequestProblemInformation) },
		func(p *Properties, v uint32) { p.RequestProblemInformation = uint8(v) }},
	{PropWillDelayInterval, PresWillDelayInterval, 4,
		func(p *Properties) uint32 { return p.WillDelayInterval },
		func(p *Properties, v uint32) { p.WillDelayInterval = v }},
	{PropRequestResponseInformation, PresRequestResponseInformation, 1,
		func(p *Properties) uint32 { return uint32(p.RequestResponseInformation) },
		func(p *Properties, v uint32) { p.RequestResponseInformation = uint8(v) }},
	{PropReceiveMaximum, PresReceiveMaximum, 2,
		func(p *Properties) uint32 { return uint32(p.ReceiveMaximum) },
		func(p *Properties, v uint32) { p.ReceiveMaximum = uint16(v) }},
	{PropTopicAliasMaximum, PresTopicAliasMaximum, 2,
		func(p *Properties) uint32 { return uint32(p.TopicAliasMaximum) },
		func(p *Properties, v uint32) { p.TopicAliasMaximum = uint16(v) }},
	{PropTopicAlias, PresTopicAlias, 2,
		func(p *Properties) uint32 { return uint32(p.TopicAlias) },
		func(p *Properties, v uint32) { p.TopicAlias = uint16(v) }},
	{PropMaximumQoS, PresMaximumQoS, 1,
		func(p *Properties) uint32 { return uint32(p.MaximumQoS) },
		func(p *Properties, v uint32) { p.MaximumQoS = uint8(v) }},
	{PropMaximumPacketSize, PresMaximumPacketSize, 4,
		func(p *Properties) uint32 { return p.MaximumPacketSize },
		func(p *Properties, v uint32) { p.MaximumPacketSize = v }},
}

type boolField struct {
	id   uint8
	pres uint32
	get  func(*Properties) bool
	set  func(*Properties, bool)
}

var boolFields = []boolField{
	{PropRetainAvailable, PresRetainAvailable,
		func(p *Properties) bool { return p.RetainAvailable },
		func(p *Properties, v bool) { p.RetainAvailable = v }},
	{PropWildcardSubscriptionAvailable, PresWildcardSubscriptionAvailable,
		func(p *Properties) bool { return p.WildcardSubscriptionAvailable },
		func(p *Properties, v bool) { p.WildcardSubscriptionAvailable = v }},
	{PropSubscriptionIdentifierAvailable, PresSubscriptionIdentifierAvailable,
		func(p *Properties) bool { return p.SubscriptionIdentifierAvailable },
		func(p *Properties, v bool) { p.SubscriptionIdentifierAvailable = v }},
	{PropSharedSubscriptionAvailable, PresSharedSubscriptionAvailable,
		func(p *Properties) bool { return p.SharedSubscriptionAvailable },
		func(p *Properties, v bool) { p.SharedSubscriptionAvailable = v }},
}

type stringField struct {
	id   uint8
	pres uint32
	get  func(*Properties) string
	set  func(*Properties, string)
}

var stringFields = []stringField{
	{PropContentType, PresContentType,
		func(p *Properties) string { return p.ContentType },
		func(p *Properties, v string) { p.ContentType = v }},
	{PropResponseTopic, PresResponseTopic,
		func(p *Properties) string { return p.ResponseTopic },
		func(p *Properties, v string) { p.ResponseTopic = v }},
	{PropAssignedClientIdentifier, PresAssignedClientIdentifier,
		func(p *Properties) string { return p.AssignedClientIdentifier },
		func(p *Properties, v string) { p.AssignedClientIdentifier = v }},
	{PropAuthenticationMethod, PresAuthenticationMethod,
		func(p *Properties) string { return p.AuthenticationMethod },
		func(p *Properties, v string) { p.AuthenticationMethod = v }},
	{PropResponseInformation, PresResponseInformation,
		func(p *Properties) string { return p.ResponseInformation },
		func(p *Properties, v string) { p.ResponseInformation = v }},
	{PropServerReference, PresServerReference,
		func(p *Properties) string { return p.ServerReference },
		func(p *Properties, v string) { p.ServerReference = v }},
	{PropReasonString, PresReasonString,
		func(p *Properties) string { return p.ReasonString },
		func(p *Properties, v string) { p.ReasonString = v }},
}

// binaryField covers the two properties that, unlike every other
// optional field, are gated by length rather than a presence bit.
type binaryField struct {
	id  uint8
	get func(*Properties) []byte
	set func(*Properties, []byte)
}

var binaryFields = []binaryField{
	{PropCorrelationData,
		func(p *Properties) []byte { return p.CorrelationData },
		func(p *Properties, v []byte) { p.CorrelationData = v }},
	{PropAuthenticationData,
		func(p *Properties) []byte { return p.AuthenticationData },
		func(p *Properties, v []byte) { p.AuthenticationData = v }},
}

var (
	numericFieldByID = indexByID(numericFields, func(f numericField) uint8 { return f.id })
	boolFieldByID    = indexByID(boolFields, func(f boolField) uint8 { return f.id })
	stringFieldByID  = indexByID(stringFields, func(f stringField) uint8 { return f.id })
	binaryFieldByID  = indexByID(binaryFields, func(f binaryField) uint8 { return f.id })
)

func indexByID[T any](fields []T, id func(T) uint8) map[uint8]T {
	m := make(map[uint8]T, len(fields))
	for _, f := range fields {
		m[id(f)] = f
	}
	return m
}

// encodeProperties returns the serialized Properties section (Length +
// property list) as a standalone slice.
func encodeProperties(p *Properties) []byte {
	if p == nil {
		return []byte{0x00}
	}
	return appendProperties(make([]byte, 0, 64), p)
}

// appendProperties appends the serialized Properties section to dst.
func appendProperties(dst []byte, p *Properties) []byte {
	if p == nil {
		return append(dst, 0x00)
	}

	startLen := len(dst)
	dst = append(dst, 0) // optimistic 1-byte length, backfilled below
	propsStart := len(dst)

	for _, f := range numericFields {
		if p.Presence&f.pres == 0 {
			continue
		}
		dst = append(dst, f.id)
		v := f.get(p)
		switch f.width {
		case 1:
			dst = append(dst, byte(v))
		case 2:
			dst = binary.BigEndian.AppendUint16(dst, uint16(v))
		case 4:
			dst = binary.BigEndian.AppendUint32(dst, v)
		}
	}
	for _, f := range boolFields {
		if p.Presence&f.pres == 0 {
			continue
		}
		var b byte
		if f.get(p) {
			b = 1
		}
		dst = append(dst, f.id, b)
	}
	for _, f := range stringFields {
		if p.Presence&f.pres == 0 {
			continue
		}
		dst = append(dst, f.id)
		dst = appendString(dst, f.get(p))
	}
	for _, f := range binaryFields {
		if v := f.get(p); len(v) > 0 {
			dst = append(dst, f.id)
			dst = appendBinary(dst, v)
		}
	}
	for _, id := range p.SubscriptionIdentifier {
		dst = append(dst, PropSubscriptionIdentifier)
		dst = appendVarInt(dst, id)
	}
	for _, up := range p.UserProperties {
		dst = append(dst, PropUserProperty)
		dst = appendString(dst, up.Key)
		dst = appendString(dst, up.Value)
	}

	propLen := len(dst) - propsStart
	if propLen < 128 {
		dst[startLen] = byte(propLen)
		return dst
	}

	// The 1-byte length guess was wrong; grow it and shift the already
	// written property bytes over to make room.
	lenBuf := encodeVarInt(propLen)
	lenDiff := len(lenBuf) - 1

	dst = append(dst, make([]byte, lenDiff)...)
	copy(dst[propsStart+lenDiff:], dst[propsStart:propsStart+propLen])
	copy(dst[startLen:], lenBuf)

	return dst
}

// decodeProperties reads a Properties section from the front of buf,
// returning the decoded set and the number of bytes consumed (including
// the length prefix).
func decodeProperties(buf []byte) (*Properties, int, error) {
	if len(buf) == 0 {
		return nil, 0, fmt.Errorf("buffer too short for properties length")
	}

	propLen, n, err := decodeVarIntBuf(buf)
	if err != nil {
		return nil, 0, err
	}
	totalLen := n + propLen
	if len(buf) < totalLen {
		return nil, 0, fmt.Errorf("buffer too short for properties data")
	}
	if propLen == 0 {
		return nil, totalLen, nil
	}

	p := &Properties{}
	slice := buf[n:totalLen]
	offset := 0

	for offset < len(slice) {
		id := slice[offset]
		offset++
		data := slice[offset:]

		switch id {
		case PropUserProperty:
			k, nK, err := decodeString(data)
			if err != nil {
				return nil, 0, err
			}
			v, nV, err := decodeString(data[nK:])
			if err != nil {
				return nil, 0, err
			}
			p.UserProperties = append(p.UserProperties, UserProperty{Key: k, Value: v})
			offset += nK + nV
			continue
		case PropSubscriptionIdentifier:
			val, m, err := decodeVarIntBuf(data)
			if err != nil {
				return nil, 0, err
			}
			p.SubscriptionIdentifier = append(p.SubscriptionIdentifier, val)
			offset += m
			continue
		}

		if f, ok := numericFieldByID[id]; ok {
			if len(data) < f.width {
				return nil, 0, fmt.Errorf("malformed property 0x%02x", id)
			}
			var v uint32
			switch f.width {
			case 1:
				v = uint32(data[0])
			case 2:
				v = uint32(binary.BigEndian.Uint16(data))
			case 4:
				v = binary.BigEndian.Uint32(data)
			}
			f.set(p, v)
			p.Presence |= f.pres
			offset += f.width
			continue
		}

		if f, ok := boolFieldByID[id]; ok {
			if len(data) < 1 {
				return nil, 0, fmt.Errorf("malformed property 0x%02x", id)
			}
			f.set(p, data[0] != 0)
			p.Presence |= f.pres
			offset++
			continue
		}

		if f, ok := stringFieldByID[id]; ok {
			s, m, err := decodeString(data)
			if err != nil {
				return nil, 0, err
			}
			f.set(p, s)
			p.Presence |= f.pres
			offset += m
			continue
		}

		if f, ok := binaryFieldByID[id]; ok {
			b, m, err := decodeBinary(data)
			if err != nil {
				return nil, 0, err
			}
			f.set(p, b)
			offset += m
			continue
		}

		return nil, 0, fmt.Errorf("unsupported property ID: 0x%02x", id)
	}

	return p, totalLen, nil
}
