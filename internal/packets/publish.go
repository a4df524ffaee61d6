package packets

import "io"

// PublishPacket carries application data to a topic, with MQTT's QoS,
// retain and duplicate-delivery semantics folded into its fixed header
// flags.
type PublishPacket struct {
	Dup    bool
	QoS    uint8
	Retain bool

	Topic         string
	OriginalTopic string // original topic name when Topic was cleared for an alias
	PacketID      uint16 // present only when QoS > 0

	Payload []byte

	Properties *Properties
	Version    uint8

	// UseAlias marks this publish for topic-alias substitution; set by
	// WithAlias and consumed by the client before the packet is sent.
	UseAlias bool
}

func (p *PublishPacket) Type() uint8 { return PUBLISH }

func (p *PublishPacket) flags() uint8 {
	var f uint8
	if p.Dup {
		f |= 0x08
	}
	f |= (p.QoS & 0x03) << 1
	if p.Retain {
		f |= 0x01
	}
	return f
}

// Encode appends the wire bytes of the packet to dst.
func (p *PublishPacket) Encode(dst []byte) ([]byte, error) {
	e := newEncoder(nil).str(p.Topic)
	if p.QoS > 0 {
		e.uint16(p.PacketID)
	}
	if p.Version >= 5 {
		e.properties(p.Properties)
	}
	e.raw(p.Payload)
	body := e.bytes()

	fh := FixedHeader{PacketType: PUBLISH, Flags: p.flags(), RemainingLength: len(body)}
	dst = fh.appendBytes(dst)
	return append(dst, body...), nil
}

// WriteTo writes the PUBLISH packet to w.
func (p *PublishPacket) WriteTo(w io.Writer) (int64, error) {
	bufPtr := GetBuffer(4096)
	defer PutBuffer(bufPtr)

	data, err := p.Encode((*bufPtr)[:0])
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// DecodePublish decodes a PUBLISH packet body, reading QoS/Dup/Retain out
// of the already-decoded fixed header flags.
func DecodePublish(buf []byte, fixedHeader *FixedHeader, version uint8) (*PublishPacket, error) {
	pkt := &PublishPacket{
		Version: version,
		Dup:     fixedHeader.Flags&0x08 != 0,
		QoS:     (fixedHeader.Flags >> 1) & 0x03,
		Retain:  fixedHeader.Flags&0x01 != 0,
	}

	r := newFieldReader(buf)

	topic, err := r.str()
	if err != nil {
		return nil, err
	}
	pkt.Topic = topic

	if pkt.QoS > 0 {
		pkt.PacketID, err = r.uint16()
		if err != nil {
			return nil, err
		}
	}

	if version >= 5 {
		pkt.Properties, err = r.properties()
		if err != nil {
			return nil, err
		}
	}

	pkt.Payload = r.restCopy()
	return pkt, nil
}
