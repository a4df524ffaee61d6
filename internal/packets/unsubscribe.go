package packets

import "io"

// UnsubscribePacket requests removal of a set of topic filters. Fixed
// header flags are reserved to 0x02 by the protocol.
type UnsubscribePacket struct {
	PacketID uint16
	Topics   []string

	Properties *Properties // v5.0
	Version    uint8
}

func (p *UnsubscribePacket) Type() uint8 { return UNSUBSCRIBE }

// Encode appends the wire bytes of the packet to dst.
func (p *UnsubscribePacket) Encode(dst []byte) ([]byte, error) {
	e := newEncoder(nil).uint16(p.PacketID)
	if p.Version >= 5 {
		e.properties(p.Properties)
	}
	for _, topic := range p.Topics {
		e.str(topic)
	}
	body := e.bytes()

	fh := FixedHeader{PacketType: UNSUBSCRIBE, Flags: 0x02, RemainingLength: len(body)}
	dst = fh.appendBytes(dst)
	return append(dst, body...), nil
}

// WriteTo writes the UNSUBSCRIBE packet to w.
func (p *UnsubscribePacket) WriteTo(w io.Writer) (int64, error) {
	bufPtr := GetBuffer(4096)
	defer PutBuffer(bufPtr)

	data, err := p.Encode((*bufPtr)[:0])
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// DecodeUnsubscribe decodes an UNSUBSCRIBE packet body.
func DecodeUnsubscribe(buf []byte, version uint8) (*UnsubscribePacket, error) {
	r := newFieldReader(buf)

	packetID, err := r.uint16()
	if err != nil {
		return nil, err
	}
	pkt := &UnsubscribePacket{PacketID: packetID, Version: version}

	if version >= 5 {
		pkt.Properties, err = r.properties()
		if err != nil {
			return nil, err
		}
	}

	for !r.atEnd() {
		topic, err := r.str()
		if err != nil {
			return nil, err
		}
		pkt.Topics = append(pkt.Topics, topic)
	}

	return pkt, nil
}
