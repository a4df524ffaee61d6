package packets

import "io"

// SubscribePacket requests a set of topic filters. Fixed header flags are
// reserved to 0x02 by the protocol.
type SubscribePacket struct {
	PacketID uint16
	Topics   []string
	QoS      []uint8

	// v5.0 Subscription Options, one entry per topic; nil/short slices
	// fall back to the zero value for that index.
	NoLocal           []bool
	RetainAsPublished []bool
	RetainHandling    []uint8 // 0=Send, 1=SendIfNew, 2=DoNotSend

	Properties *Properties // v5.0
	Version    uint8
}

func (p *SubscribePacket) Type() uint8 { return SUBSCRIBE }

func (p *SubscribePacket) optionsByte(i int) byte {
	qos := uint8(QoS0)
	if i < len(p.QoS) {
		qos = p.QoS[i]
	}
	b := qos & 0x03

	if p.Version >= 5 {
		if i < len(p.NoLocal) && p.NoLocal[i] {
			b |= 1 << 2
		}
		if i < len(p.RetainAsPublished) && p.RetainAsPublished[i] {
			b |= 1 << 3
		}
		if i < len(p.RetainHandling) {
			b |= (p.RetainHandling[i] & 0x03) << 4
		}
	}
	return b
}

// Encode appends the wire bytes of the packet to dst.
func (p *SubscribePacket) Encode(dst []byte) ([]byte, error) {
	e := newEncoder(nil).uint16(p.PacketID)
	if p.Version >= 5 {
		e.properties(p.Properties)
	}
	for i, topic := range p.Topics {
		e.str(topic).byte(p.optionsByte(i))
	}
	body := e.bytes()

	fh := FixedHeader{PacketType: SUBSCRIBE, Flags: 0x02, RemainingLength: len(body)}
	dst = fh.appendBytes(dst)
	return append(dst, body...), nil
}

// WriteTo writes the SUBSCRIBE packet to w.
func (p *SubscribePacket) WriteTo(w io.Writer) (int64, error) {
	bufPtr := GetBuffer(4096)
	defer PutBuffer(bufPtr)

	data, err := p.Encode((*bufPtr)[:0])
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// DecodeSubscribe decodes a SUBSCRIBE packet body.
func DecodeSubscribe(buf []byte, version uint8) (*SubscribePacket, error) {
	r := newFieldReader(buf)

	packetID, err := r.uint16()
	if err != nil {
		return nil, err
	}
	pkt := &SubscribePacket{PacketID: packetID, Version: version}

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
		opts, err := r.byte()
		if err != nil {
			return nil, err
		}

		pkt.Topics = append(pkt.Topics, topic)
		pkt.QoS = append(pkt.QoS, opts&0x03)

		if version >= 5 {
			pkt.NoLocal = append(pkt.NoLocal, opts&(1<<2) != 0)
			pkt.RetainAsPublished = append(pkt.RetainAsPublished, opts&(1<<3) != 0)
			pkt.RetainHandling = append(pkt.RetainHandling, (opts>>4)&0x03)
		}
	}

	return pkt, nil
}
