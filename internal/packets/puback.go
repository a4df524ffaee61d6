package packets

import "io"

// PubackPacket acknowledges a QoS 1 PUBLISH.
type PubackPacket struct {
	PacketID uint16

	ReasonCode uint8       // v5.0
	Properties *Properties // v5.0
	Version    uint8
}

func (p *PubackPacket) Type() uint8 { return PUBACK }

// Encode appends the wire bytes of the packet to dst.
func (p *PubackPacket) Encode(dst []byte) ([]byte, error) {
	return append(dst, appendAckPacket(PUBACK, 0, p.PacketID, p.Version, p.ReasonCode, p.Properties)...), nil
}

// WriteTo writes the PUBACK packet to w.
func (p *PubackPacket) WriteTo(w io.Writer) (int64, error) {
	bufPtr := GetBuffer(4096)
	defer PutBuffer(bufPtr)

	data, err := p.Encode((*bufPtr)[:0])
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// DecodePuback decodes a PUBACK packet body.
func DecodePuback(buf []byte, version uint8) (*PubackPacket, error) {
	id, reason, props, err := decodeAckBody(buf, version)
	if err != nil {
		return nil, err
	}
	return &PubackPacket{PacketID: id, ReasonCode: reason, Properties: props, Version: version}, nil
}
