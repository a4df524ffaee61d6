package packets

import "io"

// PubrecPacket is the first step of the QoS 2 handshake (Publish Received).
type PubrecPacket struct {
	PacketID uint16

	ReasonCode uint8       // v5.0
	Properties *Properties // v5.0
	Version    uint8
}

func (p *PubrecPacket) Type() uint8 { return PUBREC }

func (p *PubrecPacket) Encode(dst []byte) ([]byte, error) {
	return append(dst, appendAckPacket(PUBREC, 0, p.PacketID, p.Version, p.ReasonCode, p.Properties)...), nil
}

func (p *PubrecPacket) WriteTo(w io.Writer) (int64, error) {
	bufPtr := GetBuffer(4096)
	defer PutBuffer(bufPtr)

	data, err := p.Encode((*bufPtr)[:0])
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// DecodePubrec decodes a PUBREC packet body.
func DecodePubrec(buf []byte, version uint8) (*PubrecPacket, error) {
	id, reason, props, err := decodeAckBody(buf, version)
	if err != nil {
		return nil, err
	}
	return &PubrecPacket{PacketID: id, ReasonCode: reason, Properties: props, Version: version}, nil
}
