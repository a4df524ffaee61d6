package packets

import "io"

// PubrelPacket is the second step of the QoS 2 handshake (Publish Release).
// Its fixed header reserves flag bit 1 (value 0x02) per the protocol.
type PubrelPacket struct {
	PacketID uint16

	ReasonCode uint8       // v5.0
	Properties *Properties // v5.0
	Version    uint8
}

func (p *PubrelPacket) Type() uint8 { return PUBREL }

func (p *PubrelPacket) Encode(dst []byte) ([]byte, error) {
	return append(dst, appendAckPacket(PUBREL, 0x02, p.PacketID, p.Version, p.ReasonCode, p.Properties)...), nil
}

func (p *PubrelPacket) WriteTo(w io.Writer) (int64, error) {
	bufPtr := GetBuffer(4096)
	defer PutBuffer(bufPtr)

	data, err := p.Encode((*bufPtr)[:0])
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// DecodePubrel decodes a PUBREL packet body.
func DecodePubrel(buf []byte, version uint8) (*PubrelPacket, error) {
	id, reason, props, err := decodeAckBody(buf, version)
	if err != nil {
		return nil, err
	}
	return &PubrelPacket{PacketID: id, ReasonCode: reason, Properties: props, Version: version}, nil
}
