package packets

import "io"

// PubcompPacket is the final step of the QoS 2 handshake (Publish Complete).
type PubcompPacket struct {
	PacketID uint16

	ReasonCode uint8       // v5.0
	Properties *Properties // v5.0
	Version    uint8
}

func (p *PubcompPacket) Type() uint8 { return PUBCOMP }

func (p *PubcompPacket) Encode(dst []byte) ([]byte, error) {
	return append(dst, appendAckPacket(PUBCOMP, 0, p.PacketID, p.Version, p.ReasonCode, p.Properties)...), nil
}

func (p *PubcompPacket) WriteTo(w io.Writer) (int64, error) {
	bufPtr := GetBuffer(4096)
	defer PutBuffer(bufPtr)

	data, err := p.Encode((*bufPtr)[:0])
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// DecodePubcomp decodes a PUBCOMP packet body.
func DecodePubcomp(buf []byte, version uint8) (*PubcompPacket, error) {
	id, reason, props, err := decodeAckBody(buf, version)
	if err != nil {
		return nil, err
	}
	return &PubcompPacket{PacketID: id, ReasonCode: reason, Properties: props, Version: version}, nil
}
