package packets

import "io"

// PingreqPacket is the keepalive ping sent by the client.
type PingreqPacket struct{}

func (p *PingreqPacket) Type() uint8 { return PINGREQ }

// WriteTo writes the PINGREQ packet to w.
func (p *PingreqPacket) WriteTo(w io.Writer) (int64, error) {
	header := &FixedHeader{PacketType: PINGREQ}
	return header.WriteTo(w)
}

// DecodePingreq decodes a PINGREQ packet, which carries no payload.
func DecodePingreq(buf []byte) (*PingreqPacket, error) {
	return &PingreqPacket{}, nil
}
