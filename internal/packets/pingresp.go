package packets

import "io"

// PingrespPacket is the server's reply to a keepalive ping.
type PingrespPacket struct{}

func (p *PingrespPacket) Type() uint8 { return PINGRESP }

// WriteTo writes the PINGRESP packet to w.
func (p *PingrespPacket) WriteTo(w io.Writer) (int64, error) {
	header := &FixedHeader{PacketType: PINGRESP}
	return header.WriteTo(w)
}

// DecodePingresp decodes a PINGRESP packet, which carries no payload.
func DecodePingresp(buf []byte) (*PingrespPacket, error) {
	return &PingrespPacket{}, nil
}
