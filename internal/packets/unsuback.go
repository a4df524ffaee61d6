package packets

import "io"

// UnsubackPacket acknowledges an UNSUBSCRIBE. Reason codes are a v5.0
// addition; v3.1.1 UNSUBACK carries no payload beyond the packet ID.
type UnsubackPacket struct {
	PacketID uint16

	ReasonCodes []uint8 // v5.0
	Properties  *Properties // v5.0
	Version     uint8
}

func (p *UnsubackPacket) Type() uint8 { return UNSUBACK }

// Encode appends the wire bytes of the packet to dst.
func (p *UnsubackPacket) Encode(dst []byte) ([]byte, error) {
	codes := p.ReasonCodes
	if p.Version < 5 {
		codes = nil
	}
	body := appendCodeListBody(p.PacketID, p.Version, p.Properties, codes)
	fh := FixedHeader{PacketType: UNSUBACK, RemainingLength: len(body)}
	dst = fh.appendBytes(dst)
	return append(dst, body...), nil
}

// WriteTo writes the UNSUBACK packet to w.
func (p *UnsubackPacket) WriteTo(w io.Writer) (int64, error) {
	bufPtr := GetBuffer(4096)
	defer PutBuffer(bufPtr)

	data, err := p.Encode((*bufPtr)[:0])
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// DecodeUnsuback decodes an UNSUBACK packet body.
func DecodeUnsuback(buf []byte, version uint8) (*UnsubackPacket, error) {
	id, props, codes, err := decodeCodeListBody(buf, version)
	if err != nil {
		return nil, err
	}
	pkt := &UnsubackPacket{PacketID: id, Properties: props, Version: version}
	if version >= 5 {
		pkt.ReasonCodes = codes
	}
	return pkt, nil
}
