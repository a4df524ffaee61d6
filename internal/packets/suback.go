package packets

import "io"

// SubackPacket acknowledges a SUBSCRIBE, carrying one return/reason code
// per requested topic filter.
type SubackPacket struct {
	PacketID    uint16
	ReturnCodes []uint8

	Properties *Properties // v5.0
	Version    uint8
}

func (p *SubackPacket) Type() uint8 { return SUBACK }

// Encode appends the wire bytes of the packet to dst.
func (p *SubackPacket) Encode(dst []byte) ([]byte, error) {
	body := appendCodeListBody(p.PacketID, p.Version, p.Properties, p.ReturnCodes)
	fh := FixedHeader{PacketType: SUBACK, RemainingLength: len(body)}
	dst = fh.appendBytes(dst)
	return append(dst, body...), nil
}

// WriteTo writes the SUBACK packet to w.
func (p *SubackPacket) WriteTo(w io.Writer) (int64, error) {
	bufPtr := GetBuffer(4096)
	defer PutBuffer(bufPtr)

	data, err := p.Encode((*bufPtr)[:0])
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// DecodeSuback decodes a SUBACK packet body.
func DecodeSuback(buf []byte, version uint8) (*SubackPacket, error) {
	id, props, codes, err := decodeCodeListBody(buf, version)
	if err != nil {
		return nil, err
	}
	return &SubackPacket{PacketID: id, ReturnCodes: codes, Properties: props, Version: version}, nil
}
