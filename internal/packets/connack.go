package packets

import (
	"fmt"
	"io"
)

// ConnackPacket acknowledges a CONNECT attempt.
type ConnackPacket struct {
	SessionPresent bool
	ReturnCode     uint8

	Properties *Properties // v5.0
}

func (p *ConnackPacket) Type() uint8 { return CONNACK }

// Encode appends the wire bytes of the packet to dst.
func (p *ConnackPacket) Encode(dst []byte) ([]byte, error) {
	var ackFlags uint8
	if p.SessionPresent {
		ackFlags = 0x01
	}

	body := newEncoder(nil).byte(ackFlags).byte(p.ReturnCode).properties(p.Properties).bytes()
	fh := FixedHeader{PacketType: CONNACK, RemainingLength: len(body)}
	dst = fh.appendBytes(dst)
	return append(dst, body...), nil
}

// WriteTo writes the CONNACK packet to w.
func (p *ConnackPacket) WriteTo(w io.Writer) (int64, error) {
	bufPtr := GetBuffer(4096)
	defer PutBuffer(bufPtr)

	data, err := p.Encode((*bufPtr)[:0])
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// DecodeConnack decodes a CONNACK packet body.
func DecodeConnack(buf []byte, version uint8) (*ConnackPacket, error) {
	r := newFieldReader(buf)

	ackFlags, err := r.byte()
	if err != nil {
		return nil, fmt.Errorf("buffer too short for CONNACK packet: %w", err)
	}
	returnCode, err := r.byte()
	if err != nil {
		return nil, fmt.Errorf("buffer too short for CONNACK packet: %w", err)
	}

	pkt := &ConnackPacket{
		SessionPresent: ackFlags&0x01 != 0,
		ReturnCode:     returnCode,
	}

	if version >= 5 && !r.atEnd() {
		props, err := r.properties()
		if err != nil {
			return nil, fmt.Errorf("failed to decode properties: %w", err)
		}
		pkt.Properties = props
	}

	return pkt, nil
}
