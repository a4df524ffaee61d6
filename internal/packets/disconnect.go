package packets

import "io"

// DisconnectPacket signals an orderly or abnormal connection close.
type DisconnectPacket struct {
	ReasonCode uint8       // v5.0
	Properties *Properties // v5.0
	Version    uint8
}

func (p *DisconnectPacket) Type() uint8 { return DISCONNECT }

func (p *DisconnectPacket) Encode(dst []byte) ([]byte, error) {
	body := appendOptionalReasonBody(nil, p.Version, p.ReasonCode, p.Properties)
	fh := FixedHeader{PacketType: DISCONNECT, RemainingLength: len(body)}
	dst = fh.appendBytes(dst)
	return append(dst, body...), nil
}

// WriteTo writes the DISCONNECT packet to w.
func (p *DisconnectPacket) WriteTo(w io.Writer) (int64, error) {
	bufPtr := GetBuffer(4096)
	defer PutBuffer(bufPtr)

	data, err := p.Encode((*bufPtr)[:0])
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// DecodeDisconnect decodes a DISCONNECT packet body.
func DecodeDisconnect(buf []byte, version uint8) (*DisconnectPacket, error) {
	reason, props, err := decodeOptionalReasonBody(buf, version)
	if err != nil {
		return nil, err
	}
	return &DisconnectPacket{ReasonCode: reason, Properties: props, Version: version}, nil
}
