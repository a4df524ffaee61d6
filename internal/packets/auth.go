package packets

import (
	"fmt"
	"io"
)

// AuthPacket carries an extended authentication exchange step (SCRAM,
// OAuth, Kerberos, ...) between client and server. Introduced in MQTT
// v5.0; it has no v3.1.1 equivalent.
type AuthPacket struct {
	ReasonCode uint8
	Properties *Properties
	Version    uint8
}

// AUTH reason codes.
const (
	AuthReasonSuccess        uint8 = 0x00
	AuthReasonContinue       uint8 = 0x18
	AuthReasonReauthenticate uint8 = 0x19
)

func (p *AuthPacket) Type() uint8 { return AUTH }

func (p *AuthPacket) Encode(dst []byte) ([]byte, error) {
	body := appendReasonBody(nil, p.ReasonCode, p.Properties)
	fh := FixedHeader{PacketType: AUTH, RemainingLength: len(body)}
	dst = fh.appendBytes(dst)
	return append(dst, body...), nil
}

// WriteTo writes the AUTH packet to w.
func (p *AuthPacket) WriteTo(w io.Writer) (int64, error) {
	bufPtr := GetBuffer(4096)
	defer PutBuffer(bufPtr)

	data, err := p.Encode((*bufPtr)[:0])
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// DecodeAuth decodes an AUTH packet body. AUTH is v5.0-only.
func DecodeAuth(buf []byte, version uint8) (*AuthPacket, error) {
	if version < 5 {
		return nil, fmt.Errorf("AUTH packet is only valid for MQTT v5.0")
	}
	reason, props, err := decodeReasonBody(buf)
	if err != nil {
		return nil, err
	}
	return &AuthPacket{ReasonCode: reason, Properties: props, Version: version}, nil
}
