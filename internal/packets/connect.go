package packets

import (
	"fmt"
	"io"
)

// ConnectPacket opens a session. ProtocolLevel distinguishes v3.1.1 (4)
// from v5.0 (5) framing for the fields that differ between them.
type ConnectPacket struct {
	ProtocolName  string
	ProtocolLevel uint8

	CleanSession bool
	WillFlag     bool
	WillQoS      uint8
	WillRetain   bool
	PasswordFlag bool
	UsernameFlag bool

	KeepAlive uint16

	ClientID string

	WillTopic      string
	WillMessage    []byte
	WillProperties *Properties // v5.0

	Username string
	Password string

	Properties *Properties // v5.0
}

func (p *ConnectPacket) Type() uint8 { return CONNECT }

func (p *ConnectPacket) flags() uint8 {
	var f uint8
	if p.CleanSession {
		f |= 0x02
	}
	if p.WillFlag {
		f |= 0x04
		f |= (p.WillQoS & 0x03) << 3
		if p.WillRetain {
			f |= 0x20
		}
	}
	if p.PasswordFlag {
		f |= 0x40
	}
	if p.UsernameFlag {
		f |= 0x80
	}
	return f
}

// Encode appends the wire bytes of the packet to dst.
func (p *ConnectPacket) Encode(dst []byte) ([]byte, error) {
	e := newEncoder(nil).
		str(p.ProtocolName).
		byte(p.ProtocolLevel).
		byte(p.flags()).
		uint16(p.KeepAlive)

	if p.ProtocolLevel >= 5 {
		e.properties(p.Properties)
	}

	e.str(p.ClientID)

	if p.WillFlag {
		if p.ProtocolLevel >= 5 {
			e.properties(p.WillProperties)
		}
		e.str(p.WillTopic).bin(p.WillMessage)
	}
	if p.UsernameFlag {
		e.str(p.Username)
	}
	if p.PasswordFlag {
		e.str(p.Password)
	}

	body := e.bytes()
	fh := FixedHeader{PacketType: CONNECT, RemainingLength: len(body)}
	dst = fh.appendBytes(dst)
	return append(dst, body...), nil
}

// WriteTo writes the CONNECT packet to w.
func (p *ConnectPacket) WriteTo(w io.Writer) (int64, error) {
	bufPtr := GetBuffer(4096)
	defer PutBuffer(bufPtr)

	data, err := p.Encode((*bufPtr)[:0])
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// DecodeConnect decodes a CONNECT packet body.
func DecodeConnect(buf []byte) (*ConnectPacket, error) {
	if len(buf) < 10 {
		return nil, fmt.Errorf("buffer too short for CONNECT packet")
	}

	r := newFieldReader(buf)
	pkt := &ConnectPacket{}

	protocolName, err := r.str()
	if err != nil {
		return nil, fmt.Errorf("failed to decode protocol name: %w", err)
	}
	pkt.ProtocolName = protocolName

	level, err := r.byte()
	if err != nil {
		return nil, fmt.Errorf("buffer too short for protocol level: %w", err)
	}
	pkt.ProtocolLevel = level

	connectFlags, err := r.byte()
	if err != nil {
		return nil, fmt.Errorf("buffer too short for connect flags: %w", err)
	}
	pkt.CleanSession = connectFlags&0x02 != 0
	pkt.WillFlag = connectFlags&0x04 != 0
	pkt.WillQoS = (connectFlags >> 3) & 0x03
	pkt.WillRetain = connectFlags&0x20 != 0
	pkt.PasswordFlag = connectFlags&0x40 != 0
	pkt.UsernameFlag = connectFlags&0x80 != 0

	keepAlive, err := r.uint16()
	if err != nil {
		return nil, fmt.Errorf("buffer too short for keep alive: %w", err)
	}
	pkt.KeepAlive = keepAlive

	if pkt.ProtocolLevel >= 5 {
		pkt.Properties, err = r.properties()
		if err != nil {
			return nil, fmt.Errorf("failed to decode properties: %w", err)
		}
	}

	clientID, err := r.str()
	if err != nil {
		return nil, fmt.Errorf("failed to decode client ID: %w", err)
	}
	pkt.ClientID = clientID

	if pkt.WillFlag {
		if pkt.ProtocolLevel >= 5 {
			pkt.WillProperties, err = r.properties()
			if err != nil {
				return nil, fmt.Errorf("failed to decode will properties: %w", err)
			}
		}

		willTopic, err := r.str()
		if err != nil {
			return nil, fmt.Errorf("failed to decode will topic: %w", err)
		}
		pkt.WillTopic = willTopic

		willMessage, err := r.binCopy()
		if err != nil {
			return nil, fmt.Errorf("failed to decode will message: %w", err)
		}
		pkt.WillMessage = willMessage
	}

	if pkt.UsernameFlag {
		username, err := r.str()
		if err != nil {
			return nil, fmt.Errorf("failed to decode username: %w", err)
		}
		pkt.Username = username
	}

	if pkt.PasswordFlag {
		password, err := r.str()
		if err != nil {
			return nil, fmt.Errorf("failed to decode password: %w", err)
		}
		pkt.Password = password
	}

	return pkt, nil
}
