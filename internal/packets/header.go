package packets

import (
	"fmt"
	"io"
)

// FixedHeader is the first part of every MQTT control packet: a single
// byte of packet type and flags, followed by a Variable Byte Integer
// giving the length of everything that follows.
type FixedHeader struct {
	PacketType      uint8
	Flags           uint8
	RemainingLength int
}

// appendBytes appends the encoded fixed header to dst.
func (h *FixedHeader) appendBytes(dst []byte) []byte {
	dst = append(dst, (h.PacketType<<4)|(h.Flags&0x0F))
	return appendVarInt(dst, h.RemainingLength)
}

// WriteTo writes the fixed header to w. When w exposes WriteByte, the
// variable length is streamed a byte at a time to skip the throwaway
// slice allocation appendBytes would otherwise need.
func (h *FixedHeader) WriteTo(w io.Writer) (int64, error) {
	if bw, ok := w.(io.ByteWriter); ok {
		return h.writeBytewise(bw)
	}

	var buf [5]byte
	encoded := h.appendBytes(buf[:0])
	nw, err := w.Write(encoded)
	return int64(nw), err
}

func (h *FixedHeader) writeBytewise(bw io.ByteWriter) (int64, error) {
	var total int64

	if err := bw.WriteByte((h.PacketType << 4) | (h.Flags & 0x0F)); err != nil {
		return total, err
	}
	total++

	x := h.RemainingLength
	for {
		b := byte(x % 128)
		x /= 128
		if x > 0 {
			b |= 0x80
		}
		if err := bw.WriteByte(b); err != nil {
			return total, err
		}
		total++
		if x == 0 {
			return total, nil
		}
	}
}

// DecodeFixedHeader reads and decodes a fixed header from r.
func DecodeFixedHeader(r io.Reader) (*FixedHeader, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}

	remainingLength, err := decodeVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode remaining length: %w", err)
	}

	return &FixedHeader{
		PacketType:      buf[0] >> 4,
		Flags:           buf[0] & 0x0F,
		RemainingLength: remainingLength,
	}, nil
}
