package message

import (
	"encoding/binary"
	"fmt"
	"io"
)

const HeaderSize = 6

type Header struct {
	Type Type
	Size uint32
}

func ReadHeader(r io.Reader) (Header, error) {
	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Header{}, err
	}

	return Header{
		Type: Type(binary.LittleEndian.Uint16(b[0:2])),
		Size: binary.LittleEndian.Uint32(b[2:6]),
	}, nil
}

func (h Header) Write(w io.Writer) error {
	var b [HeaderSize]byte
	h.put(b[:])
	_, err := w.Write(b[:])
	return err
}

func (h Header) put(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], uint16(h.Type))
	binary.LittleEndian.PutUint32(b[2:6], h.Size)
}

// ReadFrame reads one whole frame from a blocking reader. The server side
// uses Decoder instead; ReadFrame serves clients and tools.
func ReadFrame(r io.Reader) (Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Message{}, err
	}
	if !h.Type.OnWire() {
		return Message{}, fmt.Errorf("%w: %d", ErrInvalidType, h.Type)
	}
	if h.Size > MaxBodyLength {
		return Message{}, fmt.Errorf("%w: %d", ErrBodyTooLarge, h.Size)
	}

	b := make([]byte, h.Size)
	if _, err := io.ReadFull(r, b); err != nil {
		return Message{}, err
	}
	return Message{Type: h.Type, Payload: b}, nil
}

// AppendFrame appends the encoded header and payload of m to dst.
func AppendFrame(dst []byte, m Message) []byte {
	var b [HeaderSize]byte
	Header{Type: m.Type, Size: uint32(len(m.Payload))}.put(b[:])
	dst = append(dst, b[:]...)
	return append(dst, m.Payload...)
}

// FrameSize is the number of bytes m occupies on the wire.
func FrameSize(m Message) int {
	return HeaderSize + len(m.Payload)
}
