package message

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrInvalidType  = errors.New("invalid message type")
	ErrBodyTooLarge = errors.New("message body too large")
)

// Decoder rebuilds frames from a byte stream that may be cut anywhere.
// It keeps one cursor per header field and one for the body, so a frame
// can span any number of Feed calls and one Feed can carry many frames.
//
// A Decoder is bound to a single connection and is not safe for concurrent
// use.
type Decoder struct {
	typeBuf [2]byte
	typePos int
	sizeBuf [4]byte
	sizePos int

	msgType Type
	body    []byte
	bodyPos int

	err error
}

// Feed consumes p and calls emit for every frame completed by it. After a
// protocol violation Feed stops parsing and keeps returning the same error;
// closing the connection is left to the caller.
func (d *Decoder) Feed(p []byte, emit func(Message)) error {
	if d.err != nil {
		return d.err
	}

	for len(p) > 0 {
		if d.typePos < len(d.typeBuf) {
			n := copy(d.typeBuf[d.typePos:], p)
			d.typePos += n
			p = p[n:]
			if d.typePos < len(d.typeBuf) {
				return nil
			}

			d.msgType = Type(binary.LittleEndian.Uint16(d.typeBuf[:]))
			if !d.msgType.OnWire() {
				d.err = fmt.Errorf("%w: %d", ErrInvalidType, d.msgType)
				return d.err
			}
		}

		if d.sizePos < len(d.sizeBuf) {
			n := copy(d.sizeBuf[d.sizePos:], p)
			d.sizePos += n
			p = p[n:]
			if d.sizePos < len(d.sizeBuf) {
				return nil
			}

			size := binary.LittleEndian.Uint32(d.sizeBuf[:])
			if size > MaxBodyLength {
				d.err = fmt.Errorf("%w: %d", ErrBodyTooLarge, size)
				return d.err
			}
			d.body = make([]byte, size)
			d.bodyPos = 0
		}

		if d.bodyPos < len(d.body) {
			n := copy(d.body[d.bodyPos:], p)
			d.bodyPos += n
			p = p[n:]
			if d.bodyPos < len(d.body) {
				return nil
			}
		}

		m := Message{Type: d.msgType, Payload: d.body}
		d.next()
		emit(m)
	}
	return nil
}

// Reset drops any partially read frame and clears a previous error.
func (d *Decoder) Reset() {
	d.next()
	d.typeBuf = [2]byte{}
	d.sizeBuf = [4]byte{}
	d.err = nil
}

func (d *Decoder) next() {
	d.typePos = 0
	d.sizePos = 0
	d.msgType = 0
	d.body = nil
	d.bodyPos = 0
}
