package message

import (
	"io"
)

// Write encodes b and writes the whole frame to w.
func Write(w io.Writer, b Body) error {
	return write(w, Encode(b))
}

func write(w io.Writer, m Message) error {
	h := Header{
		Type: m.Type,
		Size: uint32(len(m.Payload)),
	}
	if err := h.Write(w); err != nil {
		return err
	}

	if _, err := w.Write(m.Payload); err != nil {
		return err
	}

	return nil
}

// WriteMessage writes an already encoded message, e.g. one being relayed.
func WriteMessage(w io.Writer, m Message) error {
	return write(w, m)
}
