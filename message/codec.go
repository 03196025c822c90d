package message

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

var ErrShortBody = errors.New("message body too short")

// Strings travel as fixed-width UTF-16LE buffers, NUL terminated and zero
// padded, the same as the game client's marshaller expects.
var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// writer appends fixed-layout little-endian fields.
type writer struct {
	b []byte
}

func (w *writer) u8(v uint8) { w.b = append(w.b, v) }

func (w *writer) i16(v int16) { w.b = binary.LittleEndian.AppendUint16(w.b, uint16(v)) }

func (w *writer) i32(v int32) { w.b = binary.LittleEndian.AppendUint32(w.b, uint32(v)) }

func (w *writer) u32(v uint32) { w.b = binary.LittleEndian.AppendUint32(w.b, v) }

func (w *writer) i64(v int64) { w.b = binary.LittleEndian.AppendUint64(w.b, uint64(v)) }

// boolean is a 4 byte BOOL.
func (w *writer) boolean(v bool) {
	if v {
		w.i32(1)
	} else {
		w.i32(0)
	}
}

func (w *writer) bytes(v []byte, n int) {
	start := len(w.b)
	w.b = append(w.b, make([]byte, n)...)
	copy(w.b[start:], v)
}

// str writes s into a buffer of n UTF-16 code units. At most n-1 units are
// kept so the terminator always fits.
func (w *writer) str(s string, n int) {
	enc, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		enc = nil
	}
	limit := (n - 1) * 2
	if len(enc) > limit {
		enc = enc[:limit]
		// Don't leave half a surrogate pair behind.
		if hi := binary.LittleEndian.Uint16(enc[limit-2:]); hi >= 0xD800 && hi < 0xDC00 {
			enc = enc[:limit-2]
		}
	}
	w.bytes(enc, n*2)
}

// guid writes id using the .NET in-memory layout, where the first three
// groups are little-endian.
func (w *writer) guid(id uuid.UUID) {
	var b [16]byte
	copy(b[:], id[:])
	swapGUID(b[:])
	w.b = append(w.b, b[:]...)
}

// empty is the encoding of a record without fields.
func (w *writer) empty() { w.u8(0) }

// reader consumes fixed-layout little-endian fields. The first short read
// is remembered and reported by err.
type reader struct {
	b   []byte
	off int
	bad bool
}

func (r *reader) take(n int) []byte {
	if r.bad || len(r.b)-r.off < n {
		r.bad = true
		return make([]byte, n)
	}
	v := r.b[r.off : r.off+n]
	r.off += n
	return v
}

func (r *reader) u8() uint8 { return r.take(1)[0] }

func (r *reader) i16() int16 { return int16(binary.LittleEndian.Uint16(r.take(2))) }

func (r *reader) i32() int32 { return int32(binary.LittleEndian.Uint32(r.take(4))) }

func (r *reader) u32() uint32 { return binary.LittleEndian.Uint32(r.take(4)) }

func (r *reader) i64() int64 { return int64(binary.LittleEndian.Uint64(r.take(8))) }

func (r *reader) boolean() bool { return r.i32() != 0 }

func (r *reader) bytes(n int) []byte {
	v := make([]byte, n)
	copy(v, r.take(n))
	return v
}

func (r *reader) str(n int) string {
	raw := r.take(n * 2)
	end := len(raw)
	for i := 0; i+1 < len(raw); i += 2 {
		if raw[i] == 0 && raw[i+1] == 0 {
			end = i
			break
		}
	}
	s, err := utf16le.NewDecoder().Bytes(raw[:end])
	if err != nil {
		return ""
	}
	return string(s)
}

func (r *reader) guid() uuid.UUID {
	var id uuid.UUID
	copy(id[:], r.take(16))
	swapGUID(id[:])
	return id
}

func (r *reader) err(what string) error {
	if r.bad {
		return fmt.Errorf("%w: %s needs more than %d bytes", ErrShortBody, what, len(r.b))
	}
	return nil
}

func swapGUID(b []byte) {
	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	b[4], b[5] = b[5], b[4]
	b[6], b[7] = b[7], b[6]
}

// NameLength returns the number of UTF-16 code units in s, which is how the
// client measures names.
func NameLength(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
