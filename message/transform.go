package message

import (
	"math"
)

// Transform is a compact position and orientation of a die or the cup.
//
// Position is three int16 fixed-point values with 12 fractional bits,
// covering [-8, 8]. Rotation is a smallest-three quaternion: the top two
// bits hold the index of the largest component, followed by three 10 bit
// fields (one sign bit, nine magnitude bits) for the other components in
// ascending index order. The largest component is rebuilt as positive.
type Transform struct {
	X, Y, Z  int16
	Rotation uint32
}

const (
	positionScale = 4096
	positionLimit = 8

	rotationMask = 1<<9 - 1
	sqrt1_2      = 0.707106781186547524401
)

func (t Transform) encode(w *writer) {
	w.i16(t.X)
	w.i16(t.Y)
	w.i16(t.Z)
	w.u32(t.Rotation)
}

func (t *Transform) decode(r *reader) {
	t.X = r.i16()
	t.Y = r.i16()
	t.Z = r.i16()
	t.Rotation = r.u32()
}

func (t *Transform) SetPosition(x, y, z float32) {
	t.X = quantizePosition(x)
	t.Y = quantizePosition(y)
	t.Z = quantizePosition(z)
}

func (t Transform) Position() (x, y, z float32) {
	return float32(t.X) / positionScale, float32(t.Y) / positionScale, float32(t.Z) / positionScale
}

// quantizePosition truncates toward zero. +8 itself saturates to the
// largest int16.
func quantizePosition(f float32) int16 {
	f = min(positionLimit, max(-positionLimit, f))
	v := int32(f * positionScale)
	if v > math.MaxInt16 {
		v = math.MaxInt16
	}
	return int16(v)
}

// SetRotation packs a normalized quaternion (x, y, z, w).
func (t *Transform) SetRotation(q [4]float32) {
	largest := 0
	for i := 1; i < 4; i++ {
		if abs32(q[i]) > abs32(q[largest]) {
			largest = i
		}
	}

	var negate uint32
	if q[largest] < 0 {
		negate = 1
	}

	packed := uint32(largest)
	for i := 0; i < 4; i++ {
		if i == largest {
			continue
		}
		var sign uint32
		if q[i] < 0 {
			sign = 1
		}
		sign ^= negate
		mag := uint32(rotationMask*(abs32(q[i])/sqrt1_2) + 0.5)
		packed = packed<<10 | sign<<9 | mag&rotationMask
	}
	t.Rotation = packed
}

// Quaternion unpacks the rotation as (x, y, z, w).
func (t Transform) Quaternion() [4]float32 {
	var q [4]float32
	comp := t.Rotation
	largest := int(comp >> 30)

	var sum float32
	for i := 3; i >= 0; i-- {
		if i == largest {
			continue
		}
		mag := comp & rotationMask
		negative := comp >> 9 & 1
		comp >>= 10
		q[i] = sqrt1_2 * float32(mag) / rotationMask
		if negative == 1 {
			q[i] = -q[i]
		}
		sum += q[i] * q[i]
	}
	q[largest] = float32(math.Sqrt(float64(max(0, 1-sum))))
	return q
}

func abs32(f float32) float32 {
	return float32(math.Abs(float64(f)))
}
