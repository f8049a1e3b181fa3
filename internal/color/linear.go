// Package color decodes sRGB-encoded texels into linear values.
//
// Images loaded from files are sRGB encoded. Float texture formats hold
// linear values, so texels are decoded through a 256-entry lookup table
// when a texture is converted to such a format.
package color

import (
	"encoding/binary"
	"math"
)

var toLinear [256]float32

func init() {
	for i := range toLinear {
		toLinear[i] = float32(decode(float64(i) / 255))
	}
}

// decode is the sRGB transfer function for s in [0, 1].
func decode(s float64) float64 {
	if s <= 0.04045 {
		return s / 12.92
	}
	return math.Pow((s+0.055)/1.055, 2.4)
}

// ToLinear returns the linear value of an sRGB-encoded byte.
func ToLinear(s uint8) float32 { return toLinear[s] }

// LinearRGBA32F decodes tightly packed RGBA8 sRGB texels into
// little-endian RGBA32F linear texels. Alpha is linear already and is only
// normalized.
func LinearRGBA32F(pix []byte) []byte {
	out := make([]byte, len(pix)*4)
	for i, v := range pix {
		f := toLinear[v]
		if i%4 == 3 {
			f = float32(v) / 255
		}
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}
