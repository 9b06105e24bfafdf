// Package getbytes views numeric slices as raw bytes without copying.
// The bytes are in host order, which is little-endian on every platform the bridge
// publishes from; subscribers decode sample frames as little-endian float32.
package getbytes

import (
	"unsafe"
)

// Number is any fixed-size numeric type that can be viewed as bytes.
type Number interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// FromSlice returns the bytes backing d. The result aliases d, so it must not be
// retained after d is modified.
func FromSlice[T Number](d []T) []byte {
	if len(d) == 0 {
		return []byte{}
	}
	outlength := uintptr(len(d)) * unsafe.Sizeof(d[0])
	return unsafe.Slice((*byte)(unsafe.Pointer(&d[0])), outlength)
}

// FromSliceFloat32 is FromSlice for sample vectors, the common case.
func FromSliceFloat32(d []float32) []byte {
	return FromSlice(d)
}
