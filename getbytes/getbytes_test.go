package getbytes

import (
	"encoding/hex"
	"testing"
)

func TestFromSlice(t *testing.T) {
	tests := []struct {
		name   string
		have   []byte
		expect string
	}{
		{"uint8", FromSlice([]uint8{0xAB, 0xCD, 0xEF, 0x01}), "abcdef01"},
		{"uint16", FromSlice([]uint16{0xABCD, 0xEF01}), "cdab01ef"},
		{"int32", FromSlice([]int32{1, 2}), "0100000002000000"},
		{"uint64", FromSlice([]uint64{0xABCDEF0123456789}), "8967452301efcdab"},
		{"float32", FromSliceFloat32([]float32{1, 2}), "0000803f00000040"},
		{"float64", FromSlice([]float64{2}), "0000000000000040"},
		{"empty", FromSliceFloat32(nil), ""},
	}
	for _, tt := range tests {
		if encoded := hex.EncodeToString(tt.have); encoded != tt.expect {
			t.Errorf("%s: want %v, have %v", tt.name, tt.expect, encoded)
		}
	}
}
