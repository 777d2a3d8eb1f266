package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitByteCount(t *testing.T) {
	tests := []struct {
		bits int
		want int
	}{
		{0, 0},
		{1, 1},
		{8, 1},
		{9, 2},
		{10, 2},
		{2000, 250},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BitByteCount(tt.bits), "bits=%d", tt.bits)
	}
}

func TestPackBits(t *testing.T) {
	tests := []struct {
		name string
		bits []bool
		want []byte
	}{
		{"empty", nil, []byte{}},
		{"lsb first", []bool{true, false, true}, []byte{0x05}},
		{"full byte", []bool{true, true, true, true, true, true, true, true}, []byte{0xFF}},
		{
			name: "padding is zero",
			bits: []bool{false, false, false, false, false, true, false, false, false, true},
			want: []byte{0x20, 0x02},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PackBits(tt.bits))
		})
	}
}

func TestUnpackBits(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		count int
		want  []bool
	}{
		{
			// 最後一個位元組的高位是填充位元
			name:  "trailing padding ignored",
			data:  []byte{0x03, 0xC0},
			count: 10,
			want:  []bool{true, true, false, false, false, false, false, false, false, false},
		},
		{
			name:  "second byte low bits",
			data:  []byte{0x03, 0x03},
			count: 10,
			want:  []bool{true, true, false, false, false, false, false, false, true, true},
		},
		{
			name:  "single bit",
			data:  []byte{0x01},
			count: 1,
			want:  []bool{true},
		},
		{
			name:  "exact byte",
			data:  []byte{0x81},
			count: 8,
			want:  []bool{true, false, false, false, false, false, false, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bits, err := UnpackBits(tt.data, tt.count)
			require.NoError(t, err)
			assert.Equal(t, tt.want, bits)
		})
	}
}

func TestUnpackBits_ShortPayload(t *testing.T) {
	_, err := UnpackBits([]byte{0xFF}, 9)
	assert.ErrorIs(t, err, ErrInvalidValueCount)
}

func TestPackUnpack_Agree(t *testing.T) {
	bits := []bool{true, false, true, true, false, false, true, false, true, true, false, true, false}

	unpacked, err := UnpackBits(PackBits(bits), len(bits))
	require.NoError(t, err)
	assert.Equal(t, bits, unpacked)
}

func TestRegistersToBytes(t *testing.T) {
	values := []uint16{0x1234, 0xABCD}
	data := RegistersToBytes(values)

	assert.Equal(t, []byte{0x12, 0x34, 0xAB, 0xCD}, data)
	assert.Equal(t, values, BytesToRegisters(data))
}
