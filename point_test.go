package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoint_EncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		value float64
		words []uint16
	}{
		{
			name:  "uint16 scaled",
			point: Point{Name: "Voltage", Table: RegisterTypeInputRegister, DataType: DataTypeUint16, Scale: 10},
			value: 220.5,
			words: []uint16{2205},
		},
		{
			name:  "int16 negative",
			point: Point{Name: "Temp", Table: RegisterTypeHoldingRegister, DataType: DataTypeInt16, Scale: 10},
			value: -12.5,
			words: []uint16{0xFF83},
		},
		{
			name:  "uint32 high word first",
			point: Point{Name: "Energy", Table: RegisterTypeInputRegister, DataType: DataTypeUint32},
			value: 123456,
			words: []uint16{0x0001, 0xE240},
		},
		{
			name:  "int32 negative",
			point: Point{Name: "Power", Table: RegisterTypeInputRegister, DataType: DataTypeInt32},
			value: -2,
			words: []uint16{0xFFFF, 0xFFFE},
		},
		{
			name:  "float32 ignores scale",
			point: Point{Name: "PF", Table: RegisterTypeInputRegister, DataType: DataTypeFloat32, Scale: 100},
			value: 1.5,
			words: []uint16{0x3FC0, 0x0000},
		},
		{
			name:  "coil",
			point: Point{Name: "Breaker", Table: RegisterTypeCoil},
			value: 1,
			words: []uint16{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.point.Validate())

			words, err := tt.point.Encode(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.words, words)

			decoded, err := tt.point.Decode(words)
			require.NoError(t, err)
			assert.InDelta(t, tt.value, decoded, 0.001)
		})
	}
}

func TestPoint_EncodeOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		value float64
	}{
		{"uint16 negative", Point{Name: "Voltage", DataType: DataTypeUint16, Scale: 10}, -1},
		{"uint16 overflow", Point{Name: "Voltage", DataType: DataTypeUint16, Scale: 10}, 6553.6},
		{"int16 underflow", Point{Name: "Temp", DataType: DataTypeInt16, Scale: 10}, -3276.9},
		{"uint32 negative", Point{Name: "Energy", DataType: DataTypeUint32}, -0.5},
		{"int32 overflow", Point{Name: "Power", DataType: DataTypeInt32}, 1 << 31},
		{"nan", Point{Name: "PF", DataType: DataTypeFloat32}, math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.point.Table = RegisterTypeHoldingRegister
			_, err := tt.point.Encode(tt.value)
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}

	// 邊界值可寫入
	words, err := Point{Name: "Voltage", Table: RegisterTypeHoldingRegister, DataType: DataTypeUint16}.Encode(65535)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0xFFFF}, words)
}

func TestPoint_Validate(t *testing.T) {
	tests := []struct {
		name  string
		point Point
	}{
		{"empty name", Point{Table: RegisterTypeHoldingRegister}},
		{"invalid table", Point{Name: "x"}},
		{"negative address", Point{Name: "x", Table: RegisterTypeHoldingRegister, Address: -1}},
		{"uint32 past address space", Point{Name: "x", Table: RegisterTypeHoldingRegister, Address: 0xFFFF, DataType: DataTypeUint32}},
		{"bit table wide type", Point{Name: "x", Table: RegisterTypeCoil, DataType: DataTypeFloat32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.point.Validate())
		})
	}
}

func TestPoint_DecodeShort(t *testing.T) {
	p := Point{Name: "Energy", Table: RegisterTypeInputRegister, DataType: DataTypeUint32}
	_, err := p.Decode([]uint16{1})
	assert.ErrorIs(t, err, ErrInvalidValueCount)
}

func TestPointSet(t *testing.T) {
	ps := NewPointSet()

	require.NoError(t, ps.Define(Point{Name: "b", Table: RegisterTypeHoldingRegister}))
	require.NoError(t, ps.Define(Point{Name: "a", Table: RegisterTypeCoil}))
	assert.Error(t, ps.Define(Point{Name: "a", Table: RegisterTypeCoil}), "重複定義")

	p, ok := ps.Get("b")
	require.True(t, ok)
	assert.Equal(t, RegisterTypeHoldingRegister, p.Table)

	_, ok = ps.Get("missing")
	assert.False(t, ok)

	list := ps.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "b", list[1].Name)
}

func TestServer_Points(t *testing.T) {
	s := newTestServer(t)
	p := Point{Name: "Energy", Table: RegisterTypeInputRegister, Address: 8, DataType: DataTypeUint32}

	require.NoError(t, s.WritePoint(p, 70000))

	v, err := s.ReadPoint(p)
	require.NoError(t, err)
	assert.InDelta(t, 70000, v, 0.5)

	// 點位寫入等同主程式寫入，用戶端讀取看得到
	resp := s.ProcessRequest(request(FuncCodeReadInputRegisters, 8, 2))
	require.False(t, resp.IsException())
	assert.Equal(t, append([]byte{4}, encodeWords(0x0001, 0x1170)...), resp.Data)

	// 超出型別範圍時不寫入
	assert.ErrorIs(t, s.WritePoint(p, -1), ErrInvalidValue)
	v, err = s.ReadPoint(p)
	require.NoError(t, err)
	assert.InDelta(t, 70000, v, 0.5)

	// 超出表尾
	p.Address = 9
	assert.ErrorIs(t, s.WritePoint(p, 1), ErrAddressOutOfRange)
}
