package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePDU(t *testing.T) {
	raw := []byte{0x03, 0x00, 0x10, 0x00, 0x02}

	pdu, err := DecodePDU(raw)
	require.NoError(t, err)
	assert.Equal(t, FuncCodeReadHoldingRegisters, pdu.Function)
	assert.Equal(t, []byte{0x00, 0x10, 0x00, 0x02}, pdu.Data)
	assert.Equal(t, raw, pdu.Bytes())

	// 解析結果不共用輸入
	raw[1] = 0xFF
	assert.Equal(t, byte(0x00), pdu.Data[0])

	_, err = DecodePDU(nil)
	assert.Error(t, err)
}

func TestNewExceptionResponse(t *testing.T) {
	resp := NewExceptionResponse(FuncCodeWriteSingleCoil, ExceptionCodeIllegalDataValue)

	assert.True(t, resp.IsException())
	assert.Equal(t, FunctionCode(0x85), resp.Function)
	assert.Equal(t, ExceptionCodeIllegalDataValue, resp.ExceptionCode())
	assert.Equal(t, []byte{0x85, 0x03}, resp.Bytes())
	assert.Equal(t, "WriteSingleCoil exception IllegalDataValue", resp.String())
}

func TestPDU_ExceptionCodeOnNormalResponse(t *testing.T) {
	resp := NewPDU(FuncCodeReadCoils, 0x01, 0x01)
	assert.False(t, resp.IsException())
	assert.Equal(t, ExceptionCode(0), resp.ExceptionCode())
}

func TestPDU_DecodeWords(t *testing.T) {
	pdu := NewPDU(FuncCodeMaskWriteRegister, encodeWords(4, 0xF2, 0x25)...)

	words, err := pdu.decodeWords(3)
	require.NoError(t, err)
	assert.Equal(t, []uint16{4, 0xF2, 0x25}, words)

	_, err = pdu.decodeWords(4)
	assert.ErrorIs(t, err, ErrInvalidValueCount)
}

func TestFunctionCode_String(t *testing.T) {
	tests := []struct {
		fc   FunctionCode
		want string
	}{
		{FuncCodeReadCoils, "ReadCoils"},
		{FuncCodeReadCoils | FuncCodeExceptionFlag, "ReadCoils"},
		{FuncCodeReadWriteMultipleRegisters, "ReadWriteMultipleRegisters"},
		{0x41, "Custom"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fc.String())
		})
	}
}

func TestParseRegisterType(t *testing.T) {
	tests := []struct {
		input string
		want  RegisterType
	}{
		{"coil", RegisterTypeCoil},
		{"Coils", RegisterTypeCoil},
		{"discrete_inputs", RegisterTypeDiscreteInput},
		{"input", RegisterTypeInputRegister},
		{"HoldingRegister", RegisterTypeHoldingRegister},
		{"bogus", RegisterTypeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRegisterType(tt.input))
		})
	}
}

func TestRegisterType_Text(t *testing.T) {
	for _, rt := range RegisterTypes {
		text, err := rt.MarshalText()
		require.NoError(t, err)

		var parsed RegisterType
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, rt, parsed)
	}

	var rt RegisterType
	assert.Error(t, rt.UnmarshalText([]byte("bogus")))
}
