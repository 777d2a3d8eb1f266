package main

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PDU Modbus 協定資料單元 (功能碼 + 資料)，不含傳輸層框架
type PDU struct {
	Function FunctionCode
	Data     []byte
}

// NewPDU 建立請求或一般回應
func NewPDU(fc FunctionCode, data ...byte) PDU {
	return PDU{Function: fc, Data: data}
}

// NewExceptionResponse 建立例外回應 (功能碼最高位元設為 1)
func NewExceptionResponse(fc FunctionCode, code ExceptionCode) PDU {
	return PDU{
		Function: fc | FuncCodeExceptionFlag,
		Data:     []byte{byte(code)},
	}
}

// DecodePDU 解析原始位元組
func DecodePDU(raw []byte) (PDU, error) {
	if len(raw) < 1 {
		return PDU{}, errors.New("PDU 長度為 0")
	}
	data := make([]byte, len(raw)-1)
	copy(data, raw[1:])
	return PDU{Function: FunctionCode(raw[0]), Data: data}, nil
}

// Bytes 編碼為原始位元組
func (p PDU) Bytes() []byte {
	raw := make([]byte, 1+len(p.Data))
	raw[0] = byte(p.Function)
	copy(raw[1:], p.Data)
	return raw
}

// IsException 是否為例外回應
func (p PDU) IsException() bool {
	return p.Function.IsException()
}

// ExceptionCode 取得例外碼，非例外回應回傳 0
func (p PDU) ExceptionCode() ExceptionCode {
	if !p.IsException() || len(p.Data) < 1 {
		return 0
	}
	return ExceptionCode(p.Data[0])
}

func (p PDU) String() string {
	if p.IsException() {
		return fmt.Sprintf("%s exception %s", p.Function, p.ExceptionCode())
	}
	return fmt.Sprintf("%s % X", p.Function, p.Data)
}

// decodeWords 從資料開頭解析 n 個 Big Endian 欄位
func (p PDU) decodeWords(n int) ([]uint16, error) {
	if len(p.Data) < n*2 {
		return nil, fmt.Errorf("%w: %s 資料長度 %d", ErrInvalidValueCount, p.Function, len(p.Data))
	}
	words := make([]uint16, n)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(p.Data[i*2:])
	}
	return words, nil
}

// decodeAddressQuantity 解析 (位址, 數量/值) 兩個欄位
func (p PDU) decodeAddressQuantity() (uint16, uint16, error) {
	words, err := p.decodeWords(2)
	if err != nil {
		return 0, 0, err
	}
	return words[0], words[1], nil
}

// encodeWords 以 Big Endian 編碼多個欄位
func encodeWords(words ...uint16) []byte {
	return RegistersToBytes(words)
}
