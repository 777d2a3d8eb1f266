package main

import (
	"errors"
	"fmt"
)

// 錯誤分類，全部在本地處理並轉為 Modbus 例外回應
var (
	ErrInvalidTable        = errors.New("無效的暫存器表")
	ErrAddressOutOfRange   = errors.New("位址超出範圍")
	ErrInvalidValueCount   = errors.New("無效的數量")
	ErrInvalidValue        = errors.New("無效的值")
	ErrUnsupportedFunction = errors.New("不支援的功能碼")
)

// ModbusError Modbus 異常錯誤
type ModbusError struct {
	Function FunctionCode
	Code     ExceptionCode
}

// NewModbusError 建立異常錯誤
func NewModbusError(fc FunctionCode, code ExceptionCode) *ModbusError {
	return &ModbusError{Function: fc, Code: code}
}

func (e *ModbusError) Error() string {
	var msg string
	switch e.Code {
	case ExceptionCodeIllegalFunction:
		msg = "非法功能碼"
	case ExceptionCodeIllegalDataAddress:
		msg = "非法資料位址"
	case ExceptionCodeIllegalDataValue:
		msg = "非法資料值"
	case ExceptionCodeSlaveDeviceFailure:
		msg = "從站設備故障"
	case ExceptionCodeAcknowledge:
		msg = "確認"
	case ExceptionCodeSlaveDeviceBusy:
		msg = "從站設備忙碌"
	default:
		msg = "未知錯誤"
	}
	return fmt.Sprintf("%s (功能碼 0x%02X, 異常碼 0x%02X)", msg, uint8(e.Function), uint8(e.Code))
}

// exceptionFor 將錯誤分類對應到 Modbus 異常碼
func exceptionFor(err error) ExceptionCode {
	var mbErr *ModbusError
	switch {
	case errors.As(err, &mbErr):
		return mbErr.Code
	case errors.Is(err, ErrUnsupportedFunction):
		return ExceptionCodeIllegalFunction
	case errors.Is(err, ErrInvalidTable), errors.Is(err, ErrAddressOutOfRange):
		return ExceptionCodeIllegalDataAddress
	case errors.Is(err, ErrInvalidValueCount), errors.Is(err, ErrInvalidValue):
		return ExceptionCodeIllegalDataValue
	default:
		return ExceptionCodeSlaveDeviceFailure
	}
}
