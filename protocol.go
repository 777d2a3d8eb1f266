package main

import (
	"fmt"
	"strings"
)

// FunctionCode Modbus 功能碼
type FunctionCode uint8

// Modbus 功能碼
const (
	FuncCodeReadCoils                      FunctionCode = 0x01
	FuncCodeReadDiscreteInputs             FunctionCode = 0x02
	FuncCodeReadHoldingRegisters           FunctionCode = 0x03
	FuncCodeReadInputRegisters             FunctionCode = 0x04
	FuncCodeWriteSingleCoil                FunctionCode = 0x05
	FuncCodeWriteSingleRegister            FunctionCode = 0x06
	FuncCodeReadExceptionStatus            FunctionCode = 0x07
	FuncCodeDiagnostics                    FunctionCode = 0x08
	FuncCodeGetCommEventCounter            FunctionCode = 0x0B
	FuncCodeGetCommEventLog                FunctionCode = 0x0C
	FuncCodeWriteMultipleCoils             FunctionCode = 0x0F
	FuncCodeWriteMultipleRegisters         FunctionCode = 0x10
	FuncCodeReportServerID                 FunctionCode = 0x11
	FuncCodeReadFileRecord                 FunctionCode = 0x14
	FuncCodeWriteFileRecord                FunctionCode = 0x15
	FuncCodeMaskWriteRegister              FunctionCode = 0x16
	FuncCodeReadWriteMultipleRegisters     FunctionCode = 0x17
	FuncCodeReadFIFOQueue                  FunctionCode = 0x18
	FuncCodeEncapsulatedInterfaceTransport FunctionCode = 0x2B

	// 例外回應旗標
	FuncCodeExceptionFlag FunctionCode = 0x80
)

// IsException 判斷功能碼是否帶有例外旗標
func (fc FunctionCode) IsException() bool {
	return fc&FuncCodeExceptionFlag != 0
}

func (fc FunctionCode) String() string {
	switch fc &^ FuncCodeExceptionFlag {
	case FuncCodeReadCoils:
		return "ReadCoils"
	case FuncCodeReadDiscreteInputs:
		return "ReadDiscreteInputs"
	case FuncCodeReadHoldingRegisters:
		return "ReadHoldingRegisters"
	case FuncCodeReadInputRegisters:
		return "ReadInputRegisters"
	case FuncCodeWriteSingleCoil:
		return "WriteSingleCoil"
	case FuncCodeWriteSingleRegister:
		return "WriteSingleRegister"
	case FuncCodeReadExceptionStatus:
		return "ReadExceptionStatus"
	case FuncCodeDiagnostics:
		return "Diagnostics"
	case FuncCodeGetCommEventCounter:
		return "GetCommEventCounter"
	case FuncCodeGetCommEventLog:
		return "GetCommEventLog"
	case FuncCodeWriteMultipleCoils:
		return "WriteMultipleCoils"
	case FuncCodeWriteMultipleRegisters:
		return "WriteMultipleRegisters"
	case FuncCodeReportServerID:
		return "ReportServerId"
	case FuncCodeReadFileRecord:
		return "ReadFileRecord"
	case FuncCodeWriteFileRecord:
		return "WriteFileRecord"
	case FuncCodeMaskWriteRegister:
		return "MaskWriteRegister"
	case FuncCodeReadWriteMultipleRegisters:
		return "ReadWriteMultipleRegisters"
	case FuncCodeReadFIFOQueue:
		return "ReadFifoQueue"
	case FuncCodeEncapsulatedInterfaceTransport:
		return "EncapsulatedInterfaceTransport"
	default:
		return "Custom"
	}
}

// ExceptionCode Modbus 異常碼
type ExceptionCode uint8

// Modbus 異常碼
const (
	ExceptionCodeIllegalFunction         ExceptionCode = 0x01
	ExceptionCodeIllegalDataAddress      ExceptionCode = 0x02
	ExceptionCodeIllegalDataValue        ExceptionCode = 0x03
	ExceptionCodeSlaveDeviceFailure      ExceptionCode = 0x04
	ExceptionCodeAcknowledge             ExceptionCode = 0x05
	ExceptionCodeSlaveDeviceBusy         ExceptionCode = 0x06
	ExceptionCodeMemoryParityError       ExceptionCode = 0x08
	ExceptionCodeGatewayPathUnavailable  ExceptionCode = 0x0A
	ExceptionCodeGatewayTargetNoResponse ExceptionCode = 0x0B
)

func (ec ExceptionCode) String() string {
	switch ec {
	case ExceptionCodeIllegalFunction:
		return "IllegalFunction"
	case ExceptionCodeIllegalDataAddress:
		return "IllegalDataAddress"
	case ExceptionCodeIllegalDataValue:
		return "IllegalDataValue"
	case ExceptionCodeSlaveDeviceFailure:
		return "SlaveDeviceFailure"
	case ExceptionCodeAcknowledge:
		return "Acknowledge"
	case ExceptionCodeSlaveDeviceBusy:
		return "SlaveDeviceBusy"
	case ExceptionCodeMemoryParityError:
		return "MemoryParityError"
	case ExceptionCodeGatewayPathUnavailable:
		return "GatewayPathUnavailable"
	case ExceptionCodeGatewayTargetNoResponse:
		return "GatewayTargetNoResponse"
	default:
		return "Unknown"
	}
}

const (
	// 線圈值
	CoilOn  uint16 = 0xFF00
	CoilOff uint16 = 0x0000

	// Modbus TCP 常數
	ModbusTCPDefaultPort = 502

	// 暫存器限制
	MaxCoilsPerRead          = 2000
	MaxRegistersPerRead      = 125
	MaxCoilsPerWrite         = 1968
	MaxRegistersPerWrite     = 123
	MaxRegistersPerReadWrite = 121
	MaxAddressSpace          = 0x10000

	// Report Server ID 執行指示
	RunIndicatorOn = 0xFF
)

// RegisterType 暫存器類型
type RegisterType int

const (
	RegisterTypeInvalid RegisterType = iota
	RegisterTypeDiscreteInput
	RegisterTypeCoil
	RegisterTypeInputRegister
	RegisterTypeHoldingRegister
)

// RegisterTypes 四種可設定的暫存器表
var RegisterTypes = []RegisterType{
	RegisterTypeDiscreteInput,
	RegisterTypeCoil,
	RegisterTypeInputRegister,
	RegisterTypeHoldingRegister,
}

func (rt RegisterType) String() string {
	switch rt {
	case RegisterTypeCoil:
		return "Coil"
	case RegisterTypeDiscreteInput:
		return "DiscreteInput"
	case RegisterTypeInputRegister:
		return "InputRegister"
	case RegisterTypeHoldingRegister:
		return "HoldingRegister"
	default:
		return "Invalid"
	}
}

// MarshalText 以名稱輸出 (JSON/YAML 快照使用)
func (rt RegisterType) MarshalText() ([]byte, error) {
	return []byte(rt.String()), nil
}

// UnmarshalText 由名稱解析
func (rt *RegisterType) UnmarshalText(text []byte) error {
	parsed := ParseRegisterType(string(text))
	if parsed == RegisterTypeInvalid && !strings.EqualFold(string(text), "invalid") {
		return fmt.Errorf("未知的暫存器類型: %s", text)
	}
	*rt = parsed
	return nil
}

// IsBit 線圈與離散輸入只使用最低位元
func (rt RegisterType) IsBit() bool {
	return rt == RegisterTypeCoil || rt == RegisterTypeDiscreteInput
}

// ParseRegisterType 解析暫存器類型 (設定檔與 CLI 使用)
func ParseRegisterType(s string) RegisterType {
	switch strings.ToLower(strings.ReplaceAll(s, "_", "")) {
	case "coil", "coils":
		return RegisterTypeCoil
	case "discreteinput", "discreteinputs", "discrete":
		return RegisterTypeDiscreteInput
	case "inputregister", "inputregisters", "input":
		return RegisterTypeInputRegister
	case "holdingregister", "holdingregisters", "holding":
		return RegisterTypeHoldingRegister
	default:
		return RegisterTypeInvalid
	}
}

// DataType 資料類型 (用於具名點位)
type DataType int

const (
	DataTypeUint16 DataType = iota
	DataTypeInt16
	DataTypeUint32
	DataTypeInt32
	DataTypeFloat32
)

func (dt DataType) String() string {
	switch dt {
	case DataTypeUint16:
		return "uint16"
	case DataTypeInt16:
		return "int16"
	case DataTypeUint32:
		return "uint32"
	case DataTypeInt32:
		return "int32"
	case DataTypeFloat32:
		return "float32"
	default:
		return "unknown"
	}
}

// ParseDataType 解析資料類型，未知類型回傳 false
func ParseDataType(s string) (DataType, bool) {
	switch strings.ToLower(s) {
	case "", "uint16":
		return DataTypeUint16, true
	case "int16":
		return DataTypeInt16, true
	case "uint32":
		return DataTypeUint32, true
	case "int32":
		return DataTypeInt32, true
	case "float32":
		return DataTypeFloat32, true
	default:
		return DataTypeUint16, false
	}
}

// RegisterCount 返回該資料類型佔用的暫存器數量
func (dt DataType) RegisterCount() int {
	switch dt {
	case DataTypeUint32, DataTypeInt32, DataTypeFloat32:
		return 2
	default:
		return 1
	}
}
