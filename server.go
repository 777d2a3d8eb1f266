package main

import (
	"encoding/binary"

	"go.uber.org/zap"
)

// DataWritten 用戶端寫入通知：寫入的表、起始位址與連續欄位數
type DataWritten struct {
	Table   RegisterType
	Address int
	Size    int
}

// DataWrittenFunc 接收寫入通知的回呼
type DataWrittenFunc func(DataWritten)

// CustomHandler 處理沒有專屬處理器的功能碼
type CustomHandler func(req PDU) PDU

// DefaultCustomHandler 預設以 IllegalFunction 拒絕
func DefaultCustomHandler(req PDU) PDU {
	return NewExceptionResponse(req.Function, ExceptionCodeIllegalFunction)
}

// Server Modbus 請求處理引擎
//
// Server 獨佔一份 RegisterMap，不做內部同步；同一時間只能有一個呼叫進入。
type Server struct {
	registers *RegisterMap
	slaveID   int
	custom    CustomHandler
	onWritten DataWrittenFunc
	logger    *zap.Logger
}

// ServerOption Server 配置選項
type ServerOption func(*Server)

// WithSlaveID 設定 Slave ID
func WithSlaveID(id int) ServerOption {
	return func(s *Server) {
		s.slaveID = id
	}
}

// WithCustomHandler 設定自訂功能碼處理器
func WithCustomHandler(h CustomHandler) ServerOption {
	return func(s *Server) {
		s.custom = h
	}
}

// WithDataWritten 設定寫入通知回呼
func WithDataWritten(fn DataWrittenFunc) ServerOption {
	return func(s *Server) {
		s.onWritten = fn
	}
}

// WithServerLogger 設定日誌
func WithServerLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer 建立新的 Server，四張表皆未設定
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		registers: NewRegisterMap(),
		slaveID:   1,
		custom:    DefaultCustomHandler,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.custom == nil {
		s.custom = DefaultCustomHandler
	}

	return s
}

// SetMap 設定暫存器映射，所有值初始化為零，先前的值全部捨棄
func (s *Server) SetMap(specs ...TableSpec) error {
	if err := s.registers.SetMap(specs...); err != nil {
		return err
	}

	for _, spec := range specs {
		s.logger.Info("設定暫存器表",
			zap.Stringer("table", spec.Type),
			zap.Int("start", spec.StartAddress),
			zap.Int("count", spec.ValueCount),
		)
	}
	return nil
}

// Map 取得目前的暫存器表配置
func (s *Server) Map() []TableSpec {
	return s.registers.Specs()
}

// Cell 讀取單一欄位
func (s *Server) Cell(rt RegisterType, address int) (uint16, error) {
	return s.registers.ReadCell(rt, address)
}

// SetCell 寫入單一欄位
func (s *Server) SetCell(rt RegisterType, address int, value uint16) error {
	return s.registers.WriteCell(rt, address, value)
}

// Range 讀取範圍或整張表
func (s *Server) Range(rt RegisterType, span Span) (RegisterTable, error) {
	return s.registers.ReadRange(rt, span)
}

// SetRange 將 table 的值寫入對應範圍
func (s *Server) SetRange(table RegisterTable) error {
	return s.registers.WriteRange(table.Type, table.StartAddress, table.Values)
}

// SlaveID 取得 Slave ID
func (s *Server) SlaveID() int {
	return s.slaveID
}

// SetSlaveID 設定 Slave ID
func (s *Server) SetSlaveID(id int) {
	s.slaveID = id
}

// SetCustomHandler 取代預設的自訂功能碼處理器，nil 表示恢復預設
func (s *Server) SetCustomHandler(h CustomHandler) {
	if h == nil {
		h = DefaultCustomHandler
	}
	s.custom = h
}

// ProcessRequest 處理一個請求並回傳回應 (一般或例外)
//
// 用戶端寫入成功後會呼叫寫入通知回呼。
func (s *Server) ProcessRequest(req PDU) PDU {
	resp, written := s.processRequest(req)
	if written != nil && s.onWritten != nil {
		s.onWritten(*written)
	}
	return resp
}

// processRequest 依功能碼分派處理器
func (s *Server) processRequest(req PDU) (PDU, *DataWritten) {
	var (
		resp    PDU
		written *DataWritten
		err     error
	)

	switch req.Function {
	case FuncCodeReadCoils:
		resp, err = s.handleReadBits(req, RegisterTypeCoil)
	case FuncCodeReadDiscreteInputs:
		resp, err = s.handleReadBits(req, RegisterTypeDiscreteInput)
	case FuncCodeReadHoldingRegisters:
		resp, err = s.handleReadRegisters(req, RegisterTypeHoldingRegister)
	case FuncCodeReadInputRegisters:
		resp, err = s.handleReadRegisters(req, RegisterTypeInputRegister)
	case FuncCodeWriteSingleCoil:
		resp, written, err = s.handleWriteSingleCoil(req)
	case FuncCodeWriteSingleRegister:
		resp, written, err = s.handleWriteSingleRegister(req)
	case FuncCodeWriteMultipleCoils:
		resp, written, err = s.handleWriteMultipleCoils(req)
	case FuncCodeWriteMultipleRegisters:
		resp, written, err = s.handleWriteMultipleRegisters(req)
	case FuncCodeReportServerID:
		resp, err = s.handleReportServerID(req)
	case FuncCodeMaskWriteRegister:
		resp, written, err = s.handleMaskWriteRegister(req)
	case FuncCodeReadWriteMultipleRegisters:
		resp, written, err = s.handleReadWriteMultipleRegisters(req)
	default:
		return s.custom(req), nil
	}

	if err != nil {
		code := exceptionFor(err)
		fields := []zap.Field{
			zap.Uint8("function", uint8(req.Function)),
			zap.Stringer("exception", code),
			zap.Error(err),
		}
		if len(req.Data) >= 2 {
			fields = append(fields, zap.Uint16("address", binary.BigEndian.Uint16(req.Data)))
		}
		s.logger.Debug("拒絕請求", fields...)
		return NewExceptionResponse(req.Function, code), nil
	}

	return resp, written
}
