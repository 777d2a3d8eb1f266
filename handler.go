package main

import (
	"fmt"
)

// checkQuantity 數量必須落在 [1, max]
func checkQuantity(fc FunctionCode, quantity uint16, max int) error {
	if quantity < 1 || int(quantity) > max {
		return fmt.Errorf("%w: %s 數量 %d 超出 1-%d", ErrInvalidValueCount, fc, quantity, max)
	}
	return nil
}

// checkContains 範圍必須完全落在表內
func (s *Server) checkContains(rt RegisterType, address, quantity int) error {
	if !s.registers.Contains(rt, address, quantity) {
		if _, err := s.registers.lookup(rt); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s %d-%d", ErrAddressOutOfRange, rt, address, address+quantity-1)
	}
	return nil
}

// handleReadBits 處理讀取線圈 (FC 01) 與讀取離散輸入 (FC 02)
func (s *Server) handleReadBits(req PDU, rt RegisterType) (PDU, error) {
	address, quantity, err := req.decodeAddressQuantity()
	if err != nil {
		return PDU{}, err
	}

	if err := checkQuantity(req.Function, quantity, MaxCoilsPerRead); err != nil {
		return PDU{}, err
	}
	if err := s.checkContains(rt, int(address), int(quantity)); err != nil {
		return PDU{}, err
	}

	bits, err := s.registers.ReadBits(rt, int(address), int(quantity))
	if err != nil {
		return PDU{}, err
	}

	packed := PackBits(bits)
	data := make([]byte, 0, 1+len(packed))
	data = append(data, byte(len(packed)))
	data = append(data, packed...)
	return NewPDU(req.Function, data...), nil
}

// handleReadRegisters 處理讀取保持暫存器 (FC 03) 與讀取輸入暫存器 (FC 04)
func (s *Server) handleReadRegisters(req PDU, rt RegisterType) (PDU, error) {
	address, quantity, err := req.decodeAddressQuantity()
	if err != nil {
		return PDU{}, err
	}

	if err := checkQuantity(req.Function, quantity, MaxRegistersPerRead); err != nil {
		return PDU{}, err
	}
	if err := s.checkContains(rt, int(address), int(quantity)); err != nil {
		return PDU{}, err
	}

	table, err := s.registers.ReadRange(rt, Range(int(address), int(quantity)))
	if err != nil {
		return PDU{}, err
	}

	data := make([]byte, 0, 1+2*len(table.Values))
	data = append(data, byte(2*len(table.Values)))
	data = append(data, RegistersToBytes(table.Values)...)
	return NewPDU(req.Function, data...), nil
}

// handleWriteSingleCoil 處理寫入單一線圈 (FC 05)
func (s *Server) handleWriteSingleCoil(req PDU) (PDU, *DataWritten, error) {
	address, value, err := req.decodeAddressQuantity()
	if err != nil {
		return PDU{}, nil, err
	}

	// 值只能是 ON/OFF，與位址是否有效無關
	if value != CoilOn && value != CoilOff {
		return PDU{}, nil, fmt.Errorf("%w: 線圈值 0x%04X", ErrInvalidValue, value)
	}
	if err := s.checkContains(RegisterTypeCoil, int(address), 1); err != nil {
		return PDU{}, nil, err
	}

	var cell uint16
	if value == CoilOn {
		cell = 1
	}
	if err := s.registers.WriteCell(RegisterTypeCoil, int(address), cell); err != nil {
		return PDU{}, nil, err
	}

	written := &DataWritten{Table: RegisterTypeCoil, Address: int(address), Size: 1}
	return NewPDU(req.Function, encodeWords(address, value)...), written, nil
}

// handleWriteSingleRegister 處理寫入單一暫存器 (FC 06)
func (s *Server) handleWriteSingleRegister(req PDU) (PDU, *DataWritten, error) {
	address, value, err := req.decodeAddressQuantity()
	if err != nil {
		return PDU{}, nil, err
	}

	if err := s.checkContains(RegisterTypeHoldingRegister, int(address), 1); err != nil {
		return PDU{}, nil, err
	}
	if err := s.registers.WriteCell(RegisterTypeHoldingRegister, int(address), value); err != nil {
		return PDU{}, nil, err
	}

	written := &DataWritten{Table: RegisterTypeHoldingRegister, Address: int(address), Size: 1}
	return NewPDU(req.Function, encodeWords(address, value)...), written, nil
}

// handleWriteMultipleCoils 處理寫入多個線圈 (FC 15)
func (s *Server) handleWriteMultipleCoils(req PDU) (PDU, *DataWritten, error) {
	address, quantity, err := req.decodeAddressQuantity()
	if err != nil {
		return PDU{}, nil, err
	}
	if len(req.Data) < 5 {
		return PDU{}, nil, fmt.Errorf("%w: 缺少位元組數", ErrInvalidValueCount)
	}
	byteCount := int(req.Data[4])
	payload := req.Data[5:]

	if err := checkQuantity(req.Function, quantity, MaxCoilsPerWrite); err != nil {
		return PDU{}, nil, err
	}
	if expected := BitByteCount(int(quantity)); byteCount != expected || len(payload) < byteCount {
		return PDU{}, nil, fmt.Errorf("%w: 位元組數 %d，預期 %d，實際資料 %d",
			ErrInvalidValueCount, byteCount, expected, len(payload))
	}
	if err := s.checkContains(RegisterTypeCoil, int(address), int(quantity)); err != nil {
		return PDU{}, nil, err
	}

	bits, err := UnpackBits(payload[:byteCount], int(quantity))
	if err != nil {
		return PDU{}, nil, err
	}
	if err := s.registers.WriteBits(RegisterTypeCoil, int(address), bits); err != nil {
		return PDU{}, nil, err
	}

	written := &DataWritten{Table: RegisterTypeCoil, Address: int(address), Size: int(quantity)}
	return NewPDU(req.Function, encodeWords(address, quantity)...), written, nil
}

// handleWriteMultipleRegisters 處理寫入多個暫存器 (FC 16)
func (s *Server) handleWriteMultipleRegisters(req PDU) (PDU, *DataWritten, error) {
	address, quantity, err := req.decodeAddressQuantity()
	if err != nil {
		return PDU{}, nil, err
	}
	if len(req.Data) < 5 {
		return PDU{}, nil, fmt.Errorf("%w: 缺少位元組數", ErrInvalidValueCount)
	}
	byteCount := int(req.Data[4])
	payload := req.Data[5:]

	if err := checkQuantity(req.Function, quantity, MaxRegistersPerWrite); err != nil {
		return PDU{}, nil, err
	}
	if expected := 2 * int(quantity); byteCount != expected || len(payload) < byteCount {
		return PDU{}, nil, fmt.Errorf("%w: 位元組數 %d，預期 %d，實際資料 %d",
			ErrInvalidValueCount, byteCount, expected, len(payload))
	}
	if err := s.checkContains(RegisterTypeHoldingRegister, int(address), int(quantity)); err != nil {
		return PDU{}, nil, err
	}

	values := BytesToRegisters(payload[:byteCount])
	if err := s.registers.WriteRange(RegisterTypeHoldingRegister, int(address), values); err != nil {
		return PDU{}, nil, err
	}

	written := &DataWritten{Table: RegisterTypeHoldingRegister, Address: int(address), Size: int(quantity)}
	return NewPDU(req.Function, encodeWords(address, quantity)...), written, nil
}

// handleReportServerID 處理回報 Server ID (FC 17)
func (s *Server) handleReportServerID(req PDU) (PDU, error) {
	return NewPDU(req.Function, 2, byte(s.slaveID), RunIndicatorOn), nil
}

// handleMaskWriteRegister 處理遮罩寫入暫存器 (FC 22)
//
// 結果 = (目前值 AND andMask) OR (orMask AND NOT andMask)
func (s *Server) handleMaskWriteRegister(req PDU) (PDU, *DataWritten, error) {
	words, err := req.decodeWords(3)
	if err != nil {
		return PDU{}, nil, err
	}
	address, andMask, orMask := words[0], words[1], words[2]

	if err := s.checkContains(RegisterTypeHoldingRegister, int(address), 1); err != nil {
		return PDU{}, nil, err
	}

	current, err := s.registers.ReadCell(RegisterTypeHoldingRegister, int(address))
	if err != nil {
		return PDU{}, nil, err
	}
	value := (current & andMask) | (orMask &^ andMask)
	if err := s.registers.WriteCell(RegisterTypeHoldingRegister, int(address), value); err != nil {
		return PDU{}, nil, err
	}

	written := &DataWritten{Table: RegisterTypeHoldingRegister, Address: int(address), Size: 1}
	return NewPDU(req.Function, encodeWords(address, andMask, orMask)...), written, nil
}

// handleReadWriteMultipleRegisters 處理讀寫多個暫存器 (FC 23)
//
// 先寫後讀；兩個範圍都通過驗證後才會寫入。
func (s *Server) handleReadWriteMultipleRegisters(req PDU) (PDU, *DataWritten, error) {
	words, err := req.decodeWords(4)
	if err != nil {
		return PDU{}, nil, err
	}
	readAddress, readQuantity, writeAddress, writeQuantity := words[0], words[1], words[2], words[3]
	if len(req.Data) < 9 {
		return PDU{}, nil, fmt.Errorf("%w: 缺少位元組數", ErrInvalidValueCount)
	}
	byteCount := int(req.Data[8])
	payload := req.Data[9:]

	if err := checkQuantity(req.Function, readQuantity, MaxRegistersPerRead); err != nil {
		return PDU{}, nil, err
	}
	if err := checkQuantity(req.Function, writeQuantity, MaxRegistersPerReadWrite); err != nil {
		return PDU{}, nil, err
	}
	if expected := 2 * int(writeQuantity); byteCount != expected || len(payload) < byteCount {
		return PDU{}, nil, fmt.Errorf("%w: 位元組數 %d，預期 %d，實際資料 %d",
			ErrInvalidValueCount, byteCount, expected, len(payload))
	}
	if err := s.checkContains(RegisterTypeHoldingRegister, int(writeAddress), int(writeQuantity)); err != nil {
		return PDU{}, nil, err
	}
	if err := s.checkContains(RegisterTypeHoldingRegister, int(readAddress), int(readQuantity)); err != nil {
		return PDU{}, nil, err
	}

	values := BytesToRegisters(payload[:byteCount])
	if err := s.registers.WriteRange(RegisterTypeHoldingRegister, int(writeAddress), values); err != nil {
		return PDU{}, nil, err
	}
	table, err := s.registers.ReadRange(RegisterTypeHoldingRegister, Range(int(readAddress), int(readQuantity)))
	if err != nil {
		return PDU{}, nil, err
	}

	data := make([]byte, 0, 1+2*len(table.Values))
	data = append(data, byte(2*len(table.Values)))
	data = append(data, RegistersToBytes(table.Values)...)

	written := &DataWritten{Table: RegisterTypeHoldingRegister, Address: int(writeAddress), Size: int(writeQuantity)}
	return NewPDU(req.Function, data...), written, nil
}
