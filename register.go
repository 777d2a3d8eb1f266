package main

import (
	"fmt"
)

// TableSpec 暫存器表配置 (類型、起始位址、數量)
type TableSpec struct {
	Type         RegisterType `json:"type" yaml:"type"`
	StartAddress int          `json:"start_address" yaml:"start_address"`
	ValueCount   int          `json:"value_count" yaml:"value_count"`
}

// RegisterTable 單一暫存器表
//
// 所有表的元素型別一致為 uint16；線圈與離散輸入只有最低位元有意義。
type RegisterTable struct {
	Type         RegisterType `json:"type" yaml:"type"`
	StartAddress int          `json:"start_address" yaml:"start_address"`
	Values       []uint16     `json:"values" yaml:"values,flow"`
}

// NewRegisterTable 建立以零初始化的暫存器表
func NewRegisterTable(rt RegisterType, startAddress, valueCount int) RegisterTable {
	return RegisterTable{
		Type:         rt,
		StartAddress: startAddress,
		Values:       make([]uint16, valueCount),
	}
}

// IsValid 未設定 (Invalid) 的表拒絕所有讀寫
func (t *RegisterTable) IsValid() bool {
	return t.Type != RegisterTypeInvalid
}

// ValueCount 取得數量
func (t *RegisterTable) ValueCount() int {
	return len(t.Values)
}

// EndAddress 取得結束位址 (不含)
func (t *RegisterTable) EndAddress() int {
	return t.StartAddress + len(t.Values)
}

// Contains 檢查 [start, start+count) 是否完全落在表的範圍內
//
// 起點與終點都必須檢查。
func (t *RegisterTable) Contains(start, count int) bool {
	return t.IsValid() &&
		start >= t.StartAddress &&
		start+count <= t.EndAddress()
}

// Value 依位址取值，呼叫端需先確認 Contains
func (t *RegisterTable) Value(address int) uint16 {
	return t.Values[address-t.StartAddress]
}

// Bits 以布林值取得範圍 (非零即為 ON)
func (t *RegisterTable) Bits() []bool {
	bits := make([]bool, len(t.Values))
	for i, v := range t.Values {
		bits[i] = v != 0
	}
	return bits
}

// Span 範圍請求：整張表或 [Start, Start+Count)
type Span struct {
	whole bool
	Start int
	Count int
}

// WholeTable 整張表
func WholeTable() Span {
	return Span{whole: true}
}

// Range 指定範圍；負的起始位址視為整張表
func Range(start, count int) Span {
	if start < 0 {
		return WholeTable()
	}
	return Span{Start: start, Count: count}
}

// IsWhole 是否為整張表
func (s Span) IsWhole() bool {
	return s.whole
}

// RegisterMap 暫存器映射表 (四張獨立定址的表)
//
// RegisterMap 本身不做同步，由持有它的 Slave 序列化所有呼叫。
type RegisterMap struct {
	discreteInputs   RegisterTable
	coils            RegisterTable
	inputRegisters   RegisterTable
	holdingRegisters RegisterTable
}

// NewRegisterMap 建立新的暫存器映射表 (四張表皆未設定)
func NewRegisterMap() *RegisterMap {
	return &RegisterMap{}
}

// SetMap 以新的配置取代全部四張表，先前寫入的值全部捨棄
//
// 配置中未出現的表會變成未設定。驗證失敗時不修改任何表。
func (rm *RegisterMap) SetMap(specs ...TableSpec) error {
	next := RegisterMap{}
	seen := make(map[RegisterType]bool, len(specs))

	for _, spec := range specs {
		if spec.Type == RegisterTypeInvalid || spec.Type > RegisterTypeHoldingRegister {
			return fmt.Errorf("%w: %d", ErrInvalidTable, spec.Type)
		}
		if seen[spec.Type] {
			return fmt.Errorf("%w: %s 重複設定", ErrInvalidTable, spec.Type)
		}
		seen[spec.Type] = true

		if spec.ValueCount < 0 {
			return fmt.Errorf("%w: %s 數量 %d", ErrInvalidValueCount, spec.Type, spec.ValueCount)
		}
		if spec.StartAddress < 0 || spec.StartAddress+spec.ValueCount > MaxAddressSpace {
			return fmt.Errorf("%w: %s %d+%d", ErrAddressOutOfRange, spec.Type, spec.StartAddress, spec.ValueCount)
		}

		*next.table(spec.Type) = NewRegisterTable(spec.Type, spec.StartAddress, spec.ValueCount)
	}

	*rm = next
	return nil
}

// Specs 取得目前四張表的配置
func (rm *RegisterMap) Specs() []TableSpec {
	specs := make([]TableSpec, 0, len(RegisterTypes))
	for _, rt := range RegisterTypes {
		t := rm.table(rt)
		if !t.IsValid() {
			continue
		}
		specs = append(specs, TableSpec{Type: rt, StartAddress: t.StartAddress, ValueCount: t.ValueCount()})
	}
	return specs
}

// table 取得表指標，未知類型回傳 nil
func (rm *RegisterMap) table(rt RegisterType) *RegisterTable {
	switch rt {
	case RegisterTypeDiscreteInput:
		return &rm.discreteInputs
	case RegisterTypeCoil:
		return &rm.coils
	case RegisterTypeInputRegister:
		return &rm.inputRegisters
	case RegisterTypeHoldingRegister:
		return &rm.holdingRegisters
	default:
		return nil
	}
}

// lookup 取得已設定的表
func (rm *RegisterMap) lookup(rt RegisterType) (*RegisterTable, error) {
	t := rm.table(rt)
	if t == nil || !t.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTable, rt)
	}
	return t, nil
}

// Contains 範圍驗證 (純函式)
func (rm *RegisterMap) Contains(rt RegisterType, start, count int) bool {
	t := rm.table(rt)
	return t != nil && t.Contains(start, count)
}

// ReadCell 讀取單一欄位
func (rm *RegisterMap) ReadCell(rt RegisterType, address int) (uint16, error) {
	t, err := rm.lookup(rt)
	if err != nil {
		return 0, err
	}
	if !t.Contains(address, 1) {
		return 0, fmt.Errorf("%w: %s 位址 %d", ErrAddressOutOfRange, rt, address)
	}
	return t.Value(address), nil
}

// WriteCell 寫入單一欄位
func (rm *RegisterMap) WriteCell(rt RegisterType, address int, value uint16) error {
	t, err := rm.lookup(rt)
	if err != nil {
		return err
	}
	if !t.Contains(address, 1) {
		return fmt.Errorf("%w: %s 位址 %d", ErrAddressOutOfRange, rt, address)
	}
	t.Values[address-t.StartAddress] = value
	return nil
}

// ReadRange 讀取範圍，回傳的表為複本
func (rm *RegisterMap) ReadRange(rt RegisterType, span Span) (RegisterTable, error) {
	t, err := rm.lookup(rt)
	if err != nil {
		return RegisterTable{}, err
	}

	if span.IsWhole() {
		out := NewRegisterTable(rt, t.StartAddress, t.ValueCount())
		copy(out.Values, t.Values)
		return out, nil
	}

	if span.Count < 1 {
		return RegisterTable{}, fmt.Errorf("%w: %s 數量 %d", ErrInvalidValueCount, rt, span.Count)
	}
	if !t.Contains(span.Start, span.Count) {
		return RegisterTable{}, fmt.Errorf("%w: %s %d-%d", ErrAddressOutOfRange, rt, span.Start, span.Start+span.Count-1)
	}

	out := NewRegisterTable(rt, span.Start, span.Count)
	offset := span.Start - t.StartAddress
	copy(out.Values, t.Values[offset:offset+span.Count])
	return out, nil
}

// WriteRange 覆寫 [start, start+len(values)) 範圍，其餘欄位保持不變
func (rm *RegisterMap) WriteRange(rt RegisterType, start int, values []uint16) error {
	t, err := rm.lookup(rt)
	if err != nil {
		return err
	}
	if len(values) < 1 {
		return fmt.Errorf("%w: %s 數量 0", ErrInvalidValueCount, rt)
	}
	if !t.Contains(start, len(values)) {
		return fmt.Errorf("%w: %s %d-%d", ErrAddressOutOfRange, rt, start, start+len(values)-1)
	}

	offset := start - t.StartAddress
	for i, v := range values {
		t.Values[offset+i] = v
	}
	return nil
}

// ReadBits 以布林值讀取線圈或離散輸入
func (rm *RegisterMap) ReadBits(rt RegisterType, start, count int) ([]bool, error) {
	t, err := rm.ReadRange(rt, Range(start, count))
	if err != nil {
		return nil, err
	}
	return t.Bits(), nil
}

// WriteBits 以布林值寫入線圈或離散輸入 (ON 存為 1)
func (rm *RegisterMap) WriteBits(rt RegisterType, start int, bits []bool) error {
	values := make([]uint16, len(bits))
	for i, b := range bits {
		if b {
			values[i] = 1
		}
	}
	return rm.WriteRange(rt, start, values)
}
