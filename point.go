package main

import (
	"fmt"
	"math"
	"sort"
)

// Point 具名點位，對應一個或兩個連續暫存器
type Point struct {
	Name     string
	Table    RegisterType
	Address  int
	DataType DataType
	Scale    float64
	Unit     string
}

// scale 未設定縮放因子時視為 1
func (p Point) scale() float64 {
	if p.Scale == 0 {
		return 1
	}
	return p.Scale
}

// Validate 驗證點位定義
func (p Point) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("點位名稱不可為空")
	}
	if p.Table == RegisterTypeInvalid {
		return fmt.Errorf("點位 %s: %w", p.Name, ErrInvalidTable)
	}
	if p.Address < 0 || p.Address+p.DataType.RegisterCount() > MaxAddressSpace {
		return fmt.Errorf("點位 %s: %w: %d", p.Name, ErrAddressOutOfRange, p.Address)
	}
	if p.Table.IsBit() && p.DataType != DataTypeUint16 {
		return fmt.Errorf("點位 %s: 位元表只支援 uint16", p.Name)
	}
	return nil
}

// rawRange 縮放後整數型別可表示的範圍
func (p Point) rawRange() (lo, hi float64) {
	switch p.DataType {
	case DataTypeInt16:
		return math.MinInt16, math.MaxInt16
	case DataTypeUint32:
		return 0, math.MaxUint32
	case DataTypeInt32:
		return math.MinInt32, math.MaxInt32
	case DataTypeFloat32:
		return -math.MaxFloat32, math.MaxFloat32
	default:
		return 0, math.MaxUint16
	}
}

// Encode 將工程值轉為暫存器值 (32 位元高字組在前)
func (p Point) Encode(value float64) ([]uint16, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("點位 %s 值 %v: %w", p.Name, value, ErrInvalidValue)
	}

	if p.Table.IsBit() {
		if value != 0 {
			return []uint16{1}, nil
		}
		return []uint16{0}, nil
	}

	scaled := value * p.scale()
	if p.DataType == DataTypeFloat32 {
		scaled = value // Float32 不縮放
	}
	if lo, hi := p.rawRange(); scaled < lo || scaled > hi {
		return nil, fmt.Errorf("點位 %s 值 %v 超出 %s 範圍: %w", p.Name, value, p.DataType, ErrInvalidValue)
	}

	switch p.DataType {
	case DataTypeInt16:
		return []uint16{uint16(int16(scaled))}, nil
	case DataTypeUint32:
		u32 := uint32(scaled)
		return []uint16{uint16(u32 >> 16), uint16(u32)}, nil
	case DataTypeInt32:
		i32 := int32(scaled)
		return []uint16{uint16(uint32(i32) >> 16), uint16(i32)}, nil
	case DataTypeFloat32:
		bits := math.Float32bits(float32(value))
		return []uint16{uint16(bits >> 16), uint16(bits)}, nil
	default:
		return []uint16{uint16(scaled)}, nil
	}
}

// Decode 將暫存器值轉回工程值
func (p Point) Decode(words []uint16) (float64, error) {
	if len(words) < p.DataType.RegisterCount() {
		return 0, fmt.Errorf("點位 %s: %w", p.Name, ErrInvalidValueCount)
	}

	if p.Table.IsBit() {
		if words[0] != 0 {
			return 1, nil
		}
		return 0, nil
	}

	var raw float64
	switch p.DataType {
	case DataTypeInt16:
		raw = float64(int16(words[0]))
	case DataTypeUint32:
		raw = float64(uint32(words[0])<<16 | uint32(words[1]))
	case DataTypeInt32:
		raw = float64(int32(uint32(words[0])<<16 | uint32(words[1])))
	case DataTypeFloat32:
		bits := uint32(words[0])<<16 | uint32(words[1])
		return float64(math.Float32frombits(bits)), nil
	default:
		raw = float64(words[0])
	}

	return raw / p.scale(), nil
}

// PointSet 點位表 (依名稱)
type PointSet struct {
	points map[string]Point
}

// NewPointSet 建立點位表
func NewPointSet() *PointSet {
	return &PointSet{points: make(map[string]Point)}
}

// Define 定義點位
func (ps *PointSet) Define(p Point) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, exists := ps.points[p.Name]; exists {
		return fmt.Errorf("點位 %s 重複定義", p.Name)
	}
	ps.points[p.Name] = p
	return nil
}

// Get 取得點位
func (ps *PointSet) Get(name string) (Point, bool) {
	p, ok := ps.points[name]
	return p, ok
}

// List 依名稱排序列出所有點位
func (ps *PointSet) List() []Point {
	list := make([]Point, 0, len(ps.points))
	for _, p := range ps.points {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// WritePoint 透過範圍存取寫入點位
func (s *Server) WritePoint(p Point, value float64) error {
	words, err := p.Encode(value)
	if err != nil {
		return err
	}
	return s.SetRange(RegisterTable{
		Type:         p.Table,
		StartAddress: p.Address,
		Values:       words,
	})
}

// ReadPoint 透過範圍存取讀取點位
func (s *Server) ReadPoint(p Point) (float64, error) {
	table, err := s.Range(p.Table, Range(p.Address, p.DataType.RegisterCount()))
	if err != nil {
		return 0, err
	}
	return p.Decode(table.Values)
}
