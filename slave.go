package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tbrandon/mbserver"
	"go.uber.org/zap"
)

// SlaveState Slave 狀態
type SlaveState int32

const (
	SlaveStateStopped SlaveState = iota
	SlaveStateStarting
	SlaveStateRunning
	SlaveStateStopping
)

func (s SlaveState) String() string {
	switch s {
	case SlaveStateStopped:
		return "stopped"
	case SlaveStateStarting:
		return "starting"
	case SlaveStateRunning:
		return "running"
	case SlaveStateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Slave 將 Server 掛到 TCP 或 RTU 傳輸上
//
// 所有對 Server 的存取 (用戶端請求與主程式 API) 都經過 mu 序列化。
type Slave struct {
	mu sync.Mutex

	server   *Server
	points   *PointSet
	scenario *ScenarioEngine

	// 傳輸層
	transport *mbserver.Server
	address   string

	state atomic.Int32
	stats SlaveStats

	serverOpts []ServerOption
	listeners  []DataWrittenFunc

	logger *zap.Logger
	config *Config
}

// SlaveStats Slave 統計資訊
type SlaveStats struct {
	StartTime       time.Time
	RequestCount    atomic.Uint64
	ExceptionCount  atomic.Uint64
	BusyCount       atomic.Uint64
	WriteCount      atomic.Uint64
	LastRequestTime atomic.Int64
	BytesReceived   atomic.Uint64
	BytesSent       atomic.Uint64

	// 依功能碼計數
	functions [256]atomic.Uint64
}

// StatsSnapshot 統計快照
type StatsSnapshot struct {
	State         string            `json:"state"`
	Address       string            `json:"address"`
	Scenario      string            `json:"scenario"`
	Uptime        time.Duration     `json:"uptime"`
	Requests      uint64            `json:"requests"`
	Exceptions    uint64            `json:"exceptions"`
	Busy          uint64            `json:"busy"`
	Writes        uint64            `json:"writes"`
	BytesReceived uint64            `json:"bytes_received"`
	BytesSent     uint64            `json:"bytes_sent"`
	LastRequest   time.Time         `json:"last_request"`
	Functions     map[string]uint64 `json:"functions"`
}

// SlaveOption Slave 配置選項
type SlaveOption func(*Slave)

// WithLogger 設定日誌
func WithLogger(logger *zap.Logger) SlaveOption {
	return func(s *Slave) {
		s.logger = logger
	}
}

// WithServerOptions 額外的 Server 選項 (例如自訂功能碼處理器)
func WithServerOptions(opts ...ServerOption) SlaveOption {
	return func(s *Slave) {
		s.serverOpts = append(s.serverOpts, opts...)
	}
}

// WithWriteListener 訂閱用戶端寫入通知
func WithWriteListener(fn DataWrittenFunc) SlaveOption {
	return func(s *Slave) {
		s.listeners = append(s.listeners, fn)
	}
}

// NewSlave 依配置建立 Slave，套用暫存器表、點位初始值與預設場景
func NewSlave(config *Config, opts ...SlaveOption) (*Slave, error) {
	s := &Slave{
		config:   config,
		points:   NewPointSet(),
		scenario: NewScenarioEngine(config.Scenario.Seed),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	serverOpts := []ServerOption{
		WithSlaveID(config.Server.SlaveID),
		WithServerLogger(s.logger),
		WithDataWritten(s.onDataWritten),
	}
	s.server = NewServer(append(serverOpts, s.serverOpts...)...)

	if err := s.server.SetMap(config.Map.Specs()...); err != nil {
		return nil, fmt.Errorf("設定暫存器表失敗: %w", err)
	}

	for _, def := range config.Points {
		p, err := def.Point()
		if err != nil {
			return nil, err
		}
		if err := s.points.Define(p); err != nil {
			return nil, err
		}
		if err := s.server.WritePoint(p, def.Value); err != nil {
			return nil, fmt.Errorf("點位 %s 初始值寫入失敗: %w", p.Name, err)
		}
	}

	if name := config.Scenario.DefaultScenario; name != "" {
		st := ParseScenarioType(name)
		s.scenario.SetScenario(st, config.Scenario.ScenarioParamsFor(st))
	}

	return s, nil
}

// Start 啟動傳輸層
func (s *Slave) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(SlaveStateStopped), int32(SlaveStateStarting)) {
		return fmt.Errorf("slave 已經在運行中")
	}

	s.transport = mbserver.NewServer()
	// 所有功能碼都交給 Server 分派，包含沒有專屬處理器的
	for fc := 1; fc < int(FuncCodeExceptionFlag); fc++ {
		s.transport.RegisterFunctionHandler(uint8(fc), s.handleFrame)
	}

	s.stats.StartTime = time.Now()

	var err error
	switch s.config.Server.Transport {
	case "rtu":
		s.address = s.config.Server.Serial.Device
		err = s.transport.ListenRTU(s.config.Server.SerialPortConfig())
	default:
		s.address = s.config.Server.ListenAddress()
		err = s.transport.ListenTCP(s.address)
	}
	if err != nil {
		s.transport = nil
		s.state.Store(int32(SlaveStateStopped))
		return fmt.Errorf("監聽 %s 失敗: %w", s.address, err)
	}

	s.state.Store(int32(SlaveStateRunning))

	s.logger.Info("Slave 已啟動",
		zap.String("transport", s.config.Server.Transport),
		zap.String("addr", s.address),
		zap.Int("slaveID", s.SlaveID()),
	)

	return nil
}

// Stop 停止傳輸層
func (s *Slave) Stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(SlaveStateRunning), int32(SlaveStateStopping)) {
		return nil // 已經停止
	}

	done := make(chan struct{})
	go func() {
		s.transport.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("關閉傳輸層逾時", zap.Error(ctx.Err()))
	}

	s.state.Store(int32(SlaveStateStopped))

	s.logger.Info("Slave 已停止",
		zap.String("addr", s.address),
		zap.Duration("uptime", time.Since(s.stats.StartTime)),
		zap.Uint64("requests", s.stats.RequestCount.Load()),
	)

	return nil
}

// State 取得當前狀態
func (s *Slave) State() SlaveState {
	return SlaveState(s.state.Load())
}

// handleFrame mbserver 功能碼處理器
func (s *Slave) handleFrame(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	req := NewPDU(FunctionCode(frame.GetFunction()), frame.GetData()...)

	fault := s.scenario.Decide()
	if fault.Delay > 0 {
		time.Sleep(fault.Delay)
	}
	if fault.Busy {
		s.stats.BusyCount.Add(1)
		s.recordRequest(req, NewExceptionResponse(req.Function, ExceptionCodeSlaveDeviceBusy))
		return []byte{}, &mbserver.SlaveDeviceBusy
	}

	resp := s.Process(req)
	if resp.IsException() {
		return []byte{}, transportException(resp.ExceptionCode())
	}
	return resp.Data, &mbserver.Success
}

// transportException 例外碼轉為 mbserver 的例外
func transportException(code ExceptionCode) *mbserver.Exception {
	switch code {
	case ExceptionCodeIllegalFunction:
		return &mbserver.IllegalFunction
	case ExceptionCodeIllegalDataAddress:
		return &mbserver.IllegalDataAddress
	case ExceptionCodeIllegalDataValue:
		return &mbserver.IllegalDataValue
	case ExceptionCodeSlaveDeviceFailure:
		return &mbserver.SlaveDeviceFailure
	case ExceptionCodeSlaveDeviceBusy:
		return &mbserver.SlaveDeviceBusy
	default:
		e := mbserver.Exception(code)
		return &e
	}
}

// Process 處理一個請求 (已解框的 PDU)
func (s *Slave) Process(req PDU) PDU {
	s.mu.Lock()
	resp := s.server.ProcessRequest(req)
	s.mu.Unlock()

	s.recordRequest(req, resp)
	return resp
}

// onDataWritten 在 Process 持有鎖時被呼叫
func (s *Slave) onDataWritten(dw DataWritten) {
	s.stats.WriteCount.Add(1)
	s.logger.Debug("用戶端寫入",
		zap.Stringer("table", dw.Table),
		zap.Int("address", dw.Address),
		zap.Int("size", dw.Size),
	)
	for _, fn := range s.listeners {
		fn(dw)
	}
}

// recordRequest 記錄請求
func (s *Slave) recordRequest(req, resp PDU) {
	s.stats.RequestCount.Add(1)
	s.stats.functions[byte(req.Function)].Add(1)
	s.stats.LastRequestTime.Store(time.Now().UnixNano())
	s.stats.BytesReceived.Add(uint64(1 + len(req.Data)))
	s.stats.BytesSent.Add(uint64(1 + len(resp.Data)))
	if resp.IsException() {
		s.stats.ExceptionCount.Add(1)
	}
}

// Stats 取得統計快照
func (s *Slave) Stats() StatsSnapshot {
	snap := StatsSnapshot{
		State:         s.State().String(),
		Address:       s.address,
		Scenario:      s.Scenario().String(),
		Requests:      s.stats.RequestCount.Load(),
		Exceptions:    s.stats.ExceptionCount.Load(),
		Busy:          s.stats.BusyCount.Load(),
		Writes:        s.stats.WriteCount.Load(),
		BytesReceived: s.stats.BytesReceived.Load(),
		BytesSent:     s.stats.BytesSent.Load(),
		Functions:     make(map[string]uint64),
	}
	if !s.stats.StartTime.IsZero() && s.State() == SlaveStateRunning {
		snap.Uptime = time.Since(s.stats.StartTime)
	}
	if last := s.stats.LastRequestTime.Load(); last > 0 {
		snap.LastRequest = time.Unix(0, last)
	}

	for fc := range s.stats.functions {
		if n := s.stats.functions[fc].Load(); n > 0 {
			snap.Functions[FunctionCode(fc).String()] += n // 未知功能碼合併為 Custom
		}
	}
	return snap
}

// SlaveID 取得 Slave ID
func (s *Slave) SlaveID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server.SlaveID()
}

// SetMap 重新設定暫存器表 (所有值歸零)
func (s *Slave) SetMap(specs ...TableSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server.SetMap(specs...)
}

// Map 取得暫存器表配置
func (s *Slave) Map() []TableSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server.Map()
}

// Cell 讀取單一欄位
func (s *Slave) Cell(rt RegisterType, address int) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server.Cell(rt, address)
}

// SetCell 寫入單一欄位
func (s *Slave) SetCell(rt RegisterType, address int, value uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server.SetCell(rt, address, value)
}

// Range 讀取範圍
func (s *Slave) Range(rt RegisterType, span Span) (RegisterTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server.Range(rt, span)
}

// SetRange 寫入範圍
func (s *Slave) SetRange(table RegisterTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server.SetRange(table)
}

// SetCustomHandler 設定自訂功能碼處理器
func (s *Slave) SetCustomHandler(h CustomHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server.SetCustomHandler(h)
}

// Points 列出所有點位
func (s *Slave) Points() []Point {
	return s.points.List()
}

// SetPoint 依名稱寫入點位
func (s *Slave) SetPoint(name string, value float64) error {
	p, ok := s.points.Get(name)
	if !ok {
		return fmt.Errorf("未知的點位: %s", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server.WritePoint(p, value)
}

// PointValue 依名稱讀取點位
func (s *Slave) PointValue(name string) (float64, error) {
	p, ok := s.points.Get(name)
	if !ok {
		return 0, fmt.Errorf("未知的點位: %s", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server.ReadPoint(p)
}

// PointValues 讀取所有點位
func (s *Slave) PointValues() map[string]float64 {
	values := make(map[string]float64)
	for _, p := range s.points.List() {
		if v, err := s.PointValue(p.Name); err == nil {
			values[p.Name] = v
		}
	}
	return values
}

// ApplyScenario 套用場景
func (s *Slave) ApplyScenario(st ScenarioType) {
	s.scenario.SetScenario(st, s.config.Scenario.ScenarioParamsFor(st))
	s.logger.Info("套用場景", zap.Stringer("scenario", st))
}

// Scenario 取得當前場景
func (s *Slave) Scenario() ScenarioType {
	st, _ := s.scenario.GetScenario()
	return st
}
