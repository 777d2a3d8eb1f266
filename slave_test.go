package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbrandon/mbserver"
)

func newTestSlave(t *testing.T, opts ...SlaveOption) *Slave {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Map.Coils.Count = 16

	slave, err := NewSlave(cfg, opts...)
	require.NoError(t, err)
	return slave
}

func frame(fc FunctionCode, data ...byte) mbserver.Framer {
	return &mbserver.TCPFrame{Function: uint8(fc), Data: data}
}

func TestNewSlave_AppliesConfig(t *testing.T) {
	slave := newTestSlave(t)

	assert.Equal(t, 1, slave.SlaveID())
	assert.Len(t, slave.Map(), 4)
	assert.Equal(t, SlaveStateStopped, slave.State())
	assert.Equal(t, ScenarioNormal, slave.Scenario())

	// 點位初始值已寫入
	val, err := slave.Cell(RegisterTypeInputRegister, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(2200), val)

	v, err := slave.PointValue("Setpoint")
	require.NoError(t, err)
	assert.InDelta(t, 21.5, v, 0.01)
}

func TestNewSlave_InvalidPoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Points = append(cfg.Points, cfg.Points[0])

	_, err := NewSlave(cfg)
	assert.Error(t, err, "重複的點位應失敗")
}

func TestSlave_HandleFrame(t *testing.T) {
	slave := newTestSlave(t)
	require.NoError(t, slave.SetCell(RegisterTypeHoldingRegister, 1, 0x0102))

	t.Run("success", func(t *testing.T) {
		data, exc := slave.handleFrame(nil, frame(FuncCodeReadHoldingRegisters, encodeWords(1, 1)...))
		assert.Same(t, &mbserver.Success, exc)
		assert.Equal(t, []byte{0x02, 0x01, 0x02}, data)
	})

	t.Run("illegal address", func(t *testing.T) {
		_, exc := slave.handleFrame(nil, frame(FuncCodeReadCoils, encodeWords(10, 8)...))
		assert.Same(t, &mbserver.IllegalDataAddress, exc)
	})

	t.Run("illegal value", func(t *testing.T) {
		_, exc := slave.handleFrame(nil, frame(FuncCodeWriteSingleCoil, encodeWords(0, 0x1234)...))
		assert.Same(t, &mbserver.IllegalDataValue, exc)
	})

	t.Run("custom function", func(t *testing.T) {
		_, exc := slave.handleFrame(nil, frame(0x41))
		assert.Same(t, &mbserver.IllegalFunction, exc)
	})
}

func TestSlave_CustomHandlerOption(t *testing.T) {
	slave := newTestSlave(t, WithServerOptions(WithCustomHandler(func(req PDU) PDU {
		return NewPDU(req.Function, 0xAB)
	})))

	data, exc := slave.handleFrame(nil, frame(0x41))
	assert.Same(t, &mbserver.Success, exc)
	assert.Equal(t, []byte{0xAB}, data)

	slave.SetCustomHandler(func(req PDU) PDU {
		return NewExceptionResponse(req.Function, ExceptionCodeGatewayTargetNoResponse)
	})
	_, exc = slave.handleFrame(nil, frame(0x41))
	require.NotNil(t, exc)
	assert.Equal(t, mbserver.Exception(0x0B), *exc)
}

func TestSlave_BusyScenario(t *testing.T) {
	slave := newTestSlave(t)
	slave.config.Scenario.Scenarios["busy"] = ScenarioParams{BusyRate: 1}
	slave.ApplyScenario(ScenarioBusy)

	_, exc := slave.handleFrame(nil, frame(FuncCodeWriteSingleRegister, encodeWords(0, 7)...))
	assert.Same(t, &mbserver.SlaveDeviceBusy, exc)

	// 忙碌時請求不進入 Server
	val, err := slave.Cell(RegisterTypeHoldingRegister, 0)
	require.NoError(t, err)
	assert.NotEqual(t, uint16(7), val)

	stats := slave.Stats()
	assert.Equal(t, uint64(1), stats.Busy)
	assert.Equal(t, uint64(1), stats.Exceptions)
	assert.Equal(t, "busy", stats.Scenario)
}

func TestSlave_StatsAndWriteListener(t *testing.T) {
	var events []DataWritten
	slave := newTestSlave(t, WithWriteListener(func(dw DataWritten) {
		events = append(events, dw)
	}))

	slave.Process(request(FuncCodeReadHoldingRegisters, 0, 2))
	slave.Process(request(FuncCodeWriteSingleRegister, 5, 9))
	slave.Process(request(FuncCodeWriteSingleRegister, 5000, 9))
	slave.Process(NewPDU(0x41))
	slave.Process(NewPDU(0x42))

	stats := slave.Stats()
	assert.Equal(t, uint64(5), stats.Requests)
	assert.Equal(t, uint64(3), stats.Exceptions)
	assert.Equal(t, uint64(1), stats.Writes)
	assert.Equal(t, uint64(1), stats.Functions["ReadHoldingRegisters"])
	assert.Equal(t, uint64(2), stats.Functions["WriteSingleRegister"])
	assert.Equal(t, uint64(2), stats.Functions["Custom"])
	assert.False(t, stats.LastRequest.IsZero())

	assert.Equal(t, []DataWritten{{Table: RegisterTypeHoldingRegister, Address: 5, Size: 1}}, events)
}

func TestSlave_Points(t *testing.T) {
	slave := newTestSlave(t)

	require.NoError(t, slave.SetPoint("LineVoltage", 230.4))
	v, err := slave.PointValue("LineVoltage")
	require.NoError(t, err)
	assert.InDelta(t, 230.4, v, 0.05)

	assert.Error(t, slave.SetPoint("missing", 1))
	assert.ErrorIs(t, slave.SetPoint("LineVoltage", -5), ErrInvalidValue)
	_, err = slave.PointValue("missing")
	assert.Error(t, err)

	values := slave.PointValues()
	assert.Len(t, values, len(slave.Points()))
}

func TestSlave_SetMapResetsValues(t *testing.T) {
	slave := newTestSlave(t)
	require.NoError(t, slave.SetRange(RegisterTable{Type: RegisterTypeHoldingRegister, StartAddress: 0, Values: []uint16{1, 2}}))

	require.NoError(t, slave.SetMap(TableSpec{Type: RegisterTypeHoldingRegister, StartAddress: 0, ValueCount: 4}))

	table, err := slave.Range(RegisterTypeHoldingRegister, WholeTable())
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 0, 0, 0}, table.Values)
}

func TestSlave_Lifecycle(t *testing.T) {
	slave := newTestSlave(t)
	ctx := context.Background()

	require.NoError(t, slave.Start(ctx))
	assert.Equal(t, SlaveStateRunning, slave.State())
	assert.Error(t, slave.Start(ctx), "重複啟動應失敗")

	require.NoError(t, slave.Stop(ctx))
	assert.Equal(t, SlaveStateStopped, slave.State())

	// 重複停止不報錯
	assert.NoError(t, slave.Stop(ctx))
}

func TestTransportException(t *testing.T) {
	assert.Same(t, &mbserver.IllegalFunction, transportException(ExceptionCodeIllegalFunction))
	assert.Same(t, &mbserver.SlaveDeviceFailure, transportException(ExceptionCodeSlaveDeviceFailure))
	assert.Equal(t, mbserver.Exception(0x0A), *transportException(ExceptionCodeGatewayPathUnavailable))
}
