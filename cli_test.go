package main

import (
	"bytes"
	"context"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func TestWriteMapSnapshot(t *testing.T) {
	slave := newTestSlave(t)

	var buf bytes.Buffer
	require.NoError(t, writeMapSnapshot(&buf, slave))

	var out struct {
		SlaveID int `yaml:"slave_id"`
		Tables  []struct {
			StartAddress int `yaml:"start_address"`
			ValueCount   int `yaml:"value_count"`
		} `yaml:"tables"`
		Points map[string]float64 `yaml:"points"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, 1, out.SlaveID)
	assert.Len(t, out.Tables, 4)
	assert.InDelta(t, 21.5, out.Points["Setpoint"], 0.01)
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LoggingConfig
		wantErr bool
	}{
		{"json", LoggingConfig{Level: "info", Format: "json"}, false},
		{"console debug", LoggingConfig{Level: "debug", Format: "console", OutputPath: "stderr"}, false},
		{"bad level", LoggingConfig{Level: "loud"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := initLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestPostScenario(t *testing.T) {
	slave := newTestSlave(t)
	srv := httptest.NewServer(NewMetricsCollector(slave, zap.NewNop()).Handler("/metrics"))
	defer srv.Close()

	cmd := &cobra.Command{}
	cmd.Flags().String("url", srv.URL, "")

	require.NoError(t, postScenario(cmd, "busy"))
	assert.Equal(t, ScenarioBusy, slave.Scenario())

	assert.Error(t, postScenario(cmd, "meltdown"))
	assert.Equal(t, ScenarioBusy, slave.Scenario())
}

type recordingProvisioner struct {
	teardowns   int
	lastTargets []*net.IPNet
	hadDeadline bool
}

func (r *recordingProvisioner) Setup(ctx context.Context, addrs []*net.IPNet) error { return nil }

func (r *recordingProvisioner) Teardown(ctx context.Context, addrs []*net.IPNet) error {
	r.teardowns++
	r.lastTargets = addrs
	_, r.hadDeadline = ctx.Deadline()
	return nil
}

func (r *recordingProvisioner) List(ctx context.Context) ([]*net.IPNet, error) { return nil, nil }

func TestTeardownNetwork(t *testing.T) {
	rec := &recordingProvisioner{}

	// 模擬啟動失敗時的延遲清理
	startFails := func() error {
		defer teardownNetwork(rec, time.Second, zap.NewNop())
		return assert.AnError
	}
	require.Error(t, startFails())

	assert.Equal(t, 1, rec.teardowns)
	assert.Nil(t, rec.lastTargets, "應移除 Setup 加入的所有位址")
	assert.True(t, rec.hadDeadline)
}
