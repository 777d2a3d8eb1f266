package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goburrow/serial"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config 全域配置
type Config struct {
	Server   ServerConfig      `json:"server" yaml:"server" mapstructure:"server"`
	Map      MapConfig         `json:"map" yaml:"map" mapstructure:"map"`
	Points   []PointDefinition `json:"points" yaml:"points" mapstructure:"points"`
	Network  NetworkConfig     `json:"network" yaml:"network" mapstructure:"network"`
	Scenario ScenarioConfig    `json:"scenario" yaml:"scenario" mapstructure:"scenario"`
	Logging  LoggingConfig     `json:"logging" yaml:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig     `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

// ServerConfig 伺服器配置
type ServerConfig struct {
	Transport       string        `json:"transport" yaml:"transport" mapstructure:"transport"`
	Host            string        `json:"host" yaml:"host" mapstructure:"host"`
	Port            int           `json:"port" yaml:"port" mapstructure:"port"`
	SlaveID         int           `json:"slave_id" yaml:"slave_id" mapstructure:"slave_id"`
	Serial          SerialConfig  `json:"serial" yaml:"serial" mapstructure:"serial"`
	GracefulTimeout time.Duration `json:"graceful_timeout" yaml:"graceful_timeout" mapstructure:"graceful_timeout"`
}

// SerialConfig RTU 序列埠配置
type SerialConfig struct {
	Device   string        `json:"device" yaml:"device" mapstructure:"device"`
	BaudRate int           `json:"baud_rate" yaml:"baud_rate" mapstructure:"baud_rate"`
	DataBits int           `json:"data_bits" yaml:"data_bits" mapstructure:"data_bits"`
	StopBits int           `json:"stop_bits" yaml:"stop_bits" mapstructure:"stop_bits"`
	Parity   string        `json:"parity" yaml:"parity" mapstructure:"parity"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// MapConfig 四張暫存器表的配置
type MapConfig struct {
	DiscreteInputs   TableConfig `json:"discrete_inputs" yaml:"discrete_inputs" mapstructure:"discrete_inputs"`
	Coils            TableConfig `json:"coils" yaml:"coils" mapstructure:"coils"`
	InputRegisters   TableConfig `json:"input_registers" yaml:"input_registers" mapstructure:"input_registers"`
	HoldingRegisters TableConfig `json:"holding_registers" yaml:"holding_registers" mapstructure:"holding_registers"`
}

// TableConfig 單張表配置
type TableConfig struct {
	Enabled      bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	StartAddress int  `json:"start_address" yaml:"start_address" mapstructure:"start_address"`
	Count        int  `json:"count" yaml:"count" mapstructure:"count"`
}

// PointDefinition 點位定義
type PointDefinition struct {
	Name     string  `json:"name" yaml:"name" mapstructure:"name"`
	Table    string  `json:"table" yaml:"table" mapstructure:"table"`
	Address  int     `json:"address" yaml:"address" mapstructure:"address"`
	DataType string  `json:"data_type" yaml:"data_type" mapstructure:"data_type"`
	Scale    float64 `json:"scale" yaml:"scale" mapstructure:"scale"`
	Value    float64 `json:"value" yaml:"value" mapstructure:"value"`
	Unit     string  `json:"unit" yaml:"unit" mapstructure:"unit"`
}

// NetworkConfig 網路配置
type NetworkConfig struct {
	Interface string   `json:"interface" yaml:"interface" mapstructure:"interface"`
	Provision bool     `json:"provision" yaml:"provision" mapstructure:"provision"`
	Addresses []string `json:"addresses" yaml:"addresses" mapstructure:"addresses"`
}

// ScenarioConfig 場景配置
type ScenarioConfig struct {
	DefaultScenario string                    `json:"default_scenario" yaml:"default_scenario" mapstructure:"default_scenario"`
	Seed            int64                     `json:"seed" yaml:"seed" mapstructure:"seed"`
	Scenarios       map[string]ScenarioParams `json:"scenarios" yaml:"scenarios" mapstructure:"scenarios"`
}

// ScenarioParams 場景參數
type ScenarioParams struct {
	JitterMin time.Duration `json:"jitter_min" yaml:"jitter_min" mapstructure:"jitter_min"`
	JitterMax time.Duration `json:"jitter_max" yaml:"jitter_max" mapstructure:"jitter_max"`
	BusyRate  float64       `json:"busy_rate" yaml:"busy_rate" mapstructure:"busy_rate"`
}

// LoggingConfig 日誌配置
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level"`
	Format     string `json:"format" yaml:"format" mapstructure:"format"`
	OutputPath string `json:"output_path" yaml:"output_path" mapstructure:"output_path"`
}

// MetricsConfig 指標配置
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Port     int    `json:"port" yaml:"port" mapstructure:"port"`
}

// DefaultConfig 返回預設配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: "tcp",
			Host:      "0.0.0.0",
			Port:      ModbusTCPDefaultPort,
			SlaveID:   1,
			Serial: SerialConfig{
				Device:   "/dev/ttyUSB0",
				BaudRate: 19200,
				DataBits: 8,
				StopBits: 1,
				Parity:   "E",
				Timeout:  time.Second,
			},
			GracefulTimeout: 10 * time.Second,
		},
		Map: MapConfig{
			DiscreteInputs:   TableConfig{Enabled: true, StartAddress: 0, Count: 1000},
			Coils:            TableConfig{Enabled: true, StartAddress: 0, Count: 1000},
			InputRegisters:   TableConfig{Enabled: true, StartAddress: 0, Count: 1000},
			HoldingRegisters: TableConfig{Enabled: true, StartAddress: 0, Count: 1000},
		},
		Points: []PointDefinition{
			{Name: "LineVoltage", Table: "input", Address: 0, DataType: "uint16", Scale: 10, Value: 220.0, Unit: "V"},
			{Name: "LineCurrent", Table: "input", Address: 1, DataType: "uint16", Scale: 100, Value: 15.50, Unit: "A"},
			{Name: "Frequency", Table: "input", Address: 2, DataType: "uint16", Scale: 100, Value: 60.00, Unit: "Hz"},
			{Name: "TotalEnergy", Table: "input", Address: 3, DataType: "uint32", Scale: 1, Value: 0, Unit: "kWh"},
			{Name: "Setpoint", Table: "holding", Address: 0, DataType: "int16", Scale: 10, Value: 21.5, Unit: "°C"},
		},
		Network: NetworkConfig{
			Interface: "eth0",
			Addresses: []string{},
		},
		Scenario: ScenarioConfig{
			DefaultScenario: "normal",
			Seed:            1,
			Scenarios: map[string]ScenarioParams{
				"normal": {},
				"jitter": {
					JitterMin: 100 * time.Millisecond,
					JitterMax: 500 * time.Millisecond,
				},
				"busy": {
					BusyRate: 0.05,
				},
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
			Port:     9090,
		},
	}
}

// LoadConfig 載入配置檔 (JSON 或 YAML)
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/modbus-server/")
		v.AddConfigPath("$HOME/.modbus-server/")
	}

	// 環境變數覆蓋，例如 MODBUSSERVER_SERVER_PORT
	v.SetEnvPrefix("MODBUSSERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setEnvDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("讀取配置檔失敗: %w", err)
		}
		// 配置檔不存在，使用預設值
	}

	// 清單以配置檔為準，不與預設項目逐欄合併
	if v.IsSet("points") {
		cfg.Points = nil
	}
	if v.IsSet("network.addresses") {
		cfg.Network.Addresses = nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置失敗: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置驗證失敗: %w", err)
	}

	return cfg, nil
}

// setEnvDefaults 註冊可由環境變數覆蓋的鍵
func setEnvDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.transport", cfg.Server.Transport)
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.slave_id", cfg.Server.SlaveID)
	v.SetDefault("server.serial.device", cfg.Server.Serial.Device)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("scenario.default_scenario", cfg.Scenario.DefaultScenario)
}

// Validate 驗證配置
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case "tcp":
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return fmt.Errorf("無效的埠號: %d", c.Server.Port)
		}
		if c.Server.SlaveID < 0 || c.Server.SlaveID > 255 {
			return fmt.Errorf("無效的 Slave ID: %d", c.Server.SlaveID)
		}
	case "rtu":
		if c.Server.Serial.Device == "" {
			return fmt.Errorf("RTU 模式必須指定序列埠")
		}
		if c.Server.SlaveID < 1 || c.Server.SlaveID > 247 {
			return fmt.Errorf("無效的 Slave ID: %d (RTU 範圍 1-247)", c.Server.SlaveID)
		}
		switch c.Server.Serial.Parity {
		case "N", "E", "O":
		default:
			return fmt.Errorf("無效的同位元: %s", c.Server.Serial.Parity)
		}
	default:
		return fmt.Errorf("未知的傳輸方式: %s", c.Server.Transport)
	}

	for _, spec := range c.Map.Specs() {
		if spec.StartAddress < 0 || spec.ValueCount < 0 || spec.StartAddress+spec.ValueCount > MaxAddressSpace {
			return fmt.Errorf("暫存器表 %s 範圍無效: %d+%d", spec.Type, spec.StartAddress, spec.ValueCount)
		}
	}

	rm := NewRegisterMap()
	if err := rm.SetMap(c.Map.Specs()...); err != nil {
		return fmt.Errorf("暫存器表配置無效: %w", err)
	}
	for _, def := range c.Points {
		p, err := def.Point()
		if err != nil {
			return err
		}
		if !rm.Contains(p.Table, p.Address, p.DataType.RegisterCount()) {
			return fmt.Errorf("點位 %s 超出暫存器表範圍", p.Name)
		}
		if _, err := p.Encode(def.Value); err != nil {
			return fmt.Errorf("點位初始值無效: %w", err)
		}
	}

	for _, addr := range c.Network.Addresses {
		if _, _, err := net.ParseCIDR(addr); err != nil {
			return fmt.Errorf("無效的 CIDR: %s", addr)
		}
	}

	if c.Scenario.DefaultScenario != "" && ParseScenarioType(c.Scenario.DefaultScenario).String() != c.Scenario.DefaultScenario {
		return fmt.Errorf("未知的場景: %s", c.Scenario.DefaultScenario)
	}

	if _, err := zap.ParseAtomicLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("無效的日誌等級: %s", c.Logging.Level)
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("無效的指標埠號: %d", c.Metrics.Port)
	}

	return nil
}

// Specs 轉換為暫存器表配置，未啟用的表不列入
func (m MapConfig) Specs() []TableSpec {
	tables := []struct {
		rt  RegisterType
		cfg TableConfig
	}{
		{RegisterTypeDiscreteInput, m.DiscreteInputs},
		{RegisterTypeCoil, m.Coils},
		{RegisterTypeInputRegister, m.InputRegisters},
		{RegisterTypeHoldingRegister, m.HoldingRegisters},
	}

	specs := make([]TableSpec, 0, len(tables))
	for _, t := range tables {
		if !t.cfg.Enabled {
			continue
		}
		specs = append(specs, TableSpec{Type: t.rt, StartAddress: t.cfg.StartAddress, ValueCount: t.cfg.Count})
	}
	return specs
}

// Point 轉換為點位
func (d PointDefinition) Point() (Point, error) {
	dataType, ok := ParseDataType(d.DataType)
	if !ok {
		return Point{}, fmt.Errorf("點位 %s: 未知的資料類型 %s", d.Name, d.DataType)
	}
	p := Point{
		Name:     d.Name,
		Table:    ParseRegisterType(d.Table),
		Address:  d.Address,
		DataType: dataType,
		Scale:    d.Scale,
		Unit:     d.Unit,
	}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// SerialPortConfig 轉換為序列埠配置
func (c *ServerConfig) SerialPortConfig() *serial.Config {
	return &serial.Config{
		Address:  c.Serial.Device,
		BaudRate: c.Serial.BaudRate,
		DataBits: c.Serial.DataBits,
		StopBits: c.Serial.StopBits,
		Parity:   c.Serial.Parity,
		Timeout:  c.Serial.Timeout,
	}
}

// ListenAddress 取得 TCP 監聽位址
func (c *ServerConfig) ListenAddress() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

// ScenarioParamsFor 取得場景參數
func (c *ScenarioConfig) ScenarioParamsFor(scenario ScenarioType) ScenarioParams {
	return c.Scenarios[scenario.String()]
}

// SaveConfig 儲存配置到檔案 (.yaml/.yml 輸出 YAML，其餘輸出 JSON)
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("序列化配置失敗: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("寫入配置檔失敗: %w", err)
	}

	return nil
}

// ParseCIDRs 解析網路位址
func (n *NetworkConfig) ParseCIDRs() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(n.Addresses))
	for _, addr := range n.Addresses {
		ip, ipNet, err := net.ParseCIDR(addr)
		if err != nil {
			return nil, fmt.Errorf("無效的 CIDR: %s", addr)
		}
		ipNet.IP = ip
		nets = append(nets, ipNet)
	}
	return nets, nil
}
