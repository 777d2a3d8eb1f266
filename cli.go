package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goburrow/modbus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile   string
	logger    *zap.Logger
	appConfig *Config
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "modbus-server",
	Short: "Modbus Slave 伺服器",
	Long: `以四張暫存器表回應 Modbus 用戶端請求的 Slave 伺服器。
支援 TCP 與 RTU 傳輸、具名點位與故障場景。`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		appConfig = DefaultConfig()
		if cmd.Name() != "version" && cmd.Name() != "help" && cmd.Name() != "generate" {
			appConfig, err = LoadConfig(cfgFile)
			if err != nil {
				if cfgFile != "" || cmd.Name() == "validate" {
					return err
				}
				appConfig = DefaultConfig()
			}
		}

		logger, err = initLogger(appConfig.Logging)
		if err != nil {
			return fmt.Errorf("初始化日誌失敗: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// startCmd 啟動命令
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "啟動 Slave",
	Long:  "依配置建立暫存器表並開始監聽用戶端請求。",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 覆蓋 CLI 參數
		if host, _ := cmd.Flags().GetString("host"); host != "" {
			appConfig.Server.Host = host
		}
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			appConfig.Server.Port = port
		}
		if transport, _ := cmd.Flags().GetString("transport"); transport != "" {
			appConfig.Server.Transport = transport
		}
		if device, _ := cmd.Flags().GetString("device"); device != "" {
			appConfig.Server.Serial.Device = device
		}
		if cmd.Flags().Changed("slave-id") {
			appConfig.Server.SlaveID, _ = cmd.Flags().GetInt("slave-id")
		}
		if scenario, _ := cmd.Flags().GetString("scenario"); scenario != "" {
			appConfig.Scenario.DefaultScenario = scenario
		}
		if err := appConfig.Validate(); err != nil {
			return fmt.Errorf("配置驗證失敗: %w", err)
		}

		logger.Info("啟動 Modbus Slave",
			zap.String("transport", appConfig.Server.Transport),
			zap.Int("port", appConfig.Server.Port),
			zap.Int("slaveID", appConfig.Server.SlaveID),
		)

		slave, err := NewSlave(appConfig, WithLogger(logger))
		if err != nil {
			return fmt.Errorf("建立 Slave 失敗: %w", err)
		}

		// 設置優雅關閉
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		var provisioner NetworkProvisioner
		if appConfig.Network.Provision && len(appConfig.Network.Addresses) > 0 {
			addrs, err := appConfig.Network.ParseCIDRs()
			if err != nil {
				return err
			}
			if !HostCovered(appConfig.Server.Host, addrs) {
				logger.Warn("監聽主機不在配置的位址中", zap.String("host", appConfig.Server.Host))
			}
			provisioner = NewNetworkProvisioner(appConfig.Network.Interface, logger)
			if err := provisioner.Setup(ctx, addrs); err != nil {
				return fmt.Errorf("設置網路失敗: %w", err)
			}
			defer teardownNetwork(provisioner, appConfig.Server.GracefulTimeout, logger)
		}

		if err := slave.Start(ctx); err != nil {
			return fmt.Errorf("啟動 Slave 失敗: %w", err)
		}

		if pidFile, _ := cmd.Flags().GetString("pid-file"); pidFile != "" {
			if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
				logger.Warn("寫入 PID 檔案失敗", zap.Error(err))
			} else {
				defer os.Remove(pidFile)
			}
		}

		// 啟動指標收集器
		var metrics *MetricsCollector
		if appConfig.Metrics.Enabled {
			metrics = NewMetricsCollector(slave, logger)
			if err := metrics.Start(ctx, appConfig.Metrics.Endpoint, appConfig.Metrics.Port); err != nil {
				logger.Warn("啟動指標伺服器失敗", zap.Error(err))
			}
		}

		// 等待信號
		sig := <-sigChan
		logger.Info("收到關閉信號", zap.String("signal", sig.String()))

		// 優雅關閉
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), appConfig.Server.GracefulTimeout)
		defer shutdownCancel()

		if metrics != nil {
			if err := metrics.Stop(shutdownCtx); err != nil {
				logger.Warn("關閉指標伺服器失敗", zap.Error(err))
			}
		}

		if err := slave.Stop(shutdownCtx); err != nil {
			logger.Error("關閉 Slave 失敗", zap.Error(err))
			return err
		}

		logger.Info("Slave 已停止")
		return nil
	},
}

// stopCmd 停止命令
// teardownNetwork 移除 start 設置的監聽位址 (啟動失敗時也會執行)
func teardownNetwork(provisioner NetworkProvisioner, timeout time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := provisioner.Teardown(ctx, nil); err != nil {
		logger.Warn("移除監聽位址失敗", zap.Error(err))
	}
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "停止 Slave",
	Long:  "依 PID 檔案停止正在運行的 Slave。",
	RunE: func(cmd *cobra.Command, args []string) error {
		pidFile, _ := cmd.Flags().GetString("pid-file")

		data, err := os.ReadFile(pidFile)
		if err != nil {
			return fmt.Errorf("讀取 PID 檔案失敗: %w", err)
		}

		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			return fmt.Errorf("解析 PID 失敗: %w", err)
		}

		process, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("找不到程序: %w", err)
		}

		if err := process.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("發送信號失敗: %w", err)
		}

		fmt.Printf("已發送停止信號到 PID %d\n", pid)
		return nil
	},
}

// statusCmd 狀態命令
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "查看運行狀態",
	Long:  "從指標伺服器取得運行中 Slave 的統計資訊。",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(metricsURL(cmd, appConfig.Metrics.Endpoint) + "?format=json")
		if err != nil {
			return fmt.Errorf("連線指標伺服器失敗: %w", err)
		}
		defer resp.Body.Close()

		var snapshot MetricsSnapshot
		if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
			return fmt.Errorf("解析狀態失敗: %w", err)
		}

		st := snapshot.Slave
		fmt.Printf("狀態:     %s (%s)\n", st.State, st.Address)
		fmt.Printf("場景:     %s\n", st.Scenario)
		fmt.Printf("運行時間: %s\n", st.Uptime)
		fmt.Printf("請求:     %d (例外 %d, 忙碌 %d, 寫入 %d)\n", st.Requests, st.Exceptions, st.Busy, st.Writes)
		for _, name := range sortedKeys(st.Functions) {
			fmt.Printf("  %-28s %d\n", name, st.Functions[name])
		}
		return nil
	},
}

// mapCmd 暫存器表命令組
var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "暫存器表命令",
	Long:  "檢視配置產生的暫存器表與點位。",
}

// MapSnapshot 暫存器表快照
type MapSnapshot struct {
	SlaveID int                `yaml:"slave_id"`
	Tables  []TableSpec        `yaml:"tables"`
	Points  map[string]float64 `yaml:"points,omitempty"`
}

// mapShowCmd 輸出暫存器表
var mapShowCmd = &cobra.Command{
	Use:   "show",
	Short: "顯示暫存器表",
	Long:  "依配置建立暫存器表，以 YAML 輸出表範圍與點位初始值。",
	RunE: func(cmd *cobra.Command, args []string) error {
		slave, err := NewSlave(appConfig, WithLogger(logger))
		if err != nil {
			return err
		}
		return writeMapSnapshot(cmd.OutOrStdout(), slave)
	},
}

func writeMapSnapshot(w io.Writer, slave *Slave) error {
	snapshot := MapSnapshot{
		SlaveID: slave.SlaveID(),
		Tables:  slave.Map(),
		Points:  slave.PointValues(),
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(snapshot)
}

// clientCmd 用戶端命令組
var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Modbus 用戶端命令",
	Long:  "以 Modbus 用戶端連線 Slave 進行讀寫。",
}

// clientReadCmd 讀取
var clientReadCmd = &cobra.Command{
	Use:   "read",
	Short: "讀取暫存器表",
	RunE: func(cmd *cobra.Command, args []string) error {
		tableName, _ := cmd.Flags().GetString("table")
		address, _ := cmd.Flags().GetUint16("address")
		count, _ := cmd.Flags().GetUint16("count")

		rt := ParseRegisterType(tableName)
		if rt == RegisterTypeInvalid {
			return fmt.Errorf("未知的暫存器表: %s", tableName)
		}

		client, closeFn, err := newModbusClient(cmd, appConfig)
		if err != nil {
			return err
		}
		defer closeFn()

		values, err := clientRead(client, rt, address, count)
		if err != nil {
			return err
		}
		for i, v := range values {
			fmt.Fprintf(cmd.OutOrStdout(), "%s[%d] = %d\n", rt, int(address)+i, v)
		}
		return nil
	},
}

// clientWriteCoilCmd 寫入線圈
var clientWriteCoilCmd = &cobra.Command{
	Use:   "write-coil",
	Short: "寫入單一線圈",
	RunE: func(cmd *cobra.Command, args []string) error {
		address, _ := cmd.Flags().GetUint16("address")
		on, _ := cmd.Flags().GetBool("on")

		client, closeFn, err := newModbusClient(cmd, appConfig)
		if err != nil {
			return err
		}
		defer closeFn()

		value := CoilOff
		if on {
			value = CoilOn
		}
		if _, err := client.WriteSingleCoil(address, value); err != nil {
			return fmt.Errorf("寫入線圈失敗: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Coil[%d] = %v\n", address, on)
		return nil
	},
}

// clientWriteRegisterCmd 寫入保持暫存器
var clientWriteRegisterCmd = &cobra.Command{
	Use:   "write-register",
	Short: "寫入保持暫存器",
	RunE: func(cmd *cobra.Command, args []string) error {
		address, _ := cmd.Flags().GetUint16("address")
		values, _ := cmd.Flags().GetUintSlice("value")
		if len(values) == 0 {
			return fmt.Errorf("必須指定至少一個 --value")
		}

		client, closeFn, err := newModbusClient(cmd, appConfig)
		if err != nil {
			return err
		}
		defer closeFn()

		if len(values) == 1 {
			_, err = client.WriteSingleRegister(address, uint16(values[0]))
		} else {
			words := make([]uint16, len(values))
			for i, v := range values {
				words[i] = uint16(v)
			}
			_, err = client.WriteMultipleRegisters(address, uint16(len(words)), RegistersToBytes(words))
		}
		if err != nil {
			return fmt.Errorf("寫入暫存器失敗: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "HoldingRegister[%d] = %v\n", address, values)
		return nil
	},
}

// newModbusClient 依配置建立 TCP 或 RTU 用戶端
func newModbusClient(cmd *cobra.Command, cfg *Config) (modbus.Client, func() error, error) {
	target, _ := cmd.Flags().GetString("target")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	slaveID := byte(cfg.Server.SlaveID)

	if cfg.Server.Transport == "rtu" {
		handler := modbus.NewRTUClientHandler(cfg.Server.Serial.Device)
		handler.BaudRate = cfg.Server.Serial.BaudRate
		handler.DataBits = cfg.Server.Serial.DataBits
		handler.StopBits = cfg.Server.Serial.StopBits
		handler.Parity = cfg.Server.Serial.Parity
		handler.SlaveId = slaveID
		handler.Timeout = timeout
		if err := handler.Connect(); err != nil {
			return nil, nil, fmt.Errorf("開啟序列埠失敗: %w", err)
		}
		return modbus.NewClient(handler), handler.Close, nil
	}

	if target == "" {
		host := cfg.Server.Host
		if host == "" || host == "0.0.0.0" {
			host = "127.0.0.1"
		}
		target = fmt.Sprintf("%s:%d", host, cfg.Server.Port)
	}
	handler := modbus.NewTCPClientHandler(target)
	handler.SlaveId = slaveID
	handler.Timeout = timeout
	if err := handler.Connect(); err != nil {
		return nil, nil, fmt.Errorf("連線 %s 失敗: %w", target, err)
	}
	return modbus.NewClient(handler), handler.Close, nil
}

// clientRead 讀取一段欄位，位元表每個欄位為 0 或 1
func clientRead(client modbus.Client, rt RegisterType, address, count uint16) ([]uint16, error) {
	var (
		results []byte
		err     error
	)

	switch rt {
	case RegisterTypeCoil:
		results, err = client.ReadCoils(address, count)
	case RegisterTypeDiscreteInput:
		results, err = client.ReadDiscreteInputs(address, count)
	case RegisterTypeInputRegister:
		results, err = client.ReadInputRegisters(address, count)
	case RegisterTypeHoldingRegister:
		results, err = client.ReadHoldingRegisters(address, count)
	}
	if err != nil {
		return nil, fmt.Errorf("讀取 %s 失敗: %w", rt, err)
	}

	if !rt.IsBit() {
		return BytesToRegisters(results), nil
	}

	bits, err := UnpackBits(results, int(count))
	if err != nil {
		return nil, err
	}
	values := make([]uint16, len(bits))
	for i, b := range bits {
		if b {
			values[i] = 1
		}
	}
	return values, nil
}

// networkCmd 網路命令組
var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "網路管理命令",
	Long:  "管理 Slave 監聽位址。",
}

// networkAddresses 取得 --cidr 或配置中的位址
func networkAddresses(cmd *cobra.Command) ([]*net.IPNet, error) {
	if iface, _ := cmd.Flags().GetString("interface"); iface != "" {
		appConfig.Network.Interface = iface
	}
	if cidrs, _ := cmd.Flags().GetStringSlice("cidr"); len(cidrs) > 0 {
		appConfig.Network.Addresses = cidrs
	}
	return appConfig.Network.ParseCIDRs()
}

// networkSetupCmd 設置網路
var networkSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "加入監聽位址",
	Long:  "在指定的網路介面上加入監聽位址。",
	RunE: func(cmd *cobra.Command, args []string) error {
		addrs, err := networkAddresses(cmd)
		if err != nil {
			return err
		}

		provisioner := NewNetworkProvisioner(appConfig.Network.Interface, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := provisioner.Setup(ctx, addrs); err != nil {
			return fmt.Errorf("設置網路失敗: %w", err)
		}

		fmt.Println("監聽位址設置完成")
		return nil
	},
}

// networkTeardownCmd 移除網路
var networkTeardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "移除監聽位址",
	Long:  "移除配置中的監聽位址。",
	RunE: func(cmd *cobra.Command, args []string) error {
		addrs, err := networkAddresses(cmd)
		if err != nil {
			return err
		}

		provisioner := NewNetworkProvisioner(appConfig.Network.Interface, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := provisioner.Teardown(ctx, addrs); err != nil {
			return fmt.Errorf("移除網路失敗: %w", err)
		}

		fmt.Println("監聽位址已移除")
		return nil
	},
}

// networkListCmd 列出網路
var networkListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出介面位址",
	RunE: func(cmd *cobra.Command, args []string) error {
		if iface, _ := cmd.Flags().GetString("interface"); iface != "" {
			appConfig.Network.Interface = iface
		}

		provisioner := NewNetworkProvisioner(appConfig.Network.Interface, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		addrs, err := provisioner.List(ctx)
		if err != nil {
			return fmt.Errorf("列出位址失敗: %w", err)
		}

		if len(addrs) == 0 {
			fmt.Println("介面上沒有位址")
			return nil
		}

		fmt.Printf("%s 上的位址 (%d 個):\n", appConfig.Network.Interface, len(addrs))
		for _, addr := range addrs {
			fmt.Printf("  - %s\n", addr)
		}
		return nil
	},
}

// scenarioCmd 場景命令組
var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "場景管理命令",
	Long:  "管理傳輸層故障場景。",
}

// scenarioDescriptions 場景說明
var scenarioDescriptions = map[ScenarioType]string{
	ScenarioNormal: "正常回應",
	ScenarioJitter: "回應延遲 (預設 100-500ms)",
	ScenarioBusy:   "部分請求回應 SlaveDeviceBusy (預設 5%)",
}

// scenarioListCmd 列出場景
var scenarioListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出可用場景",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("可用的場景:")
		for _, st := range ListScenarioTypes() {
			fmt.Printf("  %-10s %s\n", st, scenarioDescriptions[st])
		}
	},
}

// scenarioApplyCmd 套用場景
var scenarioApplyCmd = &cobra.Command{
	Use:   "apply [scenario]",
	Short: "套用場景",
	Long:  "透過指標伺服器對運行中的 Slave 套用場景。",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return postScenario(cmd, args[0])
	},
}

// scenarioResetCmd 重設場景
var scenarioResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "重設為正常模式",
	RunE: func(cmd *cobra.Command, args []string) error {
		return postScenario(cmd, ScenarioNormal.String())
	},
}

func postScenario(cmd *cobra.Command, name string) error {
	if ParseScenarioType(name).String() != name {
		return fmt.Errorf("未知的場景: %s", name)
	}

	resp, err := http.PostForm(metricsURL(cmd, "/scenario"), url.Values{"name": {name}})
	if err != nil {
		return fmt.Errorf("連線指標伺服器失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("套用場景失敗: %s", strings.TrimSpace(string(body)))
	}
	fmt.Printf("已套用場景: %s\n", name)
	return nil
}

// metricsURL 組合指標伺服器網址
func metricsURL(cmd *cobra.Command, path string) string {
	base, _ := cmd.Flags().GetString("url")
	if base == "" {
		base = fmt.Sprintf("http://127.0.0.1:%d", appConfig.Metrics.Port)
	}
	return strings.TrimRight(base, "/") + path
}

// configCmd 配置命令組
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "配置管理命令",
	Long:  "管理配置檔。",
}

// configValidateCmd 驗證配置
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "驗證配置檔",
	Long:  "驗證指定的配置檔是否有效。",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig

		fmt.Println("配置驗證通過")
		fmt.Printf("  Transport: %s\n", cfg.Server.Transport)
		fmt.Printf("  Listen: %s\n", cfg.Server.ListenAddress())
		fmt.Printf("  Slave ID: %d\n", cfg.Server.SlaveID)
		fmt.Printf("  Tables: %d\n", len(cfg.Map.Specs()))
		fmt.Printf("  Points: %d\n", len(cfg.Points))
		return nil
	},
}

// configGenerateCmd 生成配置
var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "生成範例配置",
	Long:  "生成範例配置檔，副檔名 .yaml/.yml 輸出 YAML，其餘輸出 JSON。",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		cfg := DefaultConfig()
		cfg.Network.Addresses = []string{"192.168.1.50/24"}

		if err := cfg.SaveConfig(output); err != nil {
			return fmt.Errorf("生成配置失敗: %w", err)
		}

		fmt.Printf("範例配置已生成: %s\n", output)
		return nil
	},
}

// configShowCmd 顯示生效的配置
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "顯示生效的配置",
	Long:  "以 YAML 輸出合併預設值、配置檔與環境變數後的配置。",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(appConfig)
	},
}

// versionCmd 版本命令
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "顯示版本資訊",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("modbus-server version %s\n", Version)
		fmt.Printf("  Build: %s\n", BuildTime)
		fmt.Printf("  Commit: %s\n", GitCommit)
	},
}

func init() {
	// 全域 flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置檔路徑")

	// start 命令 flags
	startCmd.Flags().String("host", "", "監聽位址")
	startCmd.Flags().IntP("port", "p", 0, "監聽埠號")
	startCmd.Flags().StringP("transport", "t", "", "傳輸方式 (tcp|rtu)")
	startCmd.Flags().String("device", "", "RTU 序列埠")
	startCmd.Flags().Int("slave-id", 1, "Slave ID")
	startCmd.Flags().StringP("scenario", "s", "", "初始場景")
	startCmd.Flags().String("pid-file", "", "PID 檔案路徑")

	stopCmd.Flags().String("pid-file", "/var/run/modbus-server.pid", "PID 檔案路徑")

	statusCmd.Flags().String("url", "", "指標伺服器網址")

	// client 命令 flags
	for _, c := range []*cobra.Command{clientReadCmd, clientWriteCoilCmd, clientWriteRegisterCmd} {
		c.Flags().String("target", "", "Slave 位址 (host:port)")
		c.Flags().Duration("timeout", 3*time.Second, "逾時")
		c.Flags().Uint16P("address", "a", 0, "起始位址")
	}
	clientReadCmd.Flags().String("table", "holding", "暫存器表 (coil|discrete|input|holding)")
	clientReadCmd.Flags().Uint16P("count", "n", 1, "數量")
	clientWriteCoilCmd.Flags().Bool("on", false, "ON/OFF")
	clientWriteRegisterCmd.Flags().UintSlice("value", nil, "寫入值，多個值使用 FC 16")

	// network 命令 flags
	for _, c := range []*cobra.Command{networkSetupCmd, networkTeardownCmd, networkListCmd} {
		c.Flags().StringP("interface", "i", "", "網路介面")
	}
	networkSetupCmd.Flags().StringSlice("cidr", nil, "CIDR 位址")
	networkTeardownCmd.Flags().StringSlice("cidr", nil, "CIDR 位址")

	scenarioApplyCmd.Flags().String("url", "", "指標伺服器網址")
	scenarioResetCmd.Flags().String("url", "", "指標伺服器網址")

	// config 命令 flags
	configGenerateCmd.Flags().StringP("output", "o", "config.json", "輸出檔案路徑")

	// 組裝命令樹
	mapCmd.AddCommand(mapShowCmd)
	clientCmd.AddCommand(clientReadCmd, clientWriteCoilCmd, clientWriteRegisterCmd)
	networkCmd.AddCommand(networkSetupCmd, networkTeardownCmd, networkListCmd)
	scenarioCmd.AddCommand(scenarioListCmd, scenarioApplyCmd, scenarioResetCmd)
	configCmd.AddCommand(configValidateCmd, configGenerateCmd, configShowCmd)

	rootCmd.AddCommand(
		startCmd,
		stopCmd,
		statusCmd,
		mapCmd,
		clientCmd,
		networkCmd,
		scenarioCmd,
		configCmd,
		versionCmd,
	)
}

// initLogger 依日誌配置建立 zap logger
func initLogger(cfg LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = level

	output := cfg.OutputPath
	if output == "" {
		output = "stdout"
	}
	zc.OutputPaths = []string{output}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// Execute 執行 CLI
func Execute() error {
	return rootCmd.Execute()
}
