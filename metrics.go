package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MetricsCollector 指標收集器
type MetricsCollector struct {
	mu sync.RWMutex

	startTime time.Time

	// 歷史記錄 (用於計算速率)
	requestHistory []requestSample
	maxHistory     int

	httpServer *http.Server

	// 參照
	slave  *Slave
	logger *zap.Logger
}

type requestSample struct {
	timestamp time.Time
	requests  uint64
}

// MetricsSnapshot 指標快照
type MetricsSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`

	Slave StatsSnapshot `json:"slave"`

	ExceptionRate  float64 `json:"exception_rate"`
	RequestsPerSec float64 `json:"requests_per_sec"`

	// 具名點位目前值
	Points map[string]float64 `json:"points,omitempty"`
}

// NewMetricsCollector 建立指標收集器
func NewMetricsCollector(slave *Slave, logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{
		slave:      slave,
		logger:     logger,
		startTime:  time.Now(),
		maxHistory: 60, // 保留 60 個樣本
	}
}

// Handler 建立 HTTP 路由
func (m *MetricsCollector) Handler(endpoint string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(endpoint, m.handleMetrics)
	mux.HandleFunc("/health", m.handleHealth)
	mux.HandleFunc("/ready", m.handleReady)
	mux.HandleFunc("/scenario", m.handleScenario)
	return mux
}

// Start 啟動指標收集與 HTTP 伺服器
func (m *MetricsCollector) Start(ctx context.Context, endpoint string, port int) error {
	m.startTime = time.Now()

	go m.collectLoop(ctx)

	addr := fmt.Sprintf(":%d", port)
	m.httpServer = &http.Server{
		Addr:              addr,
		Handler:           m.Handler(endpoint),
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("啟動指標伺服器", zap.String("addr", addr))

	go func() {
		if err := m.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("指標伺服器錯誤", zap.Error(err))
		}
	}()

	return nil
}

// Stop 關閉 HTTP 伺服器
func (m *MetricsCollector) Stop(ctx context.Context) error {
	if m.httpServer == nil {
		return nil
	}
	return m.httpServer.Shutdown(ctx)
}

// collectLoop 背景收集迴圈
func (m *MetricsCollector) collectLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collect()
		}
	}
}

// collect 記錄一個請求數樣本
func (m *MetricsCollector) collect() {
	if m.slave == nil {
		return
	}

	sample := requestSample{
		timestamp: time.Now(),
		requests:  m.slave.stats.RequestCount.Load(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestHistory = append(m.requestHistory, sample)
	if len(m.requestHistory) > m.maxHistory {
		m.requestHistory = m.requestHistory[1:]
	}
}

// Snapshot 取得指標快照
func (m *MetricsCollector) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Timestamp: time.Now(),
		Uptime:    time.Since(m.startTime).String(),
	}
	if m.slave == nil {
		return snapshot
	}

	snapshot.Slave = m.slave.Stats()
	snapshot.Points = m.slave.PointValues()

	if snapshot.Slave.Requests > 0 {
		snapshot.ExceptionRate = float64(snapshot.Slave.Exceptions) / float64(snapshot.Slave.Requests) * 100
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	// 使用最近的歷史記錄計算每秒請求數
	if len(m.requestHistory) >= 2 {
		first := m.requestHistory[0]
		last := m.requestHistory[len(m.requestHistory)-1]
		duration := last.timestamp.Sub(first.timestamp).Seconds()
		if duration > 0 {
			snapshot.RequestsPerSec = float64(last.requests-first.requests) / duration
		}
	}

	return snapshot
}

// handleMetrics 處理 /metrics 請求
func (m *MetricsCollector) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := m.Snapshot()

	accept := r.Header.Get("Accept")
	if accept == "application/json" || r.URL.Query().Get("format") == "json" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshot)
		return
	}

	// Prometheus 格式
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	writePrometheus(w, snapshot)
}

// writePrometheus 輸出 Prometheus 文字格式
func writePrometheus(w io.Writer, snapshot MetricsSnapshot) {
	st := snapshot.Slave

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP modbusserver_%s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE modbusserver_%s %s\n", name, kind)
		fmt.Fprintf(w, "modbusserver_%s %v\n\n", name, value)
	}

	metric("uptime_seconds", "gauge", "Uptime in seconds", st.Uptime.Seconds())
	metric("requests_total", "counter", "Total number of requests", st.Requests)
	metric("exceptions_total", "counter", "Total number of exception responses", st.Exceptions)
	metric("busy_total", "counter", "Requests rejected as busy by the active scenario", st.Busy)
	metric("writes_total", "counter", "Client writes applied to the register map", st.Writes)
	metric("requests_per_second", "gauge", "Requests per second", snapshot.RequestsPerSec)
	metric("bytes_received_total", "counter", "Total PDU bytes received", st.BytesReceived)
	metric("bytes_sent_total", "counter", "Total PDU bytes sent", st.BytesSent)

	fmt.Fprintf(w, "# HELP modbusserver_function_requests_total Requests per function code\n")
	fmt.Fprintf(w, "# TYPE modbusserver_function_requests_total counter\n")
	for _, name := range sortedKeys(st.Functions) {
		fmt.Fprintf(w, "modbusserver_function_requests_total{function=%q} %d\n", name, st.Functions[name])
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP modbusserver_point_value Named point value\n")
	fmt.Fprintf(w, "# TYPE modbusserver_point_value gauge\n")
	for _, name := range sortedKeys(snapshot.Points) {
		fmt.Fprintf(w, "modbusserver_point_value{point=%q} %f\n", name, snapshot.Points[name])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// handleHealth 處理 /health 請求
func (m *MetricsCollector) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// handleReady 處理 /ready 請求
func (m *MetricsCollector) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if m.slave == nil || m.slave.State() != SlaveStateRunning {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// handleScenario 處理 /scenario 請求：GET 查詢，POST 以 name 參數切換
func (m *MetricsCollector) handleScenario(w http.ResponseWriter, r *http.Request) {
	if m.slave == nil {
		http.Error(w, "slave 未啟動", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		name := r.FormValue("name")
		st := ParseScenarioType(name)
		if st.String() != name {
			http.Error(w, fmt.Sprintf("未知的場景: %s", name), http.StatusBadRequest)
			return
		}
		m.slave.ApplyScenario(st)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"scenario": m.slave.Scenario().String()})
}
