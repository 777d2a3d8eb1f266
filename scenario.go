package main

import (
	"math/rand"
	"sync"
	"time"
)

// ScenarioType 場景類型
type ScenarioType int

const (
	ScenarioNormal ScenarioType = iota
	ScenarioJitter
	ScenarioBusy
)

func (s ScenarioType) String() string {
	switch s {
	case ScenarioNormal:
		return "normal"
	case ScenarioJitter:
		return "jitter"
	case ScenarioBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// ParseScenarioType 解析場景類型
func ParseScenarioType(s string) ScenarioType {
	switch s {
	case "normal":
		return ScenarioNormal
	case "jitter":
		return ScenarioJitter
	case "busy":
		return ScenarioBusy
	default:
		return ScenarioNormal
	}
}

// ListScenarioTypes 列出所有場景類型
func ListScenarioTypes() []ScenarioType {
	return []ScenarioType{
		ScenarioNormal,
		ScenarioJitter,
		ScenarioBusy,
	}
}

// Fault 場景對單一請求的決定
type Fault struct {
	Delay time.Duration
	Busy  bool
}

// ScenarioHandler 場景處理介面
//
// 場景只在傳輸層生效，請求進入 Server 之前決定延遲或拒絕。
type ScenarioHandler interface {
	Type() ScenarioType
	Decide(params ScenarioParams, rnd *rand.Rand) Fault
}

// 場景處理器註冊表
var (
	scenarioHandlers   = make(map[ScenarioType]ScenarioHandler)
	scenarioHandlersMu sync.RWMutex
)

func init() {
	RegisterScenarioHandler(NormalScenario{})
	RegisterScenarioHandler(JitterScenario{})
	RegisterScenarioHandler(BusyScenario{})
}

// RegisterScenarioHandler 註冊場景處理器
func RegisterScenarioHandler(handler ScenarioHandler) {
	scenarioHandlersMu.Lock()
	defer scenarioHandlersMu.Unlock()
	scenarioHandlers[handler.Type()] = handler
}

// GetScenarioHandler 取得場景處理器
func GetScenarioHandler(scenarioType ScenarioType) ScenarioHandler {
	scenarioHandlersMu.RLock()
	defer scenarioHandlersMu.RUnlock()
	return scenarioHandlers[scenarioType]
}

// NormalScenario 正常場景
type NormalScenario struct{}

func (NormalScenario) Type() ScenarioType { return ScenarioNormal }

func (NormalScenario) Decide(ScenarioParams, *rand.Rand) Fault { return Fault{} }

// JitterScenario 回應延遲場景
type JitterScenario struct{}

func (JitterScenario) Type() ScenarioType { return ScenarioJitter }

func (JitterScenario) Decide(params ScenarioParams, rnd *rand.Rand) Fault {
	min, max := params.JitterMin, params.JitterMax
	if min == 0 && max == 0 {
		min, max = 100*time.Millisecond, 500*time.Millisecond
	}
	if max <= min {
		return Fault{Delay: min}
	}
	return Fault{Delay: min + time.Duration(rnd.Int63n(int64(max-min)))}
}

// BusyScenario 以 SlaveDeviceBusy 拒絕部分請求
type BusyScenario struct{}

func (BusyScenario) Type() ScenarioType { return ScenarioBusy }

func (BusyScenario) Decide(params ScenarioParams, rnd *rand.Rand) Fault {
	rate := params.BusyRate
	if rate == 0 {
		rate = 0.05 // 預設 5%
	}
	return Fault{Busy: rnd.Float64() < rate}
}

// ScenarioEngine 場景引擎 (管理場景切換)
type ScenarioEngine struct {
	mu sync.Mutex

	currentType    ScenarioType
	currentHandler ScenarioHandler
	params         ScenarioParams
	rnd            *rand.Rand
}

// NewScenarioEngine 建立場景引擎
func NewScenarioEngine(seed int64) *ScenarioEngine {
	return &ScenarioEngine{
		currentType:    ScenarioNormal,
		currentHandler: GetScenarioHandler(ScenarioNormal),
		rnd:            rand.New(rand.NewSource(seed)),
	}
}

// SetScenario 設定場景
func (e *ScenarioEngine) SetScenario(scenarioType ScenarioType, params ScenarioParams) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.currentType = scenarioType
	e.currentHandler = GetScenarioHandler(scenarioType)
	e.params = params
}

// GetScenario 取得當前場景
func (e *ScenarioEngine) GetScenario() (ScenarioType, ScenarioParams) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentType, e.params
}

// Decide 決定本次請求的延遲或拒絕
func (e *ScenarioEngine) Decide() Fault {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.currentHandler == nil {
		return Fault{}
	}
	return e.currentHandler.Decide(e.params, e.rnd)
}

// Reset 重設為正常場景
func (e *ScenarioEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.currentType = ScenarioNormal
	e.currentHandler = GetScenarioHandler(ScenarioNormal)
	e.params = ScenarioParams{}
}
