// internal/pkg/resilience/circuit_breaker.go
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrCircuitOpen 表示熔断器处于打开状态，调用被直接拒绝，未触达网络。
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State 是熔断器的三态。
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	breakerStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "resilience_circuit_breaker_state",
		Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open).",
	}, []string{"dependency"})

	breakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resilience_circuit_breaker_rejections_total",
		Help: "Calls short-circuited while the breaker was open.",
	}, []string{"dependency"})
)

// BreakerConfig 是单个下游依赖的熔断参数。
type BreakerConfig struct {
	Name             string        // 依赖名，用于指标与日志
	FailureThreshold int           // 连续失败多少次后打开
	CoolDown         time.Duration // 打开后多久进入半开
}

// CircuitBreaker 按依赖维度统计连续失败次数：
// CLOSED --连续失败达到阈值--> OPEN --冷却期满--> HALF_OPEN --探测成功--> CLOSED
// 半开状态只放行一个探测请求，探测失败立即回到 OPEN 并重新计时。
type CircuitBreaker struct {
	cfg BreakerConfig

	mu            sync.Mutex
	state         State
	failures      int       // 连续失败计数，成功即清零
	changedAt     time.Time // 最近一次状态切换时间
	probeInFlight bool      // 半开状态下是否已放行探测请求
}

func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}
	cb := &CircuitBreaker{cfg: cfg, state: StateClosed, changedAt: time.Now()}
	breakerStateGauge.WithLabelValues(cfg.Name).Set(float64(StateClosed))
	return cb
}

// Allow 判断当前调用是否可以发出。
// 返回 ErrCircuitOpen 时调用方应立即走降级逻辑，不得重试。
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.changedAt) >= cb.cfg.CoolDown {
			// 冷却期满，转半开并放行本次调用作为探测
			cb.setState(StateHalfOpen)
			cb.probeInFlight = true
			return nil
		}
		breakerRejections.WithLabelValues(cb.cfg.Name).Inc()
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.probeInFlight {
			// 半开只允许一个探测，其余请求照旧拒绝
			breakerRejections.WithLabelValues(cb.cfg.Name).Inc()
			return ErrCircuitOpen
		}
		cb.probeInFlight = true
		return nil
	}
	return nil
}

// OnSuccess 记录一次成功调用。
func (cb *CircuitBreaker) OnSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state != StateClosed {
		cb.setState(StateClosed)
	}
	cb.probeInFlight = false
}

// OnFailure 记录一次失败调用。
func (cb *CircuitBreaker) OnFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		// 探测失败，回到打开状态并重新计冷却时间
		cb.probeInFlight = false
		cb.setState(StateOpen)
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.setState(StateOpen)
		}
	}
}

// StateNow 返回当前状态，仅用于观测。
func (cb *CircuitBreaker) StateNow() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// 调用方必须已持有 cb.mu。
func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	cb.changedAt = time.Now()
	if s != StateClosed {
		cb.failures = 0
	}
	breakerStateGauge.WithLabelValues(cb.cfg.Name).Set(float64(s))
}
