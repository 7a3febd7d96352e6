// internal/pkg/resilience/executor.go
package resilience

import (
	"context"
	"time"
)

// Config 聚合了单个下游依赖的全部弹性参数。
// 用显式结构体传入构造函数，不依赖任何注解或框架级拦截。
type Config struct {
	Name             string
	Timeout          time.Duration // 单次调用超时
	MaxAttempts      int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	BackoffFactor    float64
	FailureThreshold int
	CoolDown         time.Duration
}

// Executor 把超时、重试与熔断组合成一次 Do 调用。
// 熔断与重试相互独立：熔断打开时立即拒绝，不会消耗重试次数；
// 每次真实调用的成败都会反馈给熔断器。
type Executor struct {
	cfg      Config
	breaker  *CircuitBreaker
	retry    RetryConfig
	classify Classifier
}

func NewExecutor(cfg Config, classify Classifier) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if classify == nil {
		classify = DefaultClassifier
	}
	return &Executor{
		cfg: cfg,
		breaker: NewCircuitBreaker(BreakerConfig{
			Name:             cfg.Name,
			FailureThreshold: cfg.FailureThreshold,
			CoolDown:         cfg.CoolDown,
		}),
		retry: RetryConfig{
			MaxAttempts:    cfg.MaxAttempts,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			BackoffFactor:  cfg.BackoffFactor,
		},
		classify: classify,
	}
}

// Do 执行 fn。返回值语义：
//   - nil：调用成功；
//   - ErrCircuitOpen：被熔断器拒绝，未发出任何网络请求；
//   - 业务错误：原样透出，不重试、不计入熔断；
//   - 瞬时故障：重试耗尽后返回最后一次错误，调用方应走降级。
func (e *Executor) Do(ctx context.Context, fn func(context.Context) error) error {
	return Retry(ctx, e.retry, e.classify, func(ctx context.Context) error {
		if err := e.breaker.Allow(); err != nil {
			// 直接向上返回，classify 不会把它判为可重试
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			e.breaker.OnSuccess()
			return nil
		}
		if e.classify(err) {
			e.breaker.OnFailure()
		} else {
			// 业务错误说明下游有响应，只是没有数据：对熔断器而言等同成功，
			// 否则半开探测撞上业务错误会把熔断器永远卡在半开状态
			e.breaker.OnSuccess()
		}
		return err
	})
}

// Breaker 暴露熔断器，供观测与测试使用。
func (e *Executor) Breaker() *CircuitBreaker {
	return e.breaker
}
