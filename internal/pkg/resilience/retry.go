// internal/pkg/resilience/retry.go
package resilience

import (
	"context"
	"errors"
	"net"
	"time"
)

// RetryConfig 控制有限次数的指数退避重试。
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig 对应默认策略：最多 3 次，100ms 起步，×1.5 递增，封顶 1s。
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		BackoffFactor:  1.5,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Second
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = 1.5
	}
	return c
}

// Classifier 判断一个错误是否为可重试的瞬时故障。
// 业务错误（如"商品不存在"）必须返回 false，重试它们毫无意义。
type Classifier func(error) bool

// DefaultClassifier 只把网络层故障与超时视为可重试。
func DefaultClassifier(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		// 调用方主动放弃，重试只会浪费资源
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// Retry 按配置重试 fn，仅对 classify 判定为瞬时故障的错误重试。
// 重试次数有界，总耗时不设上限；对总时长有要求的调用方需自带 deadline。
func Retry(ctx context.Context, cfg RetryConfig, classify Classifier, fn func(context.Context) error) error {
	cfg = cfg.normalized()
	if classify == nil {
		classify = DefaultClassifier
	}

	backoff := cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !classify(err) {
			return err
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
	return lastErr
}
