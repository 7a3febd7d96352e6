// internal/pkg/scheduler/runner.go
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"takeout/internal/pkg/logger"
)

// Job 是一个周期性任务。Run 返回错误只用于记录，不会中断后续的周期。
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Lock 是跨实例互斥的抽象。多副本部署时同一个任务同一时刻只在一个实例上执行；
// 单实例部署传 nil 即可。
type Lock interface {
	// TryAcquire 非阻塞尝试获取锁，返回 false 表示其他实例正在执行。
	TryAcquire(name string) (release func(), acquired bool, err error)
}

// Runner 以固定间隔驱动一组 Job，并保证同一个 Job 不会重叠执行：
// 上一轮还没结束时，新的一个 tick 直接跳过，而不是排队。
type Runner struct {
	jobs []Job
	lock Lock
	wg   sync.WaitGroup
}

func NewRunner(lock Lock) *Runner {
	return &Runner{lock: lock}
}

// Register 注册一个周期任务，须在 Start 之前调用。
func (r *Runner) Register(job Job) {
	r.jobs = append(r.jobs, job)
}

// Start 为每个 Job 启动独立的定时循环，ctx 取消后停止。
func (r *Runner) Start(ctx context.Context) {
	for _, job := range r.jobs {
		job := job
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.runLoop(ctx, job)
		}()
	}
}

// Wait 阻塞到所有任务循环退出。
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) runLoop(ctx context.Context, job Job) {
	logger.Ctx(ctx).Info().Str("job", job.Name).Dur("interval", job.Interval).Msg("scheduler job started")

	var inFlight int32
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Str("job", job.Name).Msg("scheduler job stopped")
			return
		case <-ticker.C:
			if !atomic.CompareAndSwapInt32(&inFlight, 0, 1) {
				// 上一轮还在执行，跳过本次 tick
				logger.Ctx(ctx).Warn().Str("job", job.Name).Msg("previous run still in flight, skipping tick")
				continue
			}
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				defer atomic.StoreInt32(&inFlight, 0)
				r.runOnce(ctx, job)
			}()
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job) {
	if r.lock != nil {
		release, acquired, err := r.lock.TryAcquire(job.Name)
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("job", job.Name).Msg("failed to acquire sweep lock")
			return
		}
		if !acquired {
			logger.Ctx(ctx).Debug().Str("job", job.Name).Msg("another instance holds the sweep lock, skipping")
			return
		}
		defer release()
	}

	if err := job.Run(ctx); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("job", job.Name).Msg("scheduler job run failed")
	}
}
