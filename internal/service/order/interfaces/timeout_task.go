// internal/service/order/interfaces/timeout_task.go
package interfaces

import (
	"context"
	"time"

	"takeout/internal/pkg/scheduler"
	"takeout/internal/service/order/application"
)

// NewSweepJobs 构造订单服务的两个定时清扫任务：
// 支付超时取消（每分钟）和派送滞留强制完成（每天一次）。
// 非重叠由 Runner 保证，多实例下的互斥由传给 Runner 的分布式锁保证。
func NewSweepJobs(orders *application.OrderService, paymentInterval, deliveryInterval time.Duration) []scheduler.Job {
	return []scheduler.Job{
		{
			Name:     "payment_timeout_sweep",
			Interval: paymentInterval,
			Run: func(ctx context.Context) error {
				return orders.CancelTimeoutOrders(ctx)
			},
		},
		{
			Name:     "stuck_delivery_sweep",
			Interval: deliveryInterval,
			Run: func(ctx context.Context) error {
				return orders.CompleteDeliveringOrders(ctx)
			},
		},
	}
}
