// internal/service/order/domain/repository.go
package domain

import (
	"context"
	"time"
)

// OrderRepository 是订单的存储接口。
//
// Submit 在一个事务里完成三件事：订单行、订单明细行、清空该用户的购物车。
// 任何一步失败整体回滚。
//
// UpdateTransition 是条件更新：只有存储里的状态仍等于 previousStatus 时写入才生效，
// 否则返回 ErrOrderStateConflict。状态机的前置校验在内存对象上做，
// 这个条件写把读到写之间的并发窗口关死。
type OrderRepository interface {
	Submit(ctx context.Context, order *Order, lines []*OrderLine) error
	FindByID(ctx context.Context, orderID int64) (*Order, error)
	FindByNumber(ctx context.Context, number string) (*Order, error)
	FindLines(ctx context.Context, orderID int64) ([]*OrderLine, error)
	UpdateTransition(ctx context.Context, order *Order, previousStatus Status) error
	FindByStatusBefore(ctx context.Context, status Status, createdBefore time.Time) ([]*Order, error)
	FindByUser(ctx context.Context, userID int64, status Status, page, pageSize int) ([]*Order, int64, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
