// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	cartdomain "takeout/internal/service/cart/domain"
	"takeout/internal/service/order/domain"
)

type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Submit 在一个事务里写入订单、明细行，并清空该用户的购物车。
// 任何一步失败整体回滚，不会留下半个订单。
func (r *GormOrderRepository) Submit(ctx context.Context, order *domain.Order, lines []*domain.OrderLine) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return pkgerrors.Wrap(err, "insert order")
		}
		for _, line := range lines {
			line.OrderID = order.ID
		}
		if err := tx.Create(&lines).Error; err != nil {
			return pkgerrors.Wrap(err, "insert order lines")
		}
		if err := tx.Where("user_id = ?", order.UserID).
			Delete(&cartdomain.CartLine{}).Error; err != nil {
			return pkgerrors.Wrap(err, "clear cart")
		}
		return nil
	})
}

func (r *GormOrderRepository) FindByID(ctx context.Context, orderID int64) (*domain.Order, error) {
	var order domain.Order
	err := r.db.WithContext(ctx).First(&order, orderID).Error
	if err != nil {
		if pkgerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, pkgerrors.Wrap(err, "find order")
	}
	return &order, nil
}

func (r *GormOrderRepository) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	var order domain.Order
	err := r.db.WithContext(ctx).Where("number = ?", number).First(&order).Error
	if err != nil {
		if pkgerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, pkgerrors.Wrap(err, "find order by number")
	}
	return &order, nil
}

func (r *GormOrderRepository) FindLines(ctx context.Context, orderID int64) ([]*domain.OrderLine, error) {
	var lines []*domain.OrderLine
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&lines).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "find order lines")
	}
	return lines, nil
}

// UpdateTransition 条件写回：WHERE 里带上转移前的状态，
// 状态在读与写之间被别人改掉时影响行数为零，返回状态冲突。
// 只写本次转移实际设置的列，未置位的时间戳不落库。
func (r *GormOrderRepository) UpdateTransition(ctx context.Context, order *domain.Order, previousStatus domain.Status) error {
	updates := map[string]interface{}{
		"status":     order.Status,
		"pay_status": order.PayStatus,
	}
	if order.CancelReason != "" {
		updates["cancel_reason"] = order.CancelReason
	}
	if order.RejectReason != "" {
		updates["reject_reason"] = order.RejectReason
	}
	if order.CheckoutAt != nil {
		updates["checkout_at"] = order.CheckoutAt
	}
	if order.CancelledAt != nil {
		updates["cancelled_at"] = order.CancelledAt
	}
	if order.DeliveredAt != nil {
		updates["delivered_at"] = order.DeliveredAt
	}

	result := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND status = ?", order.ID, previousStatus).
		Updates(updates)
	if result.Error != nil {
		return pkgerrors.Wrap(result.Error, "update order transition")
	}
	if result.RowsAffected == 0 {
		return domain.ErrOrderStateConflict
	}
	return nil
}

func (r *GormOrderRepository) FindByStatusBefore(ctx context.Context, status domain.Status, createdBefore time.Time) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", status, createdBefore).
		Find(&orders).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "find orders by status")
	}
	return orders, nil
}

func (r *GormOrderRepository) FindByUser(ctx context.Context, userID int64, status domain.Status, page, pageSize int) ([]*domain.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Order{}).Where("user_id = ?", userID)
	if status != 0 {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(err, "count orders")
	}

	var orders []*domain.Order
	err := query.Order("created_at desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "page orders")
	}
	return orders, total, nil
}

func (r *GormOrderRepository) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	var rows []struct {
		Status domain.Status
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&domain.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "count orders by status")
	}
	counts := make(map[domain.Status]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

var _ domain.OrderRepository = (*GormOrderRepository)(nil)
