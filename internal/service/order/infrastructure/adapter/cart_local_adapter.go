// internal/service/order/infrastructure/adapter/cart_local_adapter.go
package adapter

import (
	"context"

	cartdomain "takeout/internal/service/cart/domain"
	"takeout/internal/service/order/port"
)

// LocalCartAdapter 把购物车仓储适配成下单侧需要的视图。
// 购物车与订单同进程部署，直接走仓储，不绕一圈 HTTP。
type LocalCartAdapter struct {
	repo cartdomain.CartRepository
}

func NewLocalCartAdapter(repo cartdomain.CartRepository) *LocalCartAdapter {
	return &LocalCartAdapter{repo: repo}
}

func (a *LocalCartAdapter) Lines(ctx context.Context, userID int64) ([]*port.CartLine, error) {
	cartLines, err := a.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	lines := make([]*port.CartLine, 0, len(cartLines))
	for _, cl := range cartLines {
		lines = append(lines, &port.CartLine{
			ItemID:   cl.ItemID,
			Name:     cl.Name,
			Price:    cl.Price,
			Image:    cl.Image,
			Quantity: cl.Quantity,
		})
	}
	return lines, nil
}

func (a *LocalCartAdapter) AddLines(ctx context.Context, userID int64, lines []*port.CartLine) error {
	for _, l := range lines {
		err := a.repo.Insert(ctx, &cartdomain.CartLine{
			UserID:   userID,
			ItemID:   l.ItemID,
			Name:     l.Name,
			Price:    l.Price,
			Image:    l.Image,
			Quantity: l.Quantity,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

var _ port.CartAccess = (*LocalCartAdapter)(nil)
