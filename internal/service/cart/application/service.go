// internal/service/cart/application/service.go
package application

import (
	"context"

	pkgerrors "github.com/pkg/errors"

	"takeout/internal/pkg/logger"
	"takeout/internal/service/cart/domain"
	"takeout/internal/service/catalog"
)

// CartService 维护用户购物车。
// 加购时向目录服务取商品快照；目录不可用时拿到的是降级快照，
// 这里选择拒绝加购而不是把零价格商品写进购物车。
type CartService struct {
	repo    domain.CartRepository
	catalog catalog.Service
}

func NewCartService(repo domain.CartRepository, catalogSvc catalog.Service) *CartService {
	return &CartService{repo: repo, catalog: catalogSvc}
}

// Add 把商品加入购物车：已有则数量 +1，没有则以目录快照新建一行。
func (s *CartService) Add(ctx context.Context, userID int64, itemID string) error {
	line, err := s.repo.FindLine(ctx, userID, itemID)
	if err != nil && !pkgerrors.Is(err, domain.ErrCartLineNotFound) {
		return pkgerrors.Wrap(err, "find cart line")
	}
	if line != nil {
		return s.repo.UpdateQuantity(ctx, line.ID, line.Quantity+1)
	}

	item, err := s.catalog.FetchItem(ctx, itemID)
	if err != nil {
		return err
	}
	if catalog.Degraded(item) {
		// 降级快照没有真实价格，不能作为计价依据
		logger.Ctx(ctx).Warn().Str("item_id", itemID).Msg("refusing to add degraded item to cart")
		return catalog.ErrItemNotFound
	}

	return s.repo.Insert(ctx, &domain.CartLine{
		UserID:   userID,
		ItemID:   item.ID,
		Name:     item.Name,
		Price:    item.Price,
		Image:    item.Image,
		Quantity: 1,
	})
}

// Sub 把商品数量 -1，减到零时整行删除。
func (s *CartService) Sub(ctx context.Context, userID int64, itemID string) error {
	line, err := s.repo.FindLine(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if line.Quantity <= 1 {
		return s.repo.DeleteLine(ctx, line.ID)
	}
	return s.repo.UpdateQuantity(ctx, line.ID, line.Quantity-1)
}

func (s *CartService) List(ctx context.Context, userID int64) ([]*domain.CartLine, error) {
	return s.repo.FindByUser(ctx, userID)
}

func (s *CartService) Clean(ctx context.Context, userID int64) error {
	return s.repo.DeleteByUser(ctx, userID)
}
