// internal/service/cart/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"takeout/internal/service/cart/domain"
)

type GormCartRepository struct {
	db *gorm.DB
}

func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

func (r *GormCartRepository) FindByUser(ctx context.Context, userID int64) ([]*domain.CartLine, error) {
	var lines []*domain.CartLine
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&lines).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "find cart lines")
	}
	return lines, nil
}

func (r *GormCartRepository) FindLine(ctx context.Context, userID int64, itemID string) (*domain.CartLine, error) {
	var line domain.CartLine
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		First(&line).Error
	if err != nil {
		if pkgerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCartLineNotFound
		}
		return nil, pkgerrors.Wrap(err, "find cart line")
	}
	return &line, nil
}

func (r *GormCartRepository) Insert(ctx context.Context, line *domain.CartLine) error {
	return pkgerrors.Wrap(r.db.WithContext(ctx).Create(line).Error, "insert cart line")
}

func (r *GormCartRepository) UpdateQuantity(ctx context.Context, lineID int64, quantity int) error {
	return pkgerrors.Wrap(
		r.db.WithContext(ctx).Model(&domain.CartLine{}).
			Where("id = ?", lineID).
			Update("quantity", quantity).Error,
		"update cart quantity")
}

func (r *GormCartRepository) DeleteLine(ctx context.Context, lineID int64) error {
	return pkgerrors.Wrap(
		r.db.WithContext(ctx).Delete(&domain.CartLine{}, lineID).Error,
		"delete cart line")
}

func (r *GormCartRepository) DeleteByUser(ctx context.Context, userID int64) error {
	return pkgerrors.Wrap(
		r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.CartLine{}).Error,
		"clean cart")
}

var _ domain.CartRepository = (*GormCartRepository)(nil)
