// internal/service/account/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"takeout/internal/service/account/domain"
)

// AccountModel 是账户表的数据库模型。
type AccountModel struct {
	UserID    string `gorm:"primaryKey;column:user_id;size:64"`
	Balance   int64  `gorm:"column:balance;not null"`
	Status    string `gorm:"column:status;size:16;not null"`
	UpdatedAt time.Time
}

func (AccountModel) TableName() string { return "account" }

// GormAccountRepository 是 AccountRepository 的 GORM 实现。
type GormAccountRepository struct {
	db *gorm.DB
}

func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

func (r *GormAccountRepository) FindByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	var model AccountModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error
	if err != nil {
		if pkgerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, pkgerrors.Wrap(err, "query account")
	}
	return &domain.Account{
		UserID:    model.UserID,
		Balance:   model.Balance,
		Status:    domain.Status(model.Status),
		UpdatedAt: model.UpdatedAt,
	}, nil
}

// DeductIfBalance 用 WHERE balance = ? 实现比较并交换：
// 影响行数为 0 即条件不再成立，由应用层决定重试。
func (r *GormAccountRepository) DeductIfBalance(ctx context.Context, userID string, observed, newBalance int64, freeze bool) (bool, error) {
	updates := map[string]interface{}{
		"balance":    newBalance,
		"updated_at": time.Now(),
	}
	if freeze {
		updates["status"] = string(domain.StatusFrozen)
	}

	result := r.db.WithContext(ctx).
		Model(&AccountModel{}).
		Where("user_id = ? AND balance = ?", userID, observed).
		Updates(updates)
	if result.Error != nil {
		return false, pkgerrors.Wrap(result.Error, "conditional balance update")
	}
	return result.RowsAffected > 0, nil
}

func (r *GormAccountRepository) Insert(ctx context.Context, account *domain.Account) error {
	model := AccountModel{
		UserID:    account.UserID,
		Balance:   account.Balance,
		Status:    string(account.Status),
		UpdatedAt: time.Now(),
	}
	return pkgerrors.Wrap(r.db.WithContext(ctx).Create(&model).Error, "insert account")
}
