// internal/service/order/infrastructure/address.go
package infrastructure

import (
	"context"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"takeout/internal/service/order/domain"
	"takeout/internal/service/order/port"
)

// AddressModel 是地址簿表。地址的增删改属于用户中心，这里只读。
type AddressModel struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	UserID   int64  `gorm:"index"`
	Receiver string `gorm:"size:64"`
	Phone    string `gorm:"size:32"`
	Detail   string `gorm:"size:255"`
}

func (AddressModel) TableName() string {
	return "address_book"
}

type GormAddressBook struct {
	db *gorm.DB
}

func NewGormAddressBook(db *gorm.DB) *GormAddressBook {
	return &GormAddressBook{db: db}
}

func (b *GormAddressBook) GetAddress(ctx context.Context, addressID int64) (*port.Address, error) {
	var model AddressModel
	err := b.db.WithContext(ctx).First(&model, addressID).Error
	if err != nil {
		if pkgerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAddressMissing
		}
		return nil, pkgerrors.Wrap(err, "find address")
	}
	return &port.Address{
		ID:       model.ID,
		UserID:   model.UserID,
		Receiver: model.Receiver,
		Phone:    model.Phone,
		Detail:   model.Detail,
	}, nil
}

var _ port.AddressBook = (*GormAddressBook)(nil)
