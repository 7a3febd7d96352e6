// internal/service/cart/domain/cart.go
package domain

import (
	"context"
	"errors"
	"time"
)

var ErrCartLineNotFound = errors.New("cart line not found")

// CartLine 是购物车里的一行商品。
// Name/Price/Image 是加购时从目录服务抓取的快照，
// 下单时以快照价计算金额，目录后续调价不影响已加购的行。
type CartLine struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index:idx_user_item" json:"userId"`
	ItemID    string    `gorm:"index:idx_user_item" json:"itemId"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"` // 单位：分
	Image     string    `json:"image"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

func (CartLine) TableName() string {
	return "shopping_cart"
}

// Amount 返回本行小计，单位分。
func (l *CartLine) Amount() int64 {
	return l.Price * int64(l.Quantity)
}

type CartRepository interface {
	FindByUser(ctx context.Context, userID int64) ([]*CartLine, error)
	FindLine(ctx context.Context, userID int64, itemID string) (*CartLine, error)
	Insert(ctx context.Context, line *CartLine) error
	UpdateQuantity(ctx context.Context, lineID int64, quantity int) error
	DeleteLine(ctx context.Context, lineID int64) error
	DeleteByUser(ctx context.Context, userID int64) error
}
