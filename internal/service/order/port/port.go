// internal/service/order/port/port.go
package port

import (
	"context"

	"takeout/internal/service/order/domain"
)

// Address 是收货地址，由地址簿服务维护，这里只读。
type Address struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"userId"`
	Receiver string `json:"receiver"`
	Phone    string `json:"phone"`
	Detail   string `json:"detail"`
}

// AddressBook 查询收货地址。地址不存在返回 domain.ErrAddressMissing。
type AddressBook interface {
	GetAddress(ctx context.Context, addressID int64) (*Address, error)
}

// CartLine 是下单视角看到的购物车行。
type CartLine struct {
	ItemID   string
	Name     string
	Price    int64 // 单位：分
	Image    string
	Quantity int
}

// CartAccess 提供下单所需的购物车视图。购物车的清空随订单提交
// 在同一个事务里完成，不经过这个接口；AddLines 用于"再来一单"回填购物车。
type CartAccess interface {
	Lines(ctx context.Context, userID int64) ([]*CartLine, error)
	AddLines(ctx context.Context, userID int64, lines []*CartLine) error
}

// BalanceLedger 扣减用户余额。业务拒绝（冻结、余额不足）原样透出。
type BalanceLedger interface {
	Deduct(ctx context.Context, userID int64, amount int64) error
}

// EventPublisher 发布订单生命周期事件。
// 发布失败只记日志不回滚：事件是通知性质的，不参与订单事务。
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.OrderEvent) error
}
