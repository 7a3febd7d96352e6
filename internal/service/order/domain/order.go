// internal/service/order/domain/order.go
package domain

import (
	"time"
)

// 订单状态机：
// 待付款 → 待接单 → 已接单 → 派送中 → 已完成
// 待付款/待接单 可以取消；管理员可以从任意非终态取消。
type Status int

const (
	StatusPendingPayment Status = iota + 1 // 待付款
	StatusToBeConfirmed                    // 待接单
	StatusConfirmed                        // 已接单
	StatusDelivering                       // 派送中
	StatusCompleted                        // 已完成
	StatusCancelled                        // 已取消
)

func (s Status) String() string {
	switch s {
	case StatusPendingPayment:
		return "PENDING_PAYMENT"
	case StatusToBeConfirmed:
		return "TO_BE_CONFIRMED"
	case StatusConfirmed:
		return "CONFIRMED"
	case StatusDelivering:
		return "DELIVERING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal 报告该状态是否为终态。
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PayStatus int

const (
	PayStatusUnpaid   PayStatus = iota // 未付款
	PayStatusPaid                      // 已付款
	PayStatusRefunded                  // 已退款
)

// Order 是订单聚合根。状态只能通过下面的转移方法修改，
// 每个方法校验当前状态，非法转移返回 ErrOrderStateConflict。
type Order struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Number    string `gorm:"uniqueIndex;size:64" json:"number"`
	UserID    int64  `gorm:"index" json:"userId"`
	AddressID int64  `json:"addressId"`
	// 收货信息是下单时的快照，地址簿后续修改不影响已生成的订单
	Consignee    string    `gorm:"size:64" json:"consignee"`
	Phone        string    `gorm:"size:32" json:"phone"`
	AddressText  string    `gorm:"size:255" json:"addressText"`
	Amount       int64     `json:"amount"` // 单位：分
	Status       Status    `gorm:"index" json:"status"`
	PayStatus    PayStatus `json:"payStatus"`
	Remark       string    `json:"remark"`
	CancelReason string    `json:"cancelReason"`
	RejectReason string    `json:"rejectReason"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
	// 事件时间戳只在对应转移发生时才有值，指针类型避免把零值时间写进 DATETIME 列
	CheckoutAt  *time.Time `json:"checkoutAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`

	Lines []*OrderLine `gorm:"-" json:"lines,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderLine 是下单时购物车内容的快照，创建后不再修改。
type OrderLine struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID  int64  `gorm:"index" json:"orderId"`
	ItemID   string `json:"itemId"`
	Name     string `json:"name"`
	Price    int64  `json:"price"` // 下单时的单价快照，单位分
	Image    string `json:"image"`
	Quantity int    `json:"quantity"`
}

func (OrderLine) TableName() string {
	return "order_line"
}

// MarkPaid 处理支付成功回调：待付款 → 待接单。
// 支付回调可能重复投递，已付款的订单上重复调用是幂等空操作。
func (o *Order) MarkPaid(now time.Time) (changed bool, err error) {
	if o.PayStatus == PayStatusPaid {
		return false, nil
	}
	if o.Status != StatusPendingPayment {
		return false, ErrOrderStateConflict
	}
	o.Status = StatusToBeConfirmed
	o.PayStatus = PayStatusPaid
	o.CheckoutAt = &now
	return true, nil
}

// CancelByUser 用户主动取消：只允许在待付款/待接单阶段。
// 已付款的订单在同一次转移里把支付状态翻成已退款，退款动作异步执行。
func (o *Order) CancelByUser(now time.Time) (needRefund bool, err error) {
	if o.Status > StatusToBeConfirmed {
		return false, ErrOrderStateConflict
	}
	needRefund = o.PayStatus == PayStatusPaid
	if needRefund {
		o.PayStatus = PayStatusRefunded
	}
	o.Status = StatusCancelled
	o.CancelReason = "用户取消"
	o.CancelledAt = &now
	return needRefund, nil
}

// Confirm 商家接单：待接单 → 已接单。
func (o *Order) Confirm() error {
	if o.Status != StatusToBeConfirmed {
		return ErrOrderStateConflict
	}
	o.Status = StatusConfirmed
	return nil
}

// Reject 商家拒单：只允许拒绝待接单的订单，必须给出拒单原因。
func (o *Order) Reject(reason string, now time.Time) (needRefund bool, err error) {
	if o.Status != StatusToBeConfirmed {
		return false, ErrOrderStateConflict
	}
	needRefund = o.PayStatus == PayStatusPaid
	if needRefund {
		o.PayStatus = PayStatusRefunded
	}
	o.Status = StatusCancelled
	o.RejectReason = reason
	o.CancelledAt = &now
	return needRefund, nil
}

// CancelByAdmin 管理员取消：任意非终态都可以。
func (o *Order) CancelByAdmin(reason string, now time.Time) (needRefund bool, err error) {
	if o.Status.Terminal() {
		return false, ErrOrderStateConflict
	}
	needRefund = o.PayStatus == PayStatusPaid
	if needRefund {
		o.PayStatus = PayStatusRefunded
	}
	o.Status = StatusCancelled
	o.CancelReason = reason
	o.CancelledAt = &now
	return needRefund, nil
}

// Deliver 开始派送：已接单 → 派送中。
func (o *Order) Deliver() error {
	if o.Status != StatusConfirmed {
		return ErrOrderStateConflict
	}
	o.Status = StatusDelivering
	return nil
}

// Complete 完成订单：派送中 → 已完成，记录送达时间。
func (o *Order) Complete(now time.Time) error {
	if o.Status != StatusDelivering {
		return ErrOrderStateConflict
	}
	o.Status = StatusCompleted
	o.DeliveredAt = &now
	return nil
}
