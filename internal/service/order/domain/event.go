// internal/service/order/domain/event.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// 订单生命周期事件，发布到消息总线供下游（通知、结算、风控）消费。
const (
	EventOrderSubmitted  = "order.submitted"
	EventOrderPaid       = "order.paid"
	EventOrderCancelled  = "order.cancelled"
	EventOrderCompleted  = "order.completed"
	EventRefundRequested = "order.refund.requested"
)

// OrderEvent 是发布到 Kafka 的订单事件载荷。
// 退款是异步的：取消已付款订单时状态先翻成 REFUNDED，
// 再发 EventRefundRequested 交给支付侧执行实际退款。
type OrderEvent struct {
	ID          string    `json:"id"` // 事件唯一标识，消费端用于去重
	Type        string    `json:"type"`
	OrderID     int64     `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	UserID      int64     `json:"userId"`
	Amount      int64     `json:"amount"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func NewOrderEvent(eventType string, o *Order, reason string) *OrderEvent {
	return &OrderEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		Amount:      o.Amount,
		Reason:      reason,
		OccurredAt:  time.Now(),
	}
}
