// internal/service/order/application/dto.go
package application

import (
	"time"

	"takeout/internal/service/order/domain"
)

type SubmitOrderCommand struct {
	UserID    int64  `json:"-"`
	AddressID int64  `json:"addressId"`
	Remark    string `json:"remark"`
}

type SubmitOrderResult struct {
	OrderID     int64     `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Amount      int64     `json:"amount"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type OrderPage struct {
	Total   int64           `json:"total"`
	Records []*domain.Order `json:"records"`
}

// OrderStatistics 是商家看板上各进行中状态的订单数量。
type OrderStatistics struct {
	ToBeConfirmed int64 `json:"toBeConfirmed"`
	Confirmed     int64 `json:"confirmed"`
	Delivering    int64 `json:"delivering"`
}
