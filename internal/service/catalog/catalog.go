// internal/service/catalog/catalog.go
package catalog

import (
	"context"
	"errors"
)

// Item 是商品目录服务返回的商品信息，价格单位为分。
type Item struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Stock int    `json:"stock"`
	Image string `json:"image"`
}

// FallbackName 是降级商品的标记名。收到这个名字说明目录服务当时不可用。
const FallbackName = "商品暂不可用"

// FallbackItem 构造结构完整的降级商品：零价格、零库存、标记名。
// 上层拿到的永远是合法的 Item，不需要判空。
func FallbackItem(id string) *Item {
	return &Item{ID: id, Name: FallbackName, Price: 0, Stock: 0}
}

// Degraded 判断一个商品是否为降级结果。
func Degraded(item *Item) bool {
	return item != nil && item.Name == FallbackName
}

// ErrItemNotFound 是业务性的"查无此商品"，不触发重试与降级。
var ErrItemNotFound = errors.New("item not found")

// ErrRateLimited 表示调用被准入控制拒绝，和下游不可用是两类信号，
// 调用方应按节流语义处理（对应 HTTP 429）。
var ErrRateLimited = errors.New("too many requests to catalog")

// Service 是商品目录的查询接口。
// 实现方负责超时、重试、熔断与降级，保证返回的 Item 永远结构合法。
type Service interface {
	FetchItem(ctx context.Context, itemID string) (*Item, error)
}
