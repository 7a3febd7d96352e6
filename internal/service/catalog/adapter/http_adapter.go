// internal/service/catalog/adapter/http_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"takeout/internal/pkg/config"
	"takeout/internal/pkg/httpclient"
	"takeout/internal/pkg/logger"
	"takeout/internal/pkg/resilience"
	"takeout/internal/service/catalog"
)

var fallbackServed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "catalog_fallback_items_total",
	Help: "Item fetches answered with the degraded fallback item.",
})

// Admission 是目录调用前的准入控制。拒绝时返回 catalog.ErrRateLimited。
type Admission interface {
	Allow(ctx context.Context) error
}

// CatalogHTTPAdapter 实现 catalog.Service：
// 准入控制 → 本地缓存 → 超时/重试/熔断保护下的 HTTP 调用 → 降级商品。
// 瞬时故障永远不会穿透到调用方，调用方拿到的要么是真实商品要么是降级商品。
type CatalogHTTPAdapter struct {
	client    *httpclient.Client
	executor  *resilience.Executor
	admission Admission
	cache     *ItemCache
	baseURL   string
}

func NewCatalogHTTPAdapter(client *httpclient.Client, cfg config.CatalogConfig, admission Admission, cache *ItemCache) *CatalogHTTPAdapter {
	executor := resilience.NewExecutor(resilience.Config{
		Name:             "catalog-service",
		Timeout:          cfg.Timeout,
		MaxAttempts:      cfg.MaxAttempts,
		InitialBackoff:   cfg.InitialBackoff,
		MaxBackoff:       cfg.MaxBackoff,
		BackoffFactor:    cfg.BackoffFactor,
		FailureThreshold: cfg.FailureThreshold,
		CoolDown:         cfg.CoolDown,
	}, classifyCatalogError)
	return &CatalogHTTPAdapter{
		client:    client,
		executor:  executor,
		admission: admission,
		cache:     cache,
		baseURL:   cfg.BaseURL,
	}
}

// FetchItem 查询商品。
// 返回 (降级商品, catalog.ErrRateLimited) 当准入控制或熔断器拒绝调用；
// 返回 (降级商品, nil) 当重试耗尽仍是瞬时故障；
// 返回 (nil, catalog.ErrItemNotFound) 当下游明确说没有这个商品。
func (a *CatalogHTTPAdapter) FetchItem(ctx context.Context, itemID string) (*catalog.Item, error) {
	if a.admission != nil {
		if err := a.admission.Allow(ctx); err != nil {
			fallbackServed.Inc()
			return catalog.FallbackItem(itemID), catalog.ErrRateLimited
		}
	}

	if a.cache != nil {
		if item, ok := a.cache.Get(ctx, itemID); ok {
			return item, nil
		}
	}

	var item catalog.Item
	err := a.executor.Do(ctx, func(ctx context.Context) error {
		params := url.Values{}
		params.Set("id", itemID)
		body, err := a.client.Get(ctx, a.baseURL+"/product", params)
		if err != nil {
			var statusErr *httpclient.StatusError
			if pkgerrors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
				return catalog.ErrItemNotFound
			}
			return err
		}
		if err := json.Unmarshal(body, &item); err != nil {
			return pkgerrors.Wrap(err, "decode catalog response")
		}
		return nil
	})

	switch {
	case err == nil:
		if a.cache != nil {
			a.cache.Set(ctx, &item)
		}
		return &item, nil
	case pkgerrors.Is(err, catalog.ErrItemNotFound):
		return nil, catalog.ErrItemNotFound
	case pkgerrors.Is(err, resilience.ErrCircuitOpen):
		// 熔断打开和限流拒绝对上层是同一类"节流"信号
		fallbackServed.Inc()
		return catalog.FallbackItem(itemID), catalog.ErrRateLimited
	default:
		logger.Ctx(ctx).Warn().Err(err).Str("item_id", itemID).Msg("catalog unavailable, serving fallback item")
		fallbackServed.Inc()
		return catalog.FallbackItem(itemID), nil
	}
}

// classifyCatalogError 在默认网络故障分类之上，把下游 5xx 也视为瞬时故障。
func classifyCatalogError(err error) bool {
	var statusErr *httpclient.StatusError
	if pkgerrors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError
	}
	if pkgerrors.Is(err, catalog.ErrItemNotFound) {
		return false
	}
	return resilience.DefaultClassifier(err)
}

var _ catalog.Service = (*CatalogHTTPAdapter)(nil)
