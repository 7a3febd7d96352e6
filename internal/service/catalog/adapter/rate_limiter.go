// internal/service/catalog/adapter/rate_limiter.go
package adapter

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"

	"takeout/internal/pkg/logger"
	pkgredis "takeout/internal/pkg/redis"
	"takeout/internal/service/catalog"
)

const tokenBucketScriptName = "catalog_token_bucket"

// 令牌桶：按速率补充令牌，桶满为止；取不到令牌即拒绝。
// KEYS[1] 桶的状态 hash；ARGV: 速率/秒、容量、当前时间(ms)
var tokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('hmget', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil then
    tokens = capacity
    ts = now
end

-- 按流逝时间补充令牌
local elapsed = math.max(0, now - ts)
tokens = math.min(capacity, tokens + elapsed * rate / 1000)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call('hmset', key, 'tokens', tokens, 'ts', now)
redis.call('pexpire', key, 60000)
return allowed
`

// TokenBucketAdmission 基于 Redis Lua 脚本实现对目录服务的准入控制。
// 多实例共享同一个桶，整体限制对下游的压力。
// Redis 不可用时放行（fail-open）：准入控制是保护手段，不能变成新的故障点。
type TokenBucketAdmission struct {
	client   *pkgredis.Client
	key      string
	rate     int
	capacity int
}

func NewTokenBucketAdmission(client *pkgredis.Client, dependency string, ratePerSecond, burst int) (*TokenBucketAdmission, error) {
	if err := client.LoadScriptFromContent(tokenBucketScriptName, tokenBucketScript); err != nil {
		return nil, pkgerrors.Wrap(err, "load token bucket script")
	}
	return &TokenBucketAdmission{
		client:   client,
		key:      "admission:bucket:{" + dependency + "}",
		rate:     ratePerSecond,
		capacity: burst,
	}, nil
}

func (a *TokenBucketAdmission) Allow(ctx context.Context) error {
	result, err := a.client.RunScript(ctx, tokenBucketScriptName,
		[]string{a.key}, a.rate, a.capacity, nowMillis())
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("admission control unavailable, failing open")
		return nil
	}
	allowed, ok := result.(int64)
	if !ok {
		return nil
	}
	if allowed != 1 {
		return catalog.ErrRateLimited
	}
	return nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

var _ Admission = (*TokenBucketAdmission)(nil)
