// internal/service/account/domain/repository.go
package domain

import "context"

// AccountRepository 是账户的持久化接口，由基础设施层实现。
type AccountRepository interface {
	FindByUserID(ctx context.Context, userID string) (*Account, error)

	// DeductIfBalance 执行条件更新：仅当存储中的余额仍等于 observed 时，
	// 才把余额写为 newBalance；freeze 为 true 时在同一次写入中把状态置为 FROZEN。
	// 返回 false 表示条件不再成立（有并发写入），调用方应从读取步骤重来。
	DeductIfBalance(ctx context.Context, userID string, observed, newBalance int64, freeze bool) (bool, error)

	Insert(ctx context.Context, account *Account) error
}
