// internal/service/account/domain/account.go
package domain

import (
	"errors"
	"time"
)

// Status 是账户状态。余额扣减到 0 时账户按业务规则被冻结。
type Status string

const (
	StatusNormal Status = "NORMAL"
	StatusFrozen Status = "FROZEN"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountFrozen 冻结账户拒绝一切扣减
	ErrAccountFrozen = errors.New("account is frozen")
	// ErrInsufficientBalance 余额不足时拒绝而不是截断
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrConcurrencyExhausted 乐观锁冲突重试次数耗尽
	ErrConcurrencyExhausted = errors.New("balance update conflicted too many times")
)

// Account 是用户的余额账户。余额以分为单位，永不为负。
type Account struct {
	UserID    string
	Balance   int64
	Status    Status
	UpdatedAt time.Time
}
