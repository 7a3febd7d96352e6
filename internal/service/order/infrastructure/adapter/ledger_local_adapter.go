// internal/service/order/infrastructure/adapter/ledger_local_adapter.go
package adapter

import (
	"context"
	"strconv"

	accountapp "takeout/internal/service/account/application"
	"takeout/internal/service/order/port"
)

// LocalLedgerAdapter 把账本服务接到订单侧的扣款端口上。
type LocalLedgerAdapter struct {
	ledger *accountapp.LedgerService
}

func NewLocalLedgerAdapter(ledger *accountapp.LedgerService) *LocalLedgerAdapter {
	return &LocalLedgerAdapter{ledger: ledger}
}

func (a *LocalLedgerAdapter) Deduct(ctx context.Context, userID int64, amount int64) error {
	return a.ledger.Deduct(ctx, strconv.FormatInt(userID, 10), amount)
}

var _ port.BalanceLedger = (*LocalLedgerAdapter)(nil)
