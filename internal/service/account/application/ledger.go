// internal/service/account/application/ledger.go
package application

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"takeout/internal/pkg/logger"
	"takeout/internal/service/account/domain"
)

// 一次扣减最多重读几次。冲突罕见（单账户并发写很少），3 次足够。
const maxDeductAttempts = 3

var (
	deductConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_deduct_conflicts_total",
		Help: "Conditional balance updates rejected due to concurrent writers.",
	})
	deductRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_deduct_rejections_total",
		Help: "Deductions rejected by business rules.",
	}, []string{"reason"})
)

// LedgerService 实现余额台账的扣减操作。
//
// 扣减走"读取-校验-条件写入"而不是"加锁-写入"：整个流程不持有任何排他锁，
// 由存储层在写入时校验余额是否仍等于读取值。条件失败说明出现了并发写入，
// 此时从读取步骤整体重来——余额是否充足必须基于新数据重新判断，
// 绝不在旧判断的基础上打补丁。
type LedgerService struct {
	repo   domain.AccountRepository
	tracer trace.Tracer
}

func NewLedgerService(repo domain.AccountRepository, tracer trace.Tracer) *LedgerService {
	return &LedgerService{repo: repo, tracer: tracer}
}

// Deduct 从 userID 的账户扣减 amount（单位：分）。
// 扣减后余额恰好为 0 时，同一次条件写入中把账户置为 FROZEN。
func (s *LedgerService) Deduct(ctx context.Context, userID string, amount int64) error {
	ctx, span := s.tracer.Start(ctx, "ledger.Deduct", trace.WithAttributes(
		attribute.String("account.user_id", userID),
		attribute.Int64("deduct.amount", amount),
	))
	defer span.End()

	for attempt := 1; attempt <= maxDeductAttempts; attempt++ {
		account, err := s.repo.FindByUserID(ctx, userID)
		if err != nil {
			span.RecordError(err)
			return err
		}
		if account.Status == domain.StatusFrozen {
			deductRejections.WithLabelValues("frozen").Inc()
			return domain.ErrAccountFrozen
		}
		if account.Balance < amount {
			deductRejections.WithLabelValues("insufficient").Inc()
			return domain.ErrInsufficientBalance
		}

		remain := account.Balance - amount
		ok, err := s.repo.DeductIfBalance(ctx, userID, account.Balance, remain, remain == 0)
		if err != nil {
			span.RecordError(err)
			return err
		}
		if ok {
			span.SetAttributes(attribute.Int64("balance.after", remain))
			logger.Ctx(ctx).Info().
				Str("user_id", userID).
				Int64("amount", amount).
				Int64("remain", remain).
				Msg("balance deducted")
			return nil
		}

		// 条件写入被拒：余额在读取与写入之间被其他请求改动，整体重来
		deductConflicts.Inc()
		span.AddEvent("conditional update rejected, retrying from read")
	}

	span.SetStatus(codes.Error, "deduct retries exhausted")
	return domain.ErrConcurrencyExhausted
}

// GetAccount 查询账户信息。
func (s *LedgerService) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	return s.repo.FindByUserID(ctx, userID)
}
