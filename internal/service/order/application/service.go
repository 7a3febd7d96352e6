// internal/service/order/application/service.go
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"takeout/internal/pkg/logger"
	"takeout/internal/service/catalog"
	"takeout/internal/service/order/domain"
	"takeout/internal/service/order/port"
)

var (
	ordersSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_submitted_total",
		Help: "Orders successfully submitted.",
	})
	sweepTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_sweep_transitions_total",
		Help: "Order transitions forced by the timeout sweeps.",
	}, []string{"sweep"})
)

const (
	paymentTimeoutReason = "订单超时，自动取消"
)

// OrderService 驱动订单状态机。所有身份都显式入参，
// 用户侧操作会校验订单归属，归属不符按不存在处理。
type OrderService struct {
	repo      domain.OrderRepository
	addresses port.AddressBook
	cart      port.CartAccess
	ledger    port.BalanceLedger
	publisher port.EventPublisher
	catalog   catalog.Service

	paymentTimeout  time.Duration
	deliveryTimeout time.Duration
}

func NewOrderService(
	repo domain.OrderRepository,
	addresses port.AddressBook,
	cart port.CartAccess,
	ledger port.BalanceLedger,
	publisher port.EventPublisher,
	catalogSvc catalog.Service,
	paymentTimeout, deliveryTimeout time.Duration,
) *OrderService {
	return &OrderService{
		repo:            repo,
		addresses:       addresses,
		cart:            cart,
		ledger:          ledger,
		publisher:       publisher,
		catalog:         catalogSvc,
		paymentTimeout:  paymentTimeout,
		deliveryTimeout: deliveryTimeout,
	}
}

// newOrderNumber 生成唯一订单号：毫秒时间戳 + uuid 前缀。
// 时间戳让订单号大体有序，uuid 保证同毫秒内不撞号。
func newOrderNumber() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// Submit 提交订单：校验地址与购物车，按加购时的快照价计算金额，
// 订单行、明细行、清空购物车在一个事务里落库。
func (s *OrderService) Submit(ctx context.Context, cmd SubmitOrderCommand) (*SubmitOrderResult, error) {
	address, err := s.addresses.GetAddress(ctx, cmd.AddressID)
	if err != nil {
		return nil, err
	}
	if address.UserID != cmd.UserID {
		return nil, domain.ErrAddressMissing
	}

	cartLines, err := s.cart.Lines(ctx, cmd.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load cart")
	}
	if len(cartLines) == 0 {
		return nil, domain.ErrCartEmpty
	}

	now := time.Now()
	order := &domain.Order{
		Number:      newOrderNumber(),
		UserID:      cmd.UserID,
		AddressID:   cmd.AddressID,
		Consignee:   address.Receiver,
		Phone:       address.Phone,
		AddressText: address.Detail,
		Status:      domain.StatusPendingPayment,
		PayStatus:   domain.PayStatusUnpaid,
		Remark:      cmd.Remark,
		CreatedAt:   now,
	}

	lines := make([]*domain.OrderLine, 0, len(cartLines))
	for _, cl := range cartLines {
		// 提单前再探一次目录，商品已下架就拦下；目录不可用不拦单，
		// 降级探测只产生一条告警，金额仍按快照价计算。
		if item, ferr := s.catalog.FetchItem(ctx, cl.ItemID); ferr == nil && catalog.Degraded(item) {
			logger.Ctx(ctx).Warn().Str("item_id", cl.ItemID).
				Msg("catalog degraded during submit, keeping cart snapshot price")
		} else if pkgerrors.Is(ferr, catalog.ErrItemNotFound) {
			return nil, catalog.ErrItemNotFound
		}

		lines = append(lines, &domain.OrderLine{
			ItemID:   cl.ItemID,
			Name:     cl.Name,
			Price:    cl.Price,
			Image:    cl.Image,
			Quantity: cl.Quantity,
		})
		order.Amount += cl.Price * int64(cl.Quantity)
	}

	if err := s.repo.Submit(ctx, order, lines); err != nil {
		return nil, pkgerrors.Wrap(err, "submit order")
	}
	ordersSubmitted.Inc()
	s.publish(ctx, domain.NewOrderEvent(domain.EventOrderSubmitted, order, ""))

	logger.Ctx(ctx).Info().
		Str("order_number", order.Number).
		Int64("user_id", cmd.UserID).
		Int64("amount", order.Amount).
		Msg("order submitted")

	return &SubmitOrderResult{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Amount:      order.Amount,
		SubmittedAt: now,
	}, nil
}

// PaySuccess 处理支付成功回调，按订单号定位。
// 回调可能重复投递，重复回调是幂等空操作。
func (s *OrderService) PaySuccess(ctx context.Context, orderNumber string) error {
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return err
	}
	previous := order.Status

	changed, err := order.MarkPaid(time.Now())
	if err != nil {
		return err
	}
	if !changed {
		logger.Ctx(ctx).Info().Str("order_number", orderNumber).Msg("duplicate payment callback ignored")
		return nil
	}

	if err := s.repo.UpdateTransition(ctx, order, previous); err != nil {
		// 两个回调同时到达时条件写只放过一个；输家重读确认订单已付款后
		// 同样按幂等空操作处理，而不是向支付渠道报状态冲突
		if pkgerrors.Is(err, domain.ErrOrderStateConflict) {
			current, ferr := s.repo.FindByNumber(ctx, orderNumber)
			if ferr == nil && current.PayStatus == domain.PayStatusPaid {
				logger.Ctx(ctx).Info().Str("order_number", orderNumber).Msg("duplicate payment callback ignored")
				return nil
			}
		}
		return err
	}
	s.publish(ctx, domain.NewOrderEvent(domain.EventOrderPaid, order, ""))
	return nil
}

// PayWithBalance 余额支付：先走账本扣减，成功后推进订单状态。
// 扣减的业务拒绝（冻结、余额不足）原样透出给调用方。
func (s *OrderService) PayWithBalance(ctx context.Context, userID int64, orderNumber string) error {
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return domain.ErrOrderNotFound
	}
	if order.PayStatus == domain.PayStatusPaid {
		return nil
	}
	if order.Status != domain.StatusPendingPayment {
		return domain.ErrOrderStateConflict
	}

	if err := s.ledger.Deduct(ctx, userID, order.Amount); err != nil {
		return err
	}
	return s.PaySuccess(ctx, orderNumber)
}

// UserCancel 用户取消自己的订单。别人的订单一律按不存在处理，
// 不向调用方泄露订单是否存在。
func (s *OrderService) UserCancel(ctx context.Context, userID, orderID int64) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return domain.ErrOrderNotFound
	}
	previous := order.Status

	needRefund, err := order.CancelByUser(time.Now())
	if err != nil {
		return err
	}
	if err := s.repo.UpdateTransition(ctx, order, previous); err != nil {
		return err
	}

	s.publish(ctx, domain.NewOrderEvent(domain.EventOrderCancelled, order, order.CancelReason))
	if needRefund {
		s.publish(ctx, domain.NewOrderEvent(domain.EventRefundRequested, order, order.CancelReason))
	}
	return nil
}

// Confirm 商家接单。
func (s *OrderService) Confirm(ctx context.Context, orderID int64) error {
	return s.transition(ctx, orderID, func(o *domain.Order) (bool, error) {
		return false, o.Confirm()
	}, "")
}

// Reject 商家拒单，原因必填。
func (s *OrderService) Reject(ctx context.Context, orderID int64, reason string) error {
	if reason == "" {
		return pkgerrors.New("rejection reason is required")
	}
	return s.transition(ctx, orderID, func(o *domain.Order) (bool, error) {
		return o.Reject(reason, time.Now())
	}, reason)
}

// AdminCancel 管理员取消，原因必填。
func (s *OrderService) AdminCancel(ctx context.Context, orderID int64, reason string) error {
	if reason == "" {
		return pkgerrors.New("cancel reason is required")
	}
	return s.transition(ctx, orderID, func(o *domain.Order) (bool, error) {
		return o.CancelByAdmin(reason, time.Now())
	}, reason)
}

// Deliver 开始派送。
func (s *OrderService) Deliver(ctx context.Context, orderID int64) error {
	return s.transition(ctx, orderID, func(o *domain.Order) (bool, error) {
		return false, o.Deliver()
	}, "")
}

// Complete 完成订单。
func (s *OrderService) Complete(ctx context.Context, orderID int64) error {
	return s.transition(ctx, orderID, func(o *domain.Order) (bool, error) {
		if err := o.Complete(time.Now()); err != nil {
			return false, err
		}
		return false, nil
	}, "")
}

// transition 执行一次管理员侧状态转移：读取 → 内存转移 → 条件写回 → 发事件。
func (s *OrderService) transition(ctx context.Context, orderID int64, apply func(*domain.Order) (needRefund bool, err error), reason string) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	previous := order.Status

	needRefund, err := apply(order)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateTransition(ctx, order, previous); err != nil {
		return err
	}

	switch order.Status {
	case domain.StatusCancelled:
		s.publish(ctx, domain.NewOrderEvent(domain.EventOrderCancelled, order, reason))
		if needRefund {
			s.publish(ctx, domain.NewOrderEvent(domain.EventRefundRequested, order, reason))
		}
	case domain.StatusCompleted:
		s.publish(ctx, domain.NewOrderEvent(domain.EventOrderCompleted, order, ""))
	}
	return nil
}

// GetOrder 查询订单详情（含明细行）。userID 为 0 表示管理员视角，跳过归属校验。
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if userID != 0 && order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	lines, err := s.repo.FindLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines
	return order, nil
}

// ListOrders 分页查询用户历史订单。status 为 0 表示不过滤状态。
func (s *OrderService) ListOrders(ctx context.Context, userID int64, status domain.Status, page, pageSize int) (*OrderPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	orders, total, err := s.repo.FindByUser(ctx, userID, status, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Total: total, Records: orders}, nil
}

// Statistics 统计各进行中状态的订单量，供商家看板展示。
func (s *OrderService) Statistics(ctx context.Context) (*OrderStatistics, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &OrderStatistics{
		ToBeConfirmed: counts[domain.StatusToBeConfirmed],
		Confirmed:     counts[domain.StatusConfirmed],
		Delivering:    counts[domain.StatusDelivering],
	}, nil
}

// Repetition 再来一单：把历史订单的明细行回填到购物车。
func (s *OrderService) Repetition(ctx context.Context, userID, orderID int64) error {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return err
	}
	lines := make([]*port.CartLine, 0, len(order.Lines))
	for _, l := range order.Lines {
		lines = append(lines, &port.CartLine{
			ItemID:   l.ItemID,
			Name:     l.Name,
			Price:    l.Price,
			Image:    l.Image,
			Quantity: l.Quantity,
		})
	}
	return s.cart.AddLines(ctx, userID, lines)
}

// CancelTimeoutOrders 支付超时清扫：把创建超过付款时限仍未付款的订单取消。
// 单个订单失败只记日志，不中断整批。
func (s *OrderService) CancelTimeoutOrders(ctx context.Context) error {
	deadline := time.Now().Add(-s.paymentTimeout)
	orders, err := s.repo.FindByStatusBefore(ctx, domain.StatusPendingPayment, deadline)
	if err != nil {
		return pkgerrors.Wrap(err, "select timed out orders")
	}

	for _, order := range orders {
		previous := order.Status
		needRefund, err := order.CancelByAdmin(paymentTimeoutReason, time.Now())
		if err == nil {
			err = s.repo.UpdateTransition(ctx, order, previous)
		}
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("order_number", order.Number).
				Msg("payment timeout sweep failed for order, continuing")
			continue
		}
		sweepTransitions.WithLabelValues("payment_timeout").Inc()
		s.publish(ctx, domain.NewOrderEvent(domain.EventOrderCancelled, order, paymentTimeoutReason))
		if needRefund {
			s.publish(ctx, domain.NewOrderEvent(domain.EventRefundRequested, order, paymentTimeoutReason))
		}
	}

	if len(orders) > 0 {
		logger.Ctx(ctx).Info().Int("count", len(orders)).Msg("payment timeout sweep finished")
	}
	return nil
}

// CompleteDeliveringOrders 派送滞留清扫：派送中超过时限的订单强制完成。
func (s *OrderService) CompleteDeliveringOrders(ctx context.Context) error {
	deadline := time.Now().Add(-s.deliveryTimeout)
	orders, err := s.repo.FindByStatusBefore(ctx, domain.StatusDelivering, deadline)
	if err != nil {
		return pkgerrors.Wrap(err, "select stuck deliveries")
	}

	for _, order := range orders {
		previous := order.Status
		err := order.Complete(time.Now())
		if err == nil {
			err = s.repo.UpdateTransition(ctx, order, previous)
		}
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("order_number", order.Number).
				Msg("stuck delivery sweep failed for order, continuing")
			continue
		}
		sweepTransitions.WithLabelValues("stuck_delivery").Inc()
		s.publish(ctx, domain.NewOrderEvent(domain.EventOrderCompleted, order, ""))
	}

	if len(orders) > 0 {
		logger.Ctx(ctx).Info().Int("count", len(orders)).Msg("stuck delivery sweep finished")
	}
	return nil
}

// publish 发布事件，失败只告警。事件不参与订单事务。
func (s *OrderService) publish(ctx context.Context, event *domain.OrderEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("event_type", event.Type).
			Str("order_number", event.OrderNumber).
			Msg("publish order event failed")
	}
}
