package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"takeout/internal/service/catalog"
	"takeout/internal/service/order/domain"
	"takeout/internal/service/order/port"
)

// ---- in-memory collaborators ----

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[int64]*domain.Order
	lines  map[int64][]*domain.OrderLine
	nextID int64

	cart         *memCart        // Submit 事务内清空购物车
	failSubmit   bool
	failUpdate   map[int64]error // orderID → 注入的写回错误
	beforeUpdate func()          // 写回前执行一次，模拟读写之间的并发修改
}

func newMemOrderRepo(cart *memCart) *memOrderRepo {
	return &memOrderRepo{
		orders:     make(map[int64]*domain.Order),
		lines:      make(map[int64][]*domain.OrderLine),
		nextID:     1,
		cart:       cart,
		failUpdate: make(map[int64]error),
	}
}

func (r *memOrderRepo) Submit(ctx context.Context, order *domain.Order, lines []*domain.OrderLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSubmit {
		return errors.New("injected storage failure")
	}
	order.ID = r.nextID
	r.nextID++
	stored := *order
	r.orders[order.ID] = &stored
	for _, l := range lines {
		l.OrderID = order.ID
	}
	r.lines[order.ID] = lines
	if r.cart != nil {
		r.cart.clear(order.UserID)
	}
	return nil
}

func (r *memOrderRepo) FindByID(ctx context.Context, orderID int64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (r *memOrderRepo) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.Number == number {
			copied := *o
			return &copied, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *memOrderRepo) FindLines(ctx context.Context, orderID int64) ([]*domain.OrderLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines[orderID], nil
}

func (r *memOrderRepo) UpdateTransition(ctx context.Context, order *domain.Order, previousStatus domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.beforeUpdate != nil {
		hook := r.beforeUpdate
		r.beforeUpdate = nil
		hook()
	}
	if err, ok := r.failUpdate[order.ID]; ok {
		return err
	}
	stored, ok := r.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if stored.Status != previousStatus {
		return domain.ErrOrderStateConflict
	}
	copied := *order
	r.orders[order.ID] = &copied
	return nil
}

func (r *memOrderRepo) FindByStatusBefore(ctx context.Context, status domain.Status, createdBefore time.Time) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.Status == status && o.CreatedAt.Before(createdBefore) {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memOrderRepo) FindByUser(ctx context.Context, userID int64, status domain.Status, page, pageSize int) ([]*domain.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.UserID == userID && (status == 0 || o.Status == status) {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memOrderRepo) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.Status]int64)
	for _, o := range r.orders {
		counts[o.Status]++
	}
	return counts, nil
}

type memCart struct {
	mu    sync.Mutex
	lines map[int64][]*port.CartLine
}

func newMemCart() *memCart {
	return &memCart{lines: make(map[int64][]*port.CartLine)}
}

func (c *memCart) Lines(ctx context.Context, userID int64) ([]*port.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines[userID], nil
}

func (c *memCart) AddLines(ctx context.Context, userID int64, lines []*port.CartLine) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines[userID] = append(c.lines[userID], lines...)
	return nil
}

func (c *memCart) clear(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lines, userID)
}

type stubAddressBook struct {
	addresses map[int64]*port.Address
}

func (b *stubAddressBook) GetAddress(ctx context.Context, addressID int64) (*port.Address, error) {
	if a, ok := b.addresses[addressID]; ok {
		return a, nil
	}
	return nil, domain.ErrAddressMissing
}

type stubLedger struct {
	err   error
	calls []int64 // 每次扣款的金额
}

func (l *stubLedger) Deduct(ctx context.Context, userID int64, amount int64) error {
	l.calls = append(l.calls, amount)
	return l.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.OrderEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event *domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []*domain.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*domain.OrderEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type healthyCatalog struct{}

func (healthyCatalog) FetchItem(ctx context.Context, itemID string) (*catalog.Item, error) {
	return &catalog.Item{ID: itemID, Name: "item-" + itemID, Price: 100, Stock: 99}, nil
}

// ---- fixture ----

type fixture struct {
	svc       *OrderService
	repo      *memOrderRepo
	cart      *memCart
	ledger    *stubLedger
	publisher *recordingPublisher
}

func newFixture() *fixture {
	cart := newMemCart()
	repo := newMemOrderRepo(cart)
	ledger := &stubLedger{}
	publisher := &recordingPublisher{}
	addresses := &stubAddressBook{addresses: map[int64]*port.Address{
		100: {ID: 100, UserID: 7, Receiver: "张三", Detail: "某路 1 号"},
	}}
	svc := NewOrderService(repo, addresses, cart, ledger, publisher, healthyCatalog{},
		15*time.Minute, time.Hour)
	return &fixture{svc: svc, repo: repo, cart: cart, ledger: ledger, publisher: publisher}
}

func (f *fixture) fillCart(userID int64) {
	f.cart.AddLines(context.Background(), userID, []*port.CartLine{
		{ItemID: "d-1", Name: "烤鸭", Price: 5800, Quantity: 2},
		{ItemID: "d-2", Name: "米饭", Price: 200, Quantity: 1},
		{ItemID: "d-3", Name: "可乐", Price: 500, Quantity: 3},
	})
}

func (f *fixture) submit(t *testing.T) *SubmitOrderResult {
	t.Helper()
	f.fillCart(7)
	result, err := f.svc.Submit(context.Background(), SubmitOrderCommand{UserID: 7, AddressID: 100})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return result
}

// ---- tests ----

func TestSubmitOrderScenario(t *testing.T) {
	f := newFixture()
	result := f.submit(t)

	// 2×5800 + 1×200 + 3×500 = 13300
	if result.Amount != 13300 {
		t.Errorf("expected amount 13300, got %d", result.Amount)
	}

	lines, _ := f.repo.FindLines(context.Background(), result.OrderID)
	if len(lines) != 3 {
		t.Errorf("expected 3 order lines, got %d", len(lines))
	}
	if remaining, _ := f.cart.Lines(context.Background(), 7); len(remaining) != 0 {
		t.Errorf("cart must be empty after submit, got %d lines", len(remaining))
	}

	order, _ := f.repo.FindByID(context.Background(), result.OrderID)
	if order.Status != domain.StatusPendingPayment || order.PayStatus != domain.PayStatusUnpaid {
		t.Errorf("fresh order in wrong state: %+v", order)
	}
	if len(f.publisher.ofType(domain.EventOrderSubmitted)) != 1 {
		t.Error("expected one submitted event")
	}
}

func TestSubmitRejectsMissingAddressAndEmptyCart(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Submit(context.Background(), SubmitOrderCommand{UserID: 7, AddressID: 999})
	if !errors.Is(err, domain.ErrAddressMissing) {
		t.Errorf("expected ErrAddressMissing, got %v", err)
	}

	_, err = f.svc.Submit(context.Background(), SubmitOrderCommand{UserID: 7, AddressID: 100})
	if !errors.Is(err, domain.ErrCartEmpty) {
		t.Errorf("expected ErrCartEmpty, got %v", err)
	}
}

func TestSubmitRejectsForeignAddress(t *testing.T) {
	f := newFixture()
	f.fillCart(9)
	// 地址 100 属于用户 7
	_, err := f.svc.Submit(context.Background(), SubmitOrderCommand{UserID: 9, AddressID: 100})
	if !errors.Is(err, domain.ErrAddressMissing) {
		t.Errorf("expected ErrAddressMissing for foreign address, got %v", err)
	}
}

func TestSubmitAtomicity(t *testing.T) {
	f := newFixture()
	f.fillCart(7)
	f.repo.failSubmit = true

	_, err := f.svc.Submit(context.Background(), SubmitOrderCommand{UserID: 7, AddressID: 100})
	if err == nil {
		t.Fatal("expected submit to fail")
	}
	if len(f.repo.orders) != 0 {
		t.Error("failed submit must not leave an order row")
	}
	if remaining, _ := f.cart.Lines(context.Background(), 7); len(remaining) != 3 {
		t.Errorf("failed submit must not clear the cart, got %d lines", len(remaining))
	}
	if len(f.publisher.events) != 0 {
		t.Error("failed submit must not publish events")
	}
}

func TestPaymentIdempotence(t *testing.T) {
	f := newFixture()
	result := f.submit(t)

	if err := f.svc.PaySuccess(context.Background(), result.OrderNumber); err != nil {
		t.Fatalf("first pay: %v", err)
	}
	if err := f.svc.PaySuccess(context.Background(), result.OrderNumber); err != nil {
		t.Fatalf("duplicate pay callback must succeed: %v", err)
	}

	order, _ := f.repo.FindByID(context.Background(), result.OrderID)
	if order.Status != domain.StatusToBeConfirmed || order.PayStatus != domain.PayStatusPaid {
		t.Errorf("after double pay: %+v", order)
	}
	if got := len(f.publisher.ofType(domain.EventOrderPaid)); got != 1 {
		t.Errorf("expected exactly one paid event, got %d", got)
	}
}

func TestPaymentCallbackRaceStaysIdempotent(t *testing.T) {
	f := newFixture()
	result := f.submit(t)

	// 另一个回调在本回调读取之后、写回之前抢先落库：
	// 条件写被拒后重读确认已付款，输家也必须是幂等空操作
	f.repo.beforeUpdate = func() {
		now := time.Now()
		stored := f.repo.orders[result.OrderID]
		stored.Status = domain.StatusToBeConfirmed
		stored.PayStatus = domain.PayStatusPaid
		stored.CheckoutAt = &now
	}

	if err := f.svc.PaySuccess(context.Background(), result.OrderNumber); err != nil {
		t.Fatalf("losing callback must be a no-op, got %v", err)
	}

	order, _ := f.repo.FindByID(context.Background(), result.OrderID)
	if order.Status != domain.StatusToBeConfirmed || order.PayStatus != domain.PayStatusPaid {
		t.Errorf("after racing callbacks: %+v", order)
	}
	if got := len(f.publisher.ofType(domain.EventOrderPaid)); got != 0 {
		t.Errorf("losing callback must not publish a paid event, got %d", got)
	}
}

func TestPayWithBalance(t *testing.T) {
	f := newFixture()
	result := f.submit(t)

	if err := f.svc.PayWithBalance(context.Background(), 7, result.OrderNumber); err != nil {
		t.Fatalf("pay with balance: %v", err)
	}
	if len(f.ledger.calls) != 1 || f.ledger.calls[0] != result.Amount {
		t.Errorf("ledger must be charged the order amount, got %v", f.ledger.calls)
	}
	order, _ := f.repo.FindByID(context.Background(), result.OrderID)
	if order.Status != domain.StatusToBeConfirmed {
		t.Errorf("order not advanced after balance payment: %+v", order)
	}
}

func TestPayWithBalanceLedgerRejection(t *testing.T) {
	f := newFixture()
	result := f.submit(t)
	sentinel := errors.New("insufficient balance")
	f.ledger.err = sentinel

	err := f.svc.PayWithBalance(context.Background(), 7, result.OrderNumber)
	if !errors.Is(err, sentinel) {
		t.Fatalf("ledger rejection must propagate, got %v", err)
	}
	order, _ := f.repo.FindByID(context.Background(), result.OrderID)
	if order.Status != domain.StatusPendingPayment || order.PayStatus != domain.PayStatusUnpaid {
		t.Errorf("rejected payment must leave order untouched: %+v", order)
	}
}

func TestUserCancelPaidOrderRequestsRefund(t *testing.T) {
	f := newFixture()
	result := f.submit(t)
	f.svc.PaySuccess(context.Background(), result.OrderNumber)

	if err := f.svc.UserCancel(context.Background(), 7, result.OrderID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	order, _ := f.repo.FindByID(context.Background(), result.OrderID)
	if order.Status != domain.StatusCancelled || order.PayStatus != domain.PayStatusRefunded {
		t.Errorf("after cancel: %+v", order)
	}
	if got := len(f.publisher.ofType(domain.EventRefundRequested)); got != 1 {
		t.Errorf("expected one refund request event, got %d", got)
	}
}

func TestUserCancelForeignOrder(t *testing.T) {
	f := newFixture()
	result := f.submit(t)

	err := f.svc.UserCancel(context.Background(), 999, result.OrderID)
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("foreign order must look like not-found, got %v", err)
	}
}

func TestAdminLifecycle(t *testing.T) {
	f := newFixture()
	result := f.submit(t)
	ctx := context.Background()
	f.svc.PaySuccess(ctx, result.OrderNumber)

	if err := f.svc.Confirm(ctx, result.OrderID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := f.svc.Deliver(ctx, result.OrderID); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := f.svc.Complete(ctx, result.OrderID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	order, _ := f.repo.FindByID(ctx, result.OrderID)
	if order.Status != domain.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", order.Status)
	}
	if order.DeliveredAt == nil {
		t.Error("completion must record delivery time")
	}

	// 终态之后任何转移都必须报状态冲突
	if err := f.svc.Deliver(ctx, result.OrderID); !errors.Is(err, domain.ErrOrderStateConflict) {
		t.Errorf("expected ErrOrderStateConflict after terminal state, got %v", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture()
	result := f.submit(t)
	f.svc.PaySuccess(context.Background(), result.OrderNumber)

	if err := f.svc.Reject(context.Background(), result.OrderID, ""); err == nil {
		t.Fatal("rejection without reason must fail")
	}
	if err := f.svc.Reject(context.Background(), result.OrderID, "估清"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	order, _ := f.repo.FindByID(context.Background(), result.OrderID)
	if order.RejectReason != "估清" || order.PayStatus != domain.PayStatusRefunded {
		t.Errorf("after reject: %+v", order)
	}
}

func TestRepetitionRefillsCart(t *testing.T) {
	f := newFixture()
	result := f.submit(t)

	if err := f.svc.Repetition(context.Background(), 7, result.OrderID); err != nil {
		t.Fatalf("repetition: %v", err)
	}
	lines, _ := f.cart.Lines(context.Background(), 7)
	if len(lines) != 3 {
		t.Fatalf("expected 3 cart lines after repetition, got %d", len(lines))
	}
}

func TestStatistics(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first := f.submit(t)
	f.svc.PaySuccess(ctx, first.OrderNumber)

	second := f.submit(t)
	f.svc.PaySuccess(ctx, second.OrderNumber)
	f.svc.Confirm(ctx, second.OrderID)
	f.svc.Deliver(ctx, second.OrderID)

	stats, err := f.svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.ToBeConfirmed != 1 || stats.Delivering != 1 || stats.Confirmed != 0 {
		t.Errorf("unexpected statistics: %+v", stats)
	}
}

// ---- sweeps ----

func (r *memOrderRepo) seed(order *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order.ID = r.nextID
	r.nextID++
	stored := *order
	r.orders[order.ID] = &stored
}

func TestPaymentTimeoutSweep(t *testing.T) {
	f := newFixture()
	now := time.Now()

	expired := &domain.Order{Number: "N-expired", UserID: 7,
		Status: domain.StatusPendingPayment, PayStatus: domain.PayStatusUnpaid,
		CreatedAt: now.Add(-16 * time.Minute)}
	fresh := &domain.Order{Number: "N-fresh", UserID: 7,
		Status: domain.StatusPendingPayment, PayStatus: domain.PayStatusUnpaid,
		CreatedAt: now.Add(-10 * time.Minute)}
	f.repo.seed(expired)
	f.repo.seed(fresh)

	if err := f.svc.CancelTimeoutOrders(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	got, _ := f.repo.FindByID(context.Background(), expired.ID)
	if got.Status != domain.StatusCancelled {
		t.Errorf("expired order not cancelled: %+v", got)
	}
	if got.PayStatus != domain.PayStatusUnpaid {
		t.Errorf("unpaid order must stay unpaid after sweep: %+v", got)
	}
	if got.CancelReason != "订单超时，自动取消" {
		t.Errorf("unexpected cancel reason: %q", got.CancelReason)
	}

	untouched, _ := f.repo.FindByID(context.Background(), fresh.ID)
	if untouched.Status != domain.StatusPendingPayment {
		t.Errorf("fresh order must be untouched: %+v", untouched)
	}
}

func TestStuckDeliverySweep(t *testing.T) {
	f := newFixture()
	now := time.Now()

	stuck := &domain.Order{Number: "N-stuck", UserID: 7,
		Status: domain.StatusDelivering, PayStatus: domain.PayStatusPaid,
		CreatedAt: now.Add(-2 * time.Hour)}
	f.repo.seed(stuck)

	if err := f.svc.CompleteDeliveringOrders(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	got, _ := f.repo.FindByID(context.Background(), stuck.ID)
	if got.Status != domain.StatusCompleted {
		t.Errorf("stuck delivery not completed: %+v", got)
	}
	if got.DeliveredAt == nil {
		t.Error("sweep must record delivery time")
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	f := newFixture()
	now := time.Now()

	bad := &domain.Order{Number: "N-bad", UserID: 7,
		Status: domain.StatusPendingPayment, CreatedAt: now.Add(-20 * time.Minute)}
	good := &domain.Order{Number: "N-good", UserID: 7,
		Status: domain.StatusPendingPayment, CreatedAt: now.Add(-20 * time.Minute)}
	f.repo.seed(bad)
	f.repo.seed(good)
	f.repo.failUpdate[bad.ID] = errors.New("injected write failure")

	if err := f.svc.CancelTimeoutOrders(context.Background()); err != nil {
		t.Fatalf("sweep must not abort on a single failure: %v", err)
	}
	got, _ := f.repo.FindByID(context.Background(), good.ID)
	if got.Status != domain.StatusCancelled {
		t.Errorf("sweep must continue past failures: %+v", got)
	}
}
