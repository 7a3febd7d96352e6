package domain

import (
	"errors"
	"testing"
	"time"
)

func orderIn(status Status, payStatus PayStatus) *Order {
	return &Order{ID: 1, Number: "N-1", UserID: 7, Amount: 5800, Status: status, PayStatus: payStatus}
}

// 状态机的全域性：每个 (状态, 事件) 组合要么是表里列出的合法转移，
// 要么必须返回 ErrOrderStateConflict 且不改动订单。
func TestTransitionTotality(t *testing.T) {
	now := time.Now()
	allStatuses := []Status{
		StatusPendingPayment, StatusToBeConfirmed, StatusConfirmed,
		StatusDelivering, StatusCompleted, StatusCancelled,
	}

	events := []struct {
		name  string
		legal map[Status]bool
		fire  func(o *Order) error
	}{
		{
			name:  "MarkPaid",
			legal: map[Status]bool{StatusPendingPayment: true},
			fire: func(o *Order) error {
				_, err := o.MarkPaid(now)
				return err
			},
		},
		{
			name:  "CancelByUser",
			legal: map[Status]bool{StatusPendingPayment: true, StatusToBeConfirmed: true},
			fire: func(o *Order) error {
				_, err := o.CancelByUser(now)
				return err
			},
		},
		{
			name:  "Confirm",
			legal: map[Status]bool{StatusToBeConfirmed: true},
			fire:  func(o *Order) error { return o.Confirm() },
		},
		{
			name:  "Reject",
			legal: map[Status]bool{StatusToBeConfirmed: true},
			fire: func(o *Order) error {
				_, err := o.Reject("estimated wait too long", now)
				return err
			},
		},
		{
			name: "CancelByAdmin",
			legal: map[Status]bool{
				StatusPendingPayment: true, StatusToBeConfirmed: true,
				StatusConfirmed: true, StatusDelivering: true,
			},
			fire: func(o *Order) error {
				_, err := o.CancelByAdmin("store closed", now)
				return err
			},
		},
		{
			name:  "Deliver",
			legal: map[Status]bool{StatusConfirmed: true},
			fire:  func(o *Order) error { return o.Deliver() },
		},
		{
			name:  "Complete",
			legal: map[Status]bool{StatusDelivering: true},
			fire:  func(o *Order) error { return o.Complete(now) },
		},
	}

	for _, ev := range events {
		for _, from := range allStatuses {
			o := orderIn(from, PayStatusUnpaid)
			err := ev.fire(o)
			if ev.legal[from] {
				if err != nil {
					t.Errorf("%s from %s: expected success, got %v", ev.name, from, err)
				}
				continue
			}
			if !errors.Is(err, ErrOrderStateConflict) {
				t.Errorf("%s from %s: expected ErrOrderStateConflict, got %v", ev.name, from, err)
			}
			if o.Status != from {
				t.Errorf("%s from %s: failed transition mutated status to %s", ev.name, from, o.Status)
			}
		}
	}
}

func TestMarkPaidIdempotent(t *testing.T) {
	now := time.Now()
	o := orderIn(StatusPendingPayment, PayStatusUnpaid)

	changed, err := o.MarkPaid(now)
	if err != nil || !changed {
		t.Fatalf("first pay: changed=%v err=%v", changed, err)
	}
	if o.Status != StatusToBeConfirmed || o.PayStatus != PayStatusPaid {
		t.Fatalf("after pay: %+v", o)
	}

	changed, err = o.MarkPaid(now.Add(time.Second))
	if err != nil {
		t.Fatalf("duplicate pay callback must be a no-op, got %v", err)
	}
	if changed {
		t.Error("duplicate pay callback must not report a change")
	}
	if o.Status != StatusToBeConfirmed || o.CheckoutAt == nil || !o.CheckoutAt.Equal(now) {
		t.Errorf("duplicate pay callback mutated order: %+v", o)
	}
}

func TestCancelFlipsPayStatusForPaidOrder(t *testing.T) {
	now := time.Now()

	o := orderIn(StatusToBeConfirmed, PayStatusPaid)
	needRefund, err := o.CancelByUser(now)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !needRefund {
		t.Error("cancelling a paid order must request a refund")
	}
	if o.PayStatus != PayStatusRefunded || o.Status != StatusCancelled {
		t.Errorf("after cancel: %+v", o)
	}

	o = orderIn(StatusPendingPayment, PayStatusUnpaid)
	needRefund, err = o.CancelByUser(now)
	if err != nil {
		t.Fatalf("cancel unpaid: %v", err)
	}
	if needRefund {
		t.Error("cancelling an unpaid order must not request a refund")
	}
	if o.PayStatus != PayStatusUnpaid {
		t.Errorf("unpaid cancel must leave pay status untouched: %+v", o)
	}
}

func TestCompleteRecordsDeliveryTime(t *testing.T) {
	now := time.Now()
	o := orderIn(StatusDelivering, PayStatusPaid)
	if err := o.Complete(now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if o.DeliveredAt == nil || !o.DeliveredAt.Equal(now) {
		t.Errorf("delivery time not recorded: %+v", o)
	}
}

// 事件时间戳在对应转移发生前必须保持未置位，
// 否则零值时间会被当成真实数据写进存储。
func TestEventTimestampsOnlySetByTheirTransitions(t *testing.T) {
	now := time.Now()

	o := orderIn(StatusPendingPayment, PayStatusUnpaid)
	if o.CheckoutAt != nil || o.CancelledAt != nil || o.DeliveredAt != nil {
		t.Fatalf("fresh order must have no event timestamps: %+v", o)
	}

	if _, err := o.MarkPaid(now); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if o.CheckoutAt == nil || o.CancelledAt != nil || o.DeliveredAt != nil {
		t.Errorf("payment must set only the checkout timestamp: %+v", o)
	}

	if _, err := o.CancelByUser(now); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if o.CancelledAt == nil || o.DeliveredAt != nil {
		t.Errorf("cancellation must set only the cancel timestamp: %+v", o)
	}
}
