package ledger

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestSnapshotSettle(t *testing.T) {
	s := NewSnapshot(uuid.New())
	s.AddReceipts([]Receipt{{Amount: d(10000)}, {Amount: d(2000)}})
	s.AddAdvancePayments([]AdvancePayment{{Amount: d(3000), RefundedAmount: d(1000)}})
	s.AddContractorPayments([]ContractorPayment{{Amount: d(2000)}})
	s.AddExpenses([]Expense{
		{Amount: d(1500), PaymentStatus: PaymentStatusPaid},
		{Amount: d(700), PaymentStatus: PaymentStatusUnpaid},
		{Amount: d(900), PaymentStatus: PaymentStatusPaid, Category: CategoryContractorPayments},
	})

	now := time.Now()
	s.Settle(now)

	// 12000 - (3000 - 1000) - 2000 - 1500
	if want := d(6500); !s.Balance.Equal(want) {
		t.Errorf("Balance = %s, want %s", s.Balance, want)
	}
	if !s.TotalExpensesPaid.Equal(d(1500)) {
		t.Errorf("TotalExpensesPaid = %s, want 1500", s.TotalExpensesPaid)
	}
	if !s.ComputedAt.Equal(now) {
		t.Errorf("ComputedAt = %v, want %v", s.ComputedAt, now)
	}
	if s.Partial {
		t.Error("snapshot should not be partial")
	}

	c := s.Components()
	if !c.TotalPaid.Equal(d(3000)) || !c.TotalRefunded.Equal(d(1000)) || !c.TotalExpenses.Equal(d(1500)) {
		t.Errorf("Components = %+v", c)
	}
}

func TestSnapshotClampsRefundViolations(t *testing.T) {
	over := AdvancePayment{ID: uuid.New(), Amount: d(1000), RefundedAmount: d(1500)}
	negative := AdvancePayment{ID: uuid.New(), Amount: d(1000), RefundedAmount: d(-200)}

	s := NewSnapshot(uuid.New())
	found := s.AddAdvancePayments([]AdvancePayment{over, negative})
	s.Settle(time.Now())

	if len(found) != 2 || len(s.Violations) != 2 {
		t.Fatalf("violations = %d (snapshot %d), want 2", len(found), len(s.Violations))
	}
	if found[0].RecordID != over.ID || !found[0].Limit.Equal(d(1000)) {
		t.Errorf("first violation = %+v", found[0])
	}
	if found[1].RecordID != negative.ID || !found[1].Limit.IsZero() {
		t.Errorf("second violation = %+v", found[1])
	}
	// refunds clamp to 1000 and 0, so the outstanding principal is 1000
	if want := d(-1000); !s.Balance.Equal(want) {
		t.Errorf("Balance = %s, want %s", s.Balance, want)
	}
}

func TestSnapshotClampsNegativeAdvance(t *testing.T) {
	advance := AdvancePayment{ID: uuid.New(), Amount: d(-100), RefundedAmount: d(-200)}

	s := NewSnapshot(uuid.New())
	s.AddReceipts([]Receipt{{Amount: d(500)}})
	found := s.AddAdvancePayments([]AdvancePayment{advance})
	s.Settle(time.Now())

	if len(found) != 2 {
		t.Fatalf("violations = %+v, want amount and refundedAmount", found)
	}
	if found[0].Field != "amount" || !found[0].Value.Equal(d(-100)) || !found[0].Limit.IsZero() {
		t.Errorf("amount violation = %+v", found[0])
	}
	if found[1].Field != "refundedAmount" || !found[1].Limit.IsZero() {
		t.Errorf("refund violation = %+v", found[1])
	}
	if !s.TotalAdvancesPaid.IsZero() || !s.TotalRefunded.IsZero() {
		t.Errorf("advance totals = %s paid %s refunded, want 0 and 0", s.TotalAdvancesPaid, s.TotalRefunded)
	}
	// a broken advance never adds to the balance
	if want := d(500); !s.Balance.Equal(want) {
		t.Errorf("Balance = %s, want %s", s.Balance, want)
	}
}

func TestSnapshotFailedStreamsOrder(t *testing.T) {
	s := NewSnapshot(uuid.New())
	if s.Err() != nil {
		t.Fatalf("complete snapshot Err = %v, want nil", s.Err())
	}

	cause := errors.New("timeout")
	s.MarkFailed(StreamExpenses, cause)
	s.MarkFailed(StreamReceipts, cause)
	s.MarkFailed(StreamExpenses, cause)
	s.Settle(time.Now())

	want := []Stream{StreamReceipts, StreamExpenses}
	if !s.Partial || !slices.Equal(s.FailedStreams, want) {
		t.Errorf("FailedStreams = %v (partial %v), want %v", s.FailedStreams, s.Partial, want)
	}

	err := s.Err()
	if !errors.Is(err, ErrPartialSnapshot) || !errors.Is(err, ErrStreamRead) || !errors.Is(err, cause) {
		t.Errorf("Err = %v, want partial snapshot wrapping the stream errors", err)
	}
}
