package services

import (
	"context"
	"testing"
	"time"

	"sangha/internal/core"
	"sangha/internal/store"
	"sangha/internal/store/memory"
)

func fixedSept2024() time.Time {
	return time.Date(2024, 9, 15, 12, 0, 0, 0, time.UTC)
}

func newTestLedger(t *testing.T) (*memory.Store, *Dues, *Ledger) {
	t.Helper()
	st := memory.New()
	dues := NewDues(st, time.UTC)
	dues.SetClock(fixedSept2024)
	return st, dues, NewLedger(st, dues)
}

func seedMember(t *testing.T, st *memory.Store, code, joinMonth string, monthlyDue int64) {
	t.Helper()
	err := st.Merge(context.Background(), store.Members, code, store.Document{
		"memberCode": code,
		"name":       code,
		"joinMonth":  joinMonth,
		"monthlyDue": monthlyDue,
	})
	if err != nil {
		t.Fatalf("seed member %s: %v", code, err)
	}
}

func seedPayment(t *testing.T, st *memory.Store, key, code string, amount int64, archived bool) {
	t.Helper()
	err := st.Merge(context.Background(), store.Payments, key, store.Document{
		"memberCode":  code,
		"amount":      amount,
		"paidAtMonth": "2024-07",
		"archived":    archived,
	})
	if err != nil {
		t.Fatalf("seed payment %s: %v", key, err)
	}
}

func memberField(t *testing.T, st *memory.Store, code, field string) int64 {
	t.Helper()
	doc, err := st.Get(context.Background(), store.Members, code)
	if err != nil {
		t.Fatalf("get member %s: %v", code, err)
	}
	return doc.Cents(field)
}

func TestRecalcMemberDue(t *testing.T) {
	ctx := context.Background()
	st, dues, _ := newTestLedger(t)

	// Joined June 2024, 100.00/month, current month September: four
	// accrued months, 400.00 expected.
	seedMember(t, st, "Anil-Das", "2024-06", 10000)
	seedPayment(t, st, "p1", "Anil-Das", 25000, false)

	if err := dues.RecalcMember(ctx, "Anil-Das"); err != nil {
		t.Fatalf("RecalcMember: %v", err)
	}

	if got := memberField(t, st, "Anil-Das", "expectedTillNow"); got != 40000 {
		t.Errorf("expectedTillNow = %d, want 40000", got)
	}
	if got := memberField(t, st, "Anil-Das", "totalPaid"); got != 25000 {
		t.Errorf("totalPaid = %d, want 25000", got)
	}
	if got := memberField(t, st, "Anil-Das", "due"); got != 15000 {
		t.Errorf("due = %d, want 15000", got)
	}
	if got := memberField(t, st, "Anil-Das", "advance"); got != 0 {
		t.Errorf("advance = %d, want 0", got)
	}
}

func TestRecalcMemberAdvance(t *testing.T) {
	ctx := context.Background()
	st, dues, _ := newTestLedger(t)

	seedMember(t, st, "Rina-Roy", "2024-06", 10000)
	seedPayment(t, st, "p1", "Rina-Roy", 45000, false)

	if err := dues.RecalcMember(ctx, "Rina-Roy"); err != nil {
		t.Fatalf("RecalcMember: %v", err)
	}

	if got := memberField(t, st, "Rina-Roy", "due"); got != 0 {
		t.Errorf("due = %d, want 0", got)
	}
	if got := memberField(t, st, "Rina-Roy", "advance"); got != 5000 {
		t.Errorf("advance = %d, want 5000", got)
	}
}

func TestRecalcMemberIgnoresArchivedPayments(t *testing.T) {
	ctx := context.Background()
	st, dues, _ := newTestLedger(t)

	seedMember(t, st, "Anil-Das", "2024-06", 10000)
	seedPayment(t, st, "p1", "Anil-Das", 25000, false)
	seedPayment(t, st, "p2", "Anil-Das", 99999, true)

	if err := dues.RecalcMember(ctx, "Anil-Das"); err != nil {
		t.Fatalf("RecalcMember: %v", err)
	}
	if got := memberField(t, st, "Anil-Das", "totalPaid"); got != 25000 {
		t.Errorf("totalPaid = %d, want 25000 (archived excluded)", got)
	}
}

func TestRecalcMemberIdempotent(t *testing.T) {
	ctx := context.Background()
	st, dues, _ := newTestLedger(t)

	seedMember(t, st, "Anil-Das", "12-oct-2023", 10000)
	seedPayment(t, st, "p1", "Anil-Das", 30000, false)

	for i := 0; i < 3; i++ {
		if err := dues.RecalcMember(ctx, "Anil-Das"); err != nil {
			t.Fatalf("RecalcMember run %d: %v", i+1, err)
		}
	}

	// "12-oct-2023" normalizes to 2023-10: twelve months through 2024-09.
	if got := memberField(t, st, "Anil-Das", "expectedTillNow"); got != 120000 {
		t.Errorf("expectedTillNow = %d, want 120000", got)
	}
	if got := memberField(t, st, "Anil-Das", "due"); got != 90000 {
		t.Errorf("due = %d, want 90000", got)
	}

	doc, err := st.Get(ctx, store.Members, "Anil-Das")
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if got := doc.String("joinMonth"); got != "2023-10" {
		t.Errorf("joinMonth = %q, want normalized %q", got, "2023-10")
	}
}

func TestRecalcMemberUnknownCodeIsNoOp(t *testing.T) {
	ctx := context.Background()
	st, dues, _ := newTestLedger(t)

	if err := dues.RecalcMember(ctx, "Nobody-Here"); err != nil {
		t.Fatalf("RecalcMember: %v", err)
	}
	if _, err := st.Get(ctx, store.Members, "Nobody-Here"); err != store.ErrNotFound {
		t.Errorf("want no document created, got err=%v", err)
	}
}

func TestRecalcMemberUnparseableJoinMonth(t *testing.T) {
	ctx := context.Background()
	st, dues, _ := newTestLedger(t)

	seedMember(t, st, "Anil-Das", "whenever", 10000)
	seedPayment(t, st, "p1", "Anil-Das", 5000, false)

	if err := dues.RecalcMember(ctx, "Anil-Das"); err != nil {
		t.Fatalf("RecalcMember: %v", err)
	}
	// No accrual, but the paid total still lands and everything paid is
	// an advance.
	if got := memberField(t, st, "Anil-Das", "expectedTillNow"); got != 0 {
		t.Errorf("expectedTillNow = %d, want 0", got)
	}
	if got := memberField(t, st, "Anil-Das", "advance"); got != 5000 {
		t.Errorf("advance = %d, want 5000", got)
	}
	doc, _ := st.Get(ctx, store.Members, "Anil-Das")
	if got := doc.String("joinMonth"); got != "whenever" {
		t.Errorf("joinMonth = %q, want untouched original", got)
	}
}

func TestRefreshAfterMutationFundIdentity(t *testing.T) {
	ctx := context.Background()
	st, _, ledger := newTestLedger(t)

	seedMember(t, st, "Anil-Das", "2024-06", 10000)
	seedMember(t, st, "Rina-Roy", "2024-08", 5000)
	seedPayment(t, st, "p1", "Anil-Das", 25000, false)
	seedPayment(t, st, "p2", "Rina-Roy", 12000, false)
	seedPayment(t, st, "p3", "Anil-Das", 7777, true)

	if err := st.Merge(ctx, store.Transactions, "t1", store.Document{
		"type": "income", "title": "Festival donation", "amount": int64(50000),
	}); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	if err := st.Merge(ctx, store.Transactions, "t2", store.Document{
		"type": "expense", "title": "Hall rent", "amount": int64(30000),
	}); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	if err := ledger.RefreshAfterMutation(ctx, "Anil-Das", "Rina-Roy"); err != nil {
		t.Fatalf("RefreshAfterMutation: %v", err)
	}

	stats, err := ledger.GlobalStats(ctx)
	if err != nil {
		t.Fatalf("GlobalStats: %v", err)
	}
	if stats.TotalMembers != 2 {
		t.Errorf("TotalMembers = %d, want 2", stats.TotalMembers)
	}
	if stats.TotalCollectedYTD != 37000 {
		t.Errorf("TotalCollectedYTD = %d, want 37000 (archived excluded)", stats.TotalCollectedYTD)
	}
	if want := int64(37000 + 50000 - 30000); stats.AvailableFund != want {
		t.Errorf("AvailableFund = %d, want %d", stats.AvailableFund, want)
	}
	if stats.TotalOtherIncome != 50000 || stats.TotalExpense != 30000 {
		t.Errorf("income/expense = %d/%d, want 50000/30000",
			stats.TotalOtherIncome, stats.TotalExpense)
	}
	// Anil owes 15000, Rina joined 2024-08 and paid 12000 against 10000
	// expected.
	if stats.TotalDues != 15000 {
		t.Errorf("TotalDues = %d, want 15000", stats.TotalDues)
	}
	if stats.TotalAdvance != 2000 {
		t.Errorf("TotalAdvance = %d, want 2000", stats.TotalAdvance)
	}
}

func TestGlobalStatsMissingSnapshot(t *testing.T) {
	_, _, ledger := newTestLedger(t)
	stats, err := ledger.GlobalStats(context.Background())
	if err != nil {
		t.Fatalf("GlobalStats: %v", err)
	}
	if stats != (core.GlobalStats{}) {
		t.Errorf("stats = %+v, want zero value", stats)
	}
}
