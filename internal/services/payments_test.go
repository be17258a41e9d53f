package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sangha/internal/core"
	"sangha/internal/store"
)

func TestPaymentsAddNormalizesMonth(t *testing.T) {
	ctx := context.Background()
	st, _, ledger := newTestLedger(t)
	payments := NewPayments(st, ledger)

	seedMember(t, st, "Anil-Das", "2024-06", 10000)

	key, err := payments.Add(ctx, PaymentInput{
		MemberCode:  "Anil-Das",
		Amount:      10000,
		Method:      "bank transfer",
		PaidAtMonth: "12-oct-2024",
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if strings.Contains(key, " ") {
		t.Errorf("key %q contains spaces", key)
	}
	if !strings.HasPrefix(key, "Anil-Das_2024-10_10000_bank_transfer_") {
		t.Errorf("key = %q, want deterministic prefix", key)
	}

	doc, err := st.Get(ctx, store.Payments, key)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if got := doc.String("paidAtMonth"); got != "2024-10" {
		t.Errorf("paidAtMonth = %q, want 2024-10", got)
	}
	if got := doc.String("note"); got != "Manual add" {
		t.Errorf("note = %q, want default", got)
	}
	if doc.Bool("archived") {
		t.Error("new payment must start unarchived")
	}

	// Refresh ran inline: payment toward a future month is all advance.
	if got := memberField(t, st, "Anil-Das", "totalPaid"); got != 10000 {
		t.Errorf("totalPaid = %d, want 10000", got)
	}
}

func TestPaymentsAddRejectsUnparseableMonth(t *testing.T) {
	st, _, ledger := newTestLedger(t)
	payments := NewPayments(st, ledger)

	_, err := payments.Add(context.Background(), PaymentInput{
		MemberCode:  "Anil-Das",
		Amount:      10000,
		PaidAtMonth: "2024-13",
	})
	if !errors.Is(err, core.ErrBadJoinMonth) {
		t.Fatalf("err = %v, want ErrBadJoinMonth", err)
	}
}

func TestPaymentsUpdateRecalcsBothMembers(t *testing.T) {
	ctx := context.Background()
	st, _, ledger := newTestLedger(t)
	payments := NewPayments(st, ledger)

	seedMember(t, st, "Anil-Das", "2024-09", 10000)
	seedMember(t, st, "Rina-Roy", "2024-09", 10000)
	seedPayment(t, st, "p1", "Anil-Das", 10000, false)
	if err := ledger.RefreshAfterMutation(ctx, "Anil-Das", "Rina-Roy"); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}

	err := payments.Update(ctx, "p1", PaymentInput{
		MemberCode:  "Rina-Roy",
		Amount:      10000,
		PaidAtMonth: "2024-09",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// The payment moved: the old member loses the credit, the new one
	// gains it.
	if got := memberField(t, st, "Anil-Das", "totalPaid"); got != 0 {
		t.Errorf("old member totalPaid = %d, want 0", got)
	}
	if got := memberField(t, st, "Rina-Roy", "totalPaid"); got != 10000 {
		t.Errorf("new member totalPaid = %d, want 10000", got)
	}
}

func TestPaymentsArchiveExcludesFromTotals(t *testing.T) {
	ctx := context.Background()
	st, _, ledger := newTestLedger(t)
	payments := NewPayments(st, ledger)

	seedMember(t, st, "Anil-Das", "2024-09", 10000)
	seedPayment(t, st, "p1", "Anil-Das", 10000, false)
	if err := ledger.RefreshAfterMutation(ctx, "Anil-Das"); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}

	if err := payments.Archive(ctx, "p1", "entered twice"); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	doc, _ := st.Get(ctx, store.Payments, "p1")
	if !doc.Bool("archived") {
		t.Fatal("payment not archived")
	}
	if got := doc.String("archivedReason"); got != "entered twice" {
		t.Errorf("archivedReason = %q", got)
	}
	if got := memberField(t, st, "Anil-Das", "totalPaid"); got != 0 {
		t.Errorf("totalPaid = %d, want 0 after archiving", got)
	}
	stats, _ := ledger.GlobalStats(ctx)
	if stats.TotalCollectedYTD != 0 {
		t.Errorf("TotalCollectedYTD = %d, want 0", stats.TotalCollectedYTD)
	}
}

func TestPaymentsListFilterAndLimit(t *testing.T) {
	ctx := context.Background()
	st, _, ledger := newTestLedger(t)
	payments := NewPayments(st, ledger)

	seedMember(t, st, "Anil-Das", "2024-01", 10000)
	for _, key := range []string{"a1", "a2", "a3"} {
		seedPayment(t, st, key, "Anil-Das", 10000, false)
	}
	seedPayment(t, st, "b1", "Rina-Roy", 5000, false)

	all, err := payments.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len = %d, want 4", len(all))
	}

	anil, err := payments.List(ctx, "anil", 2)
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(anil) != 2 {
		t.Fatalf("filtered len = %d, want limit 2", len(anil))
	}
	for _, p := range anil {
		if p.MemberCode != "Anil-Das" {
			t.Errorf("filter leaked %q", p.MemberCode)
		}
	}
}

func TestPaymentsDeleteUnknown(t *testing.T) {
	st, _, ledger := newTestLedger(t)
	payments := NewPayments(st, ledger)

	if err := payments.Delete(context.Background(), "ghost"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
