package memory

import (
	"context"
	"testing"

	"sangha/internal/sheets"
)

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	st := New(
		[]sheets.MemberRow{{MemberCode: "Anil-Das", Name: "Anil Das", JoinMonth: "2024-06"}},
		[]sheets.PaymentRow{{MemberCode: "Anil-Das", Amount: 10000, PaidAtMonth: "2024-07"}},
	)

	members, err := st.MemberRows(ctx)
	if err != nil {
		t.Fatalf("MemberRows: %v", err)
	}
	members[0].Name = "mutated"

	again, _ := st.MemberRows(ctx)
	if again[0].Name != "Anil Das" {
		t.Error("caller mutation leaked into the store")
	}

	payments, err := st.PaymentRows(ctx)
	if err != nil {
		t.Fatalf("PaymentRows: %v", err)
	}
	if len(payments) != 1 || payments[0].Amount != 10000 {
		t.Fatalf("payments = %+v", payments)
	}
}

func TestSetRows(t *testing.T) {
	st := New(nil, nil)
	st.SetRows([]sheets.MemberRow{{Name: "Rina Roy", JoinMonth: "2024-08"}}, nil)

	members, _ := st.MemberRows(context.Background())
	if len(members) != 1 || members[0].Name != "Rina Roy" {
		t.Fatalf("members = %+v", members)
	}
}
