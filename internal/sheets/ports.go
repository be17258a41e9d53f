package sheets

import (
	"context"
)

// Ports for outbound adapters.
type (
	// MemberRow is one member row as read from the source sheet, already
	// coerced to canonical types. MonthlyDue is in cents.
	MemberRow struct {
		MemberCode string
		Name       string
		Gender     string
		Phone      string
		JoinMonth  string
		MonthlyDue int64
	}

	// PaymentRow is one payment row as read from the source sheet.
	// Amount is in cents.
	PaymentRow struct {
		MemberCode  string
		Amount      int64
		Method      string
		PaidAtMonth string
	}

	// RowSource reads the two import sheets. Implementations return rows
	// in sheet order; the importer decides what to skip.
	RowSource interface {
		MemberRows(ctx context.Context) ([]MemberRow, error)
		PaymentRows(ctx context.Context) ([]PaymentRow, error)
	}
)
