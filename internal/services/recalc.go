// Package services holds the business logic: the dues calculator, the
// ledger aggregator, admin CRUD, bulk import, search and presence. Every
// service works against the abstract document store and carries no
// transport concerns.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sangha/internal/core"
	"sangha/internal/store"
)

// Dues recalculates a member's derived financial fields from scratch:
// months accrued since joining times the monthly due, set against the sum
// of the member's non-archived payments. Re-running with unchanged inputs
// produces identical output, so callers may invoke it redundantly.
type Dues struct {
	store store.Store
	loc   *time.Location
	now   func() time.Time
}

func NewDues(st store.Store, loc *time.Location) *Dues {
	return &Dues{store: st, loc: loc, now: time.Now}
}

// SetClock overrides the accrual clock. Test hook.
func (d *Dues) SetClock(now func() time.Time) {
	d.now = now
}

// CurrentMonth returns the accrual month for "now" in the configured
// timezone.
func (d *Dues) CurrentMonth() core.Month {
	return core.CurrentMonth(d.now(), d.loc)
}

// RecalcMember recomputes and persists totalPaid, expectedTillNow, due and
// advance for one member. An unknown code is a no-op, not an error: the
// recalculation is invoked speculatively after deletions. An unparseable
// join month accrues nothing but still refreshes the paid total.
func (d *Dues) RecalcMember(ctx context.Context, memberCode string) error {
	code := strings.TrimSpace(memberCode)
	if code == "" {
		return nil
	}

	key, doc, err := d.findMember(ctx, code)
	if err != nil {
		return err
	}
	if key == "" {
		slog.DebugContext(ctx, "Recalc skipped, member not found", "member_code", code)
		return nil
	}

	joinMonth, joinOK := core.NormalizeMonth(doc.String("joinMonth"))
	monthlyDue := doc.Cents("monthlyDue")

	totalPaid, err := d.sumActivePayments(ctx, code)
	if err != nil {
		return err
	}

	result := core.ComputeDues(joinMonth, d.CurrentMonth(), monthlyDue, totalPaid)

	fields := store.Document{
		"totalPaid":       result.TotalPaid,
		"expectedTillNow": result.ExpectedTillNow,
		"due":             result.Due,
		"advance":         result.Advance,
		"lastRecalcAt":    d.store.ServerTimestamp(),
	}
	// Persist the normalized join month so future recalculations never
	// re-parse a degraded value.
	if joinOK {
		fields["joinMonth"] = string(joinMonth)
	}

	if err := d.store.Merge(ctx, store.Members, key, fields); err != nil {
		return fmt.Errorf("persist recalc for %s: %w", code, err)
	}

	slog.DebugContext(ctx, "Member recalculated",
		"member_code", code,
		"expected_cents", result.ExpectedTillNow,
		"paid_cents", result.TotalPaid,
		"due_cents", result.Due,
		"advance_cents", result.Advance)
	return nil
}

// findMember resolves a member document by code: first as the document
// key, then by a memberCode field scan. Historical records may be keyed by
// an internal id while the business key lives in the field.
func (d *Dues) findMember(ctx context.Context, code string) (string, store.Document, error) {
	doc, err := d.store.Get(ctx, store.Members, code)
	if err == nil {
		return code, doc, nil
	}
	if err != store.ErrNotFound {
		return "", nil, fmt.Errorf("lookup member %s: %w", code, err)
	}

	matches, err := d.store.Query(ctx, store.Members, "memberCode", code)
	if err != nil {
		return "", nil, fmt.Errorf("scan for member %s: %w", code, err)
	}
	if len(matches) == 0 {
		return "", nil, nil
	}
	return matches[0].Key, matches[0].Fields, nil
}

func (d *Dues) sumActivePayments(ctx context.Context, code string) (int64, error) {
	payments, err := d.store.Query(ctx, store.Payments, "memberCode", code)
	if err != nil {
		return 0, fmt.Errorf("load payments for %s: %w", code, err)
	}
	var total int64
	for _, p := range payments {
		if p.Fields.Bool("archived") {
			continue
		}
		total += p.Fields.Cents("amount")
	}
	return total, nil
}
