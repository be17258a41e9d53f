package services

import (
	"context"
	"fmt"
	"log/slog"

	"sangha/internal/core"
	"sangha/internal/store"
)

// Refresher is how mutating services request the post-mutation
// recalculation sequence. Implementations may run it inline or hand it to
// a worker; either way the per-member recalc happens before the global
// rollup.
type Refresher interface {
	RequestRefresh(ctx context.Context, memberCodes ...string) error
}

// Ledger aggregates organization-wide statistics. Both aggregations are
// recompute-from-scratch over current store state; no incremental deltas.
type Ledger struct {
	store store.Store
	dues  *Dues
}

func NewLedger(st store.Store, dues *Dues) *Ledger {
	return &Ledger{store: st, dues: dues}
}

// RefreshAfterMutation runs the fixed post-mutation sequence: recalculate
// every touched member, then the member rollup, then the fund. The order
// matters — the rollup reads the derived fields the recalc just wrote.
// The sequence is best-effort and eventually consistent: each write is an
// atomic per-document merge but there is no cross-document transaction.
func (l *Ledger) RefreshAfterMutation(ctx context.Context, memberCodes ...string) error {
	for _, code := range memberCodes {
		if err := l.dues.RecalcMember(ctx, code); err != nil {
			return err
		}
	}
	if err := l.UpdateGlobalStats(ctx); err != nil {
		return err
	}
	return l.RecalcFund(ctx)
}

// RequestRefresh implements Refresher inline.
func (l *Ledger) RequestRefresh(ctx context.Context, memberCodes ...string) error {
	return l.RefreshAfterMutation(ctx, memberCodes...)
}

// UpdateGlobalStats rolls the already-persisted per-member derived fields
// up into the global snapshot. Callers must recalculate affected members
// first or the rollup reads stale values.
func (l *Ledger) UpdateGlobalStats(ctx context.Context) error {
	members, err := l.store.ScanAll(ctx, store.Members)
	if err != nil {
		return fmt.Errorf("scan members: %w", err)
	}

	var stats core.GlobalStats
	for _, m := range members {
		stats.TotalMembers++
		stats.TotalCollectedYTD += m.Fields.Cents("totalPaid")
		stats.TotalDues += m.Fields.Cents("due")
		stats.TotalAdvance += m.Fields.Cents("advance")
	}

	err = l.store.Merge(ctx, store.Stats, store.GlobalStatsKey, store.Document{
		"totalMembers":      stats.TotalMembers,
		"totalCollectedYTD": stats.TotalCollectedYTD,
		"totalDues":         stats.TotalDues,
		"totalAdvance":      stats.TotalAdvance,
		"updatedAt":         l.store.ServerTimestamp(),
	})
	if err != nil {
		return fmt.Errorf("persist global stats: %w", err)
	}

	slog.DebugContext(ctx, "Global stats updated",
		"members", stats.TotalMembers,
		"collected_cents", stats.TotalCollectedYTD,
		"dues_cents", stats.TotalDues)
	return nil
}

// RecalcFund recomputes the fund position from every non-archived payment
// and every transaction, independent of per-member staleness: the fund
// must reflect all payments even when a member recalc was missed.
func (l *Ledger) RecalcFund(ctx context.Context) error {
	payments, err := l.store.ScanAll(ctx, store.Payments)
	if err != nil {
		return fmt.Errorf("scan payments: %w", err)
	}
	var collected int64
	for _, p := range payments {
		if p.Fields.Bool("archived") {
			continue
		}
		collected += p.Fields.Cents("amount")
	}

	txs, err := l.store.ScanAll(ctx, store.Transactions)
	if err != nil {
		return fmt.Errorf("scan transactions: %w", err)
	}
	var otherIncome, expense int64
	for _, t := range txs {
		switch core.TransactionType(t.Fields.String("type")) {
		case core.Income:
			otherIncome += t.Fields.Cents("amount")
		case core.Expense:
			expense += t.Fields.Cents("amount")
		}
	}

	fund := collected + otherIncome - expense

	err = l.store.Merge(ctx, store.Stats, store.GlobalStatsKey, store.Document{
		"totalCollectedYTD": collected,
		"totalOtherIncome":  otherIncome,
		"totalExpense":      expense,
		"availableFund":     fund,
		"updatedAt":         l.store.ServerTimestamp(),
	})
	if err != nil {
		return fmt.Errorf("persist fund stats: %w", err)
	}

	slog.DebugContext(ctx, "Fund recalculated",
		"collected_cents", collected,
		"other_income_cents", otherIncome,
		"expense_cents", expense,
		"fund_cents", fund)
	return nil
}

// GlobalStats reads the last successfully recomputed snapshot. A missing
// snapshot decodes as all zeros.
func (l *Ledger) GlobalStats(ctx context.Context) (core.GlobalStats, error) {
	doc, err := l.store.Get(ctx, store.Stats, store.GlobalStatsKey)
	if err == store.ErrNotFound {
		return core.GlobalStats{}, nil
	}
	if err != nil {
		return core.GlobalStats{}, fmt.Errorf("read global stats: %w", err)
	}
	var stats core.GlobalStats
	if err := store.Decode(doc, &stats); err != nil {
		return core.GlobalStats{}, err
	}
	return stats, nil
}
