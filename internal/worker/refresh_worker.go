package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sangha/internal/amqp"
	"sangha/internal/services"
	"sangha/internal/store"
)

// RefreshWorker consumes refresh messages and runs the recalculation
// sequence against the store. It also runs a periodic full refresh as a
// backup in case queue messages are lost.
type RefreshWorker struct {
	store    store.Store
	ledger   *services.Ledger
	importer *services.Importer
	presence *services.Presence
}

func NewRefreshWorker(st store.Store, ledger *services.Ledger, importer *services.Importer, presence *services.Presence) *RefreshWorker {
	return &RefreshWorker{
		store:    st,
		ledger:   ledger,
		importer: importer,
		presence: presence,
	}
}

// HandleMessage processes a single refresh message from AMQP. Errors
// propagate to the consumer, which requeues the delivery.
func (w *RefreshWorker) HandleMessage(ctx context.Context, msg *amqp.RefreshMessage) error {
	switch msg.Kind {
	case amqp.KindRecalc:
		slog.InfoContext(ctx, "Processing recalc message",
			"member_codes", len(msg.MemberCodes))
		// A recalc without codes means "everything": scheduled refreshes
		// and member deletions both use it.
		if len(msg.MemberCodes) == 0 {
			return w.FullRefresh(ctx)
		}
		if err := w.ledger.RefreshAfterMutation(ctx, msg.MemberCodes...); err != nil {
			return fmt.Errorf("refresh after mutation: %w", err)
		}
		return nil

	case amqp.KindImport:
		if w.importer == nil {
			slog.WarnContext(ctx, "No importer configured, dropping import message")
			return nil
		}
		summary, err := w.importer.Run(ctx)
		if err != nil {
			return fmt.Errorf("run import: %w", err)
		}
		slog.InfoContext(ctx, "Import message processed",
			"members_imported", summary.MembersImported,
			"payments_imported", summary.PaymentsImported)
		return nil

	default:
		// Unknown kinds are dropped, not requeued: a redelivery would
		// fail the same way forever.
		slog.WarnContext(ctx, "Dropping message with unknown kind", "kind", msg.Kind)
		return nil
	}
}

// FullRefresh recalculates every member, then the rollup and the fund.
// This is the backup mechanism in case AMQP messages are lost, and it
// also moves each member's accrual forward when a month boundary passes
// without any mutation.
func (w *RefreshWorker) FullRefresh(ctx context.Context) error {
	members, err := w.store.ScanAll(ctx, store.Members)
	if err != nil {
		return fmt.Errorf("scan members: %w", err)
	}

	codes := make([]string, 0, len(members))
	for _, m := range members {
		code := m.Fields.String("memberCode")
		if code == "" {
			code = m.Key
		}
		codes = append(codes, code)
	}

	started := time.Now()
	if err := w.ledger.RefreshAfterMutation(ctx, codes...); err != nil {
		return fmt.Errorf("full refresh: %w", err)
	}

	slog.InfoContext(ctx, "Full refresh completed",
		"members", len(codes),
		"duration", time.Since(started))
	return nil
}

// RunPeriodic executes the periodic maintenance loop: a full refresh and
// a presence prune every interval, until the context is cancelled. The
// first run happens immediately.
func (w *RefreshWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.FullRefresh(ctx); err != nil {
			slog.ErrorContext(ctx, "Periodic refresh failed", "error", err)
		}
		if w.presence != nil {
			if pruned, err := w.presence.Prune(ctx); err != nil {
				slog.ErrorContext(ctx, "Presence prune failed", "error", err)
			} else if pruned > 0 {
				slog.InfoContext(ctx, "Pruned stale presence entries", "count", pruned)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
