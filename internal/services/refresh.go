package services

import (
	"context"
	"log/slog"
)

// RefreshPublisher is the outbound side of the refresh queue.
type RefreshPublisher interface {
	PublishRecalc(ctx context.Context, memberCodes []string) error
}

// AsyncRefresher hands the post-mutation sequence to the worker via the
// queue and falls back to running it inline when publishing fails, so a
// broker outage degrades latency rather than correctness.
type AsyncRefresher struct {
	publisher RefreshPublisher
	fallback  *Ledger
}

func NewAsyncRefresher(p RefreshPublisher, fallback *Ledger) *AsyncRefresher {
	return &AsyncRefresher{publisher: p, fallback: fallback}
}

// RequestRefresh implements Refresher.
func (r *AsyncRefresher) RequestRefresh(ctx context.Context, memberCodes ...string) error {
	err := r.publisher.PublishRecalc(ctx, memberCodes)
	if err == nil {
		return nil
	}
	slog.WarnContext(ctx, "Refresh publish failed, running inline",
		"member_codes", len(memberCodes),
		"error", err)
	return r.fallback.RefreshAfterMutation(ctx, memberCodes...)
}
