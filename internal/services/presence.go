package services

import (
	"context"
	"fmt"
	"time"

	"sangha/internal/store"
)

// presenceStaleAfter is how long a visitor heartbeat stays countable.
const presenceStaleAfter = 90 * time.Second

// Presence tracks live site visitors. Each browser session heartbeats
// under its own id; a visitor counts while its last beat is fresh.
type Presence struct {
	store store.Store
	now   func() time.Time
}

func NewPresence(st store.Store) *Presence {
	return &Presence{store: st, now: time.Now}
}

// SetClock overrides the staleness clock. Test hook.
func (p *Presence) SetClock(now func() time.Time) {
	p.now = now
}

// Heartbeat upserts the visitor's presence document.
func (p *Presence) Heartbeat(ctx context.Context, visitorID string) error {
	if visitorID == "" {
		return nil
	}
	err := p.store.Merge(ctx, store.Presence, visitorID, store.Document{
		"lastSeen": p.store.ServerTimestamp(),
	})
	if err != nil {
		return fmt.Errorf("presence heartbeat %s: %w", visitorID, err)
	}
	return nil
}

// Count returns the number of visitors seen within the staleness window.
func (p *Presence) Count(ctx context.Context) (int, error) {
	docs, err := p.store.ScanAll(ctx, store.Presence)
	if err != nil {
		return 0, fmt.Errorf("scan presence: %w", err)
	}
	cutoff := p.now().Add(-presenceStaleAfter)
	count := 0
	for _, d := range docs {
		if p.fresh(d.Fields, cutoff) {
			count++
		}
	}
	return count, nil
}

// Prune deletes stale presence documents so the collection does not grow
// without bound. Meant to run periodically from the worker.
func (p *Presence) Prune(ctx context.Context) (int, error) {
	docs, err := p.store.ScanAll(ctx, store.Presence)
	if err != nil {
		return 0, fmt.Errorf("scan presence: %w", err)
	}
	cutoff := p.now().Add(-presenceStaleAfter)
	pruned := 0
	for _, d := range docs {
		if p.fresh(d.Fields, cutoff) {
			continue
		}
		if err := p.store.Delete(ctx, store.Presence, d.Key); err != nil {
			return pruned, fmt.Errorf("prune presence %s: %w", d.Key, err)
		}
		pruned++
	}
	return pruned, nil
}

func (p *Presence) fresh(fields store.Document, cutoff time.Time) bool {
	ts, err := time.Parse(time.RFC3339Nano, fields.String("lastSeen"))
	if err != nil {
		return false
	}
	return ts.After(cutoff)
}
