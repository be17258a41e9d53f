package services

import (
	"context"
	"testing"
	"time"

	"sangha/internal/store/memory"
)

func TestPresenceCountAndPrune(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	presence := NewPresence(st)

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	st.SetClock(func() time.Time { return base })

	for _, id := range []string{"v1", "v2", "v3"} {
		if err := presence.Heartbeat(ctx, id); err != nil {
			t.Fatalf("Heartbeat %s: %v", id, err)
		}
	}

	// v1 beats again a minute later; the others go quiet.
	st.SetClock(func() time.Time { return base.Add(time.Minute) })
	if err := presence.Heartbeat(ctx, "v1"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	// Two minutes in, only v1's beat is within the 90s window.
	presence.SetClock(func() time.Time { return base.Add(2 * time.Minute) })
	count, err := presence.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}

	pruned, err := presence.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 2 {
		t.Errorf("Prune = %d, want 2", pruned)
	}
	count, _ = presence.Count(ctx)
	if count != 1 {
		t.Errorf("Count after prune = %d, want 1", count)
	}
}

func TestPresenceHeartbeatEmptyID(t *testing.T) {
	presence := NewPresence(memory.New())
	if err := presence.Heartbeat(context.Background(), ""); err != nil {
		t.Fatalf("empty id should be a no-op, got %v", err)
	}
}
