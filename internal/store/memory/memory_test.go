package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"sangha/internal/store"
)

func TestMergeIsNonDestructive(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Merge(ctx, store.Members, "A-1", store.Document{"name": "Anil", "monthlyDue": 10000}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := s.Merge(ctx, store.Members, "A-1", store.Document{"due": 5000}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	doc, err := s.Get(ctx, store.Members, "A-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.String("name") != "Anil" {
		t.Errorf("merge dropped existing field, name = %q", doc.String("name"))
	}
	if doc.Cents("due") != 5000 {
		t.Errorf("due = %d, want 5000", doc.Cents("due"))
	}
}

func TestGetNotFound(t *testing.T) {
	s := New()
	if _, err := s.Get(context.Background(), store.Members, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestQueryFieldEquality(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Merge(ctx, store.Payments, "p1", store.Document{"memberCode": "A-1", "amount": 100})
	s.Merge(ctx, store.Payments, "p2", store.Document{"memberCode": "A-2", "amount": 200})
	s.Merge(ctx, store.Payments, "p3", store.Document{"memberCode": "A-1", "amount": 300})

	got, err := s.Query(ctx, store.Payments, "memberCode", "A-1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	// numeric equality across int and float64 forms
	byAmount, err := s.Query(ctx, store.Payments, "amount", float64(200))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byAmount) != 1 || byAmount[0].Key != "p2" {
		t.Errorf("amount query = %+v", byAmount)
	}
}

func TestSubscribeAndCancel(t *testing.T) {
	s := New()
	ctx := context.Background()

	var events []store.Event
	cancel := s.Subscribe(store.Members, func(ev store.Event) {
		events = append(events, ev)
	})

	s.Merge(ctx, store.Members, "A-1", store.Document{"name": "Anil"})
	s.Delete(ctx, store.Members, "A-1")

	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Deleted || !events[1].Deleted {
		t.Errorf("event order wrong: %+v", events)
	}

	cancel()
	cancel() // second cancel must be harmless
	s.Merge(ctx, store.Members, "A-2", store.Document{"name": "Bela"})
	if len(events) != 2 {
		t.Errorf("event delivered after unsubscribe")
	}
}

func TestDeleteMissingIsSilent(t *testing.T) {
	s := New()
	fired := false
	defer s.Subscribe(store.Members, func(store.Event) { fired = true })()

	if err := s.Delete(context.Background(), store.Members, "ghost"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if fired {
		t.Error("delete of missing document notified subscribers")
	}
}

func TestBatchMergeBounds(t *testing.T) {
	s := New()
	ctx := context.Background()

	writes := make([]store.KeyedDocument, store.MaxBatch+1)
	for i := range writes {
		writes[i] = store.KeyedDocument{Key: "k", Fields: store.Document{}}
	}
	if err := s.BatchMerge(ctx, store.Members, writes); !errors.Is(err, store.ErrBatchSize) {
		t.Errorf("oversized batch err = %v, want ErrBatchSize", err)
	}

	if err := s.BatchMerge(ctx, store.Members, writes[:10]); err != nil {
		t.Errorf("batch: %v", err)
	}
}

func TestServerTimestampResolved(t *testing.T) {
	s := New()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })

	ctx := context.Background()
	s.Merge(ctx, store.Members, "A-1", store.Document{"updatedAt": s.ServerTimestamp()})

	doc, _ := s.Get(ctx, store.Members, "A-1")
	if got := doc.String("updatedAt"); got != fixed.Format(time.RFC3339Nano) {
		t.Errorf("updatedAt = %q, want %q", got, fixed.Format(time.RFC3339Nano))
	}
}
