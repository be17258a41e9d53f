package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"sangha/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "sangha.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMergeIsNonDestructive(t *testing.T) {
	s := newTestStore(t)
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
	if doc.Cents("monthlyDue") != 10000 {
		t.Errorf("monthlyDue = %d, want 10000", doc.Cents("monthlyDue"))
	}
	if doc.Cents("due") != 5000 {
		t.Errorf("due = %d, want 5000", doc.Cents("due"))
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), store.Members, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestQueryFieldEquality(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := func(key string, fields store.Document) {
		t.Helper()
		if err := s.Merge(ctx, store.Payments, key, fields); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
	seed("p1", store.Document{"memberCode": "A-1", "amount": 100, "archived": false})
	seed("p2", store.Document{"memberCode": "A-2", "amount": 200, "archived": true})
	seed("p3", store.Document{"memberCode": "A-1", "amount": 300, "archived": false})

	byCode, err := s.Query(ctx, store.Payments, "memberCode", "A-1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byCode) != 2 {
		t.Fatalf("len = %d, want 2", len(byCode))
	}

	byAmount, err := s.Query(ctx, store.Payments, "amount", float64(200))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byAmount) != 1 || byAmount[0].Key != "p2" {
		t.Errorf("amount query = %+v", byAmount)
	}

	// Booleans are stored as JSON true/false and must be queryable as Go
	// bools.
	archived, err := s.Query(ctx, store.Payments, "archived", true)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(archived) != 1 || archived[0].Key != "p2" {
		t.Errorf("archived query = %+v", archived)
	}
	live, err := s.Query(ctx, store.Payments, "archived", false)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(live) != 2 {
		t.Errorf("live query = %+v, want 2 rows", live)
	}
	if !archived[0].Fields.Bool("archived") {
		t.Errorf("archived field did not round-trip as bool")
	}
}

func TestScanAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Merge(ctx, store.Members, "A-1", store.Document{"name": "Anil"})
	s.Merge(ctx, store.Members, "A-2", store.Document{"name": "Bela"})
	s.Merge(ctx, store.Payments, "p1", store.Document{"amount": 100})

	docs, err := s.ScanAll(ctx, store.Members)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("len = %d, want 2 (collections must not bleed)", len(docs))
	}
}

func TestSubscribeAndCancel(t *testing.T) {
	s := newTestStore(t)
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
	s := newTestStore(t)
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
	s := newTestStore(t)
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

func TestBatchMergeIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	writes := []store.KeyedDocument{
		{Key: "A-1", Fields: store.Document{"name": "Anil"}},
		{Key: "A-2", Fields: store.Document{"name": "Bela"}},
	}
	if err := s.BatchMerge(ctx, store.Members, writes); err != nil {
		t.Fatalf("batch: %v", err)
	}
	docs, err := s.ScanAll(ctx, store.Members)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("len = %d, want 2", len(docs))
	}
}

func TestServerTimestampResolved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	s.Merge(ctx, store.Members, "A-1", store.Document{"updatedAt": s.ServerTimestamp()})

	doc, err := s.Get(ctx, store.Members, "A-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, err := time.Parse(time.RFC3339Nano, doc.String("updatedAt"))
	if err != nil {
		t.Fatalf("updatedAt = %q, not a timestamp: %v", doc.String("updatedAt"), err)
	}
	if got.Before(before) || got.After(time.Now().Add(time.Second)) {
		t.Errorf("updatedAt = %v, not near now", got)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sangha.db")
	ctx := context.Background()

	s1, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s1.Merge(ctx, store.Members, "A-1", store.Document{"name": "Anil"}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	doc, err := s2.Get(ctx, store.Members, "A-1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if doc.String("name") != "Anil" {
		t.Errorf("name = %q, want Anil", doc.String("name"))
	}
}
