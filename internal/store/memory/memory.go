// Package memory provides an in-process document store. It is the default
// backend and the reference implementation the service tests run against.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"sangha/internal/store"
)

type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]store.Document

	subMu   sync.Mutex
	nextSub int
	subs    map[string]map[int]func(store.Event)

	// now is swappable in tests.
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		collections: make(map[string]map[string]store.Document),
		subs:        make(map[string]map[int]func(store.Event)),
		now:         time.Now,
	}
}

// SetClock overrides the timestamp source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Get(_ context.Context, collection, key string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return maps.Clone(doc), nil
}

func (s *Store) Query(_ context.Context, collection, field string, value any) ([]store.KeyedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.KeyedDocument
	for key, doc := range s.collections[collection] {
		if scalarEqual(doc[field], value) {
			out = append(out, store.KeyedDocument{Key: key, Fields: maps.Clone(doc)})
		}
	}
	return out, nil
}

func (s *Store) ScanAll(_ context.Context, collection string) ([]store.KeyedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.collections[collection]
	out := make([]store.KeyedDocument, 0, len(docs))
	for key, doc := range docs {
		out = append(out, store.KeyedDocument{Key: key, Fields: maps.Clone(doc)})
	}
	return out, nil
}

func (s *Store) Merge(_ context.Context, collection, key string, fields store.Document) error {
	s.mu.Lock()
	merged := s.mergeLocked(collection, key, fields)
	s.mu.Unlock()

	s.notify(store.Event{Collection: collection, Key: key, Fields: merged})
	return nil
}

func (s *Store) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	_, existed := s.collections[collection][key]
	if existed {
		delete(s.collections[collection], key)
	}
	s.mu.Unlock()

	if existed {
		s.notify(store.Event{Collection: collection, Key: key, Deleted: true})
	}
	return nil
}

func (s *Store) BatchMerge(_ context.Context, collection string, writes []store.KeyedDocument) error {
	if len(writes) > store.MaxBatch {
		return store.ErrBatchSize
	}

	events := make([]store.Event, 0, len(writes))
	s.mu.Lock()
	for _, w := range writes {
		merged := s.mergeLocked(collection, w.Key, w.Fields)
		events = append(events, store.Event{Collection: collection, Key: w.Key, Fields: merged})
	}
	s.mu.Unlock()

	for _, ev := range events {
		s.notify(ev)
	}
	return nil
}

func (s *Store) Subscribe(collection string, fn func(store.Event)) store.Unsubscribe {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.subs[collection] == nil {
		s.subs[collection] = make(map[int]func(store.Event))
	}
	id := s.nextSub
	s.nextSub++
	s.subs[collection][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs[collection], id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) ServerTimestamp() any {
	return store.TimestampToken
}

// mergeLocked upserts fields into the document and returns a copy of the
// merged result. Caller holds s.mu.
func (s *Store) mergeLocked(collection, key string, fields store.Document) store.Document {
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]store.Document)
	}
	doc := s.collections[collection][key]
	if doc == nil {
		doc = make(store.Document, len(fields))
		s.collections[collection][key] = doc
	}
	resolved := maps.Clone(fields)
	store.ResolveTimestamps(resolved, s.now())
	maps.Copy(doc, resolved)
	return maps.Clone(doc)
}

func (s *Store) notify(ev store.Event) {
	s.subMu.Lock()
	fns := make([]func(store.Event), 0, len(s.subs[ev.Collection]))
	for _, fn := range s.subs[ev.Collection] {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// scalarEqual compares two field values, folding the numeric types JSON
// decoding can produce. Non-scalar values never match.
func scalarEqual(a, b any) bool {
	an, aok := normalize(a)
	bn, bok := normalize(b)
	if !aok || !bok {
		return false
	}
	return an == bn
}

func normalize(v any) (any, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string, bool, nil:
		return v, true
	default:
		return nil, false
	}
}
