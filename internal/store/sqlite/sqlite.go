// Package sqlite implements the document store on a local sqlite file.
// Documents are stored as JSON blobs keyed by (collection, key); field
// queries go through json_extract. Change subscriptions are delivered
// in-process, which is sufficient for the single-writer deployment this
// service targets.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sangha/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB

	subMu   sync.Mutex
	nextSub int
	subs    map[string]map[int]func(store.Event)
}

var _ store.Store = (*Store)(nil)

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:   db,
		subs: make(map[string]map[int]func(store.Event)),
	}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, key string) (store.Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND key = ?`,
		collection, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return decodeDocument(raw)
}

func (s *Store) Query(ctx context.Context, collection, field string, value any) ([]store.KeyedDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, data FROM documents WHERE collection = ? AND json_extract(data, ?) = ?`,
		collection, "$."+field, bindValue(value),
	)
	if err != nil {
		return nil, fmt.Errorf("query %s.%s: %w", collection, field, err)
	}
	defer rows.Close()
	return collectRows(rows)
}

func (s *Store) ScanAll(ctx context.Context, collection string) ([]store.KeyedDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, data FROM documents WHERE collection = ?`, collection,
	)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	defer rows.Close()
	return collectRows(rows)
}

func (s *Store) Merge(ctx context.Context, collection, key string, fields store.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	merged, err := mergeInTx(ctx, tx, collection, key, fields)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit merge: %w", err)
	}

	s.notify(store.Event{Collection: collection, Key: key, Fields: merged})
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND key = ?`, collection, key,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notify(store.Event{Collection: collection, Key: key, Deleted: true})
	}
	return nil
}

func (s *Store) BatchMerge(ctx context.Context, collection string, writes []store.KeyedDocument) error {
	if len(writes) > store.MaxBatch {
		return store.ErrBatchSize
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	events := make([]store.Event, 0, len(writes))
	for _, w := range writes {
		merged, err := mergeInTx(ctx, tx, collection, w.Key, w.Fields)
		if err != nil {
			return err
		}
		events = append(events, store.Event{Collection: collection, Key: w.Key, Fields: merged})
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	slog.DebugContext(ctx, "Batch committed", "collection", collection, "writes", len(writes))
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

// mergeInTx performs the read-merge-write for one document inside tx and
// returns the merged result.
func mergeInTx(ctx context.Context, tx *sql.Tx, collection, key string, fields store.Document) (store.Document, error) {
	doc := store.Document{}
	var raw string
	err := tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND key = ?`,
		collection, key,
	).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// new document
	case err != nil:
		return nil, fmt.Errorf("read %s/%s for merge: %w", collection, key, err)
	default:
		if doc, err = decodeDocument(raw); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	resolved := maps.Clone(fields)
	store.ResolveTimestamps(resolved, now)
	maps.Copy(doc, resolved)

	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (collection, key, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (collection, key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, key, string(encoded), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("write %s/%s: %w", collection, key, err)
	}
	return doc, nil
}

func collectRows(rows *sql.Rows) ([]store.KeyedDocument, error) {
	var out []store.KeyedDocument
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, store.KeyedDocument{Key: key, Fields: doc})
	}
	return out, rows.Err()
}

func decodeDocument(raw string) (store.Document, error) {
	var doc store.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// bindValue converts a query value to what json_extract yields for it.
func bindValue(v any) any {
	switch b := v.(type) {
	case bool:
		if b {
			return 1
		}
		return 0
	default:
		return v
	}
}
