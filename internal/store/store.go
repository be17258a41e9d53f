// Package store defines the abstract document store the ledger runs
// against: named collections of schemaless documents with key lookups,
// field-equality queries, full scans, non-destructive merges, bounded
// batch writes and cancellable change subscriptions.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Collection names used across the application.
const (
	Members         = "members"
	MembersPrivate  = "members_private"
	Payments        = "payments"
	Transactions    = "transactions"
	Stats           = "stats"
	JoinRequests    = "join_requests"
	Donations       = "donations"
	ContactMessages = "contact_messages"
	Presence        = "presence"
)

// GlobalStatsKey is the key of the singleton stats document.
const GlobalStatsKey = "global"

// MaxBatch bounds a single BatchMerge call.
const MaxBatch = 500

var (
	ErrNotFound  = errors.New("document not found")
	ErrBatchSize = fmt.Errorf("batch exceeds %d writes", MaxBatch)
)

type (
	// Document is a schemaless field set. Values follow encoding/json
	// conventions (string, float64, bool, nested maps/slices).
	Document map[string]any

	// KeyedDocument pairs a document with its key, for scans, queries and
	// batch writes.
	KeyedDocument struct {
		Key    string
		Fields Document
	}

	// Event describes a single document change delivered to subscribers.
	Event struct {
		Collection string
		Key        string
		Fields     Document // nil when Deleted
		Deleted    bool
	}

	// Unsubscribe cancels a subscription. Safe to call more than once.
	Unsubscribe func()
)

// Store is the minimal surface the calculators and services consume.
// Merge is an upsert that never removes fields it was not given; per-call
// writes are atomic per document, cross-document consistency is not
// guaranteed.
type Store interface {
	Get(ctx context.Context, collection, key string) (Document, error)
	Query(ctx context.Context, collection, field string, value any) ([]KeyedDocument, error)
	ScanAll(ctx context.Context, collection string) ([]KeyedDocument, error)
	Merge(ctx context.Context, collection, key string, fields Document) error
	Delete(ctx context.Context, collection, key string) error
	BatchMerge(ctx context.Context, collection string, writes []KeyedDocument) error
	Subscribe(collection string, fn func(Event)) Unsubscribe

	// ServerTimestamp returns an opaque token that write paths replace
	// with the store's own clock at commit time.
	ServerTimestamp() any
}

// timestampToken is the sentinel returned by ServerTimestamp.
type timestampToken struct{}

// TimestampToken is shared by implementations that resolve the sentinel in
// process.
var TimestampToken = timestampToken{}

// ResolveTimestamps replaces timestamp tokens in fields with now, in place.
func ResolveTimestamps(fields Document, now time.Time) {
	for k, v := range fields {
		if _, ok := v.(timestampToken); ok {
			fields[k] = now.UTC().Format(time.RFC3339Nano)
		}
	}
}

// Encode converts a typed value into a Document via its JSON form.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return d, nil
}

// Decode populates a typed value from a Document via its JSON form.
// Unknown fields are ignored, missing fields keep their zero values.
func Decode(d Document, v any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// String returns fields[key] when it holds a string, else "".
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Bool returns fields[key] when it holds a bool, else false.
func (d Document) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Cents reads a numeric field as int64 cents, tolerating the float64 that
// JSON decoding produces.
func (d Document) Cents(key string) int64 {
	switch n := d[key].(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}
