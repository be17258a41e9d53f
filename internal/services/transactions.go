package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"sangha/internal/core"
	"sangha/internal/store"
)

// TransactionRecord is a transaction document together with its store key.
type TransactionRecord struct {
	ID string `json:"id"`
	core.Transaction
}

// Transactions provides the manual ledger: incomes and expenses entered
// outside the membership flow. No member is involved, so mutations only
// refresh the fund and the global rollup.
type Transactions struct {
	store     store.Store
	refresher Refresher
}

func NewTransactions(st store.Store, r Refresher) *Transactions {
	return &Transactions{store: st, refresher: r}
}

// Add records one income or expense line. Returns the new document key.
func (s *Transactions) Add(ctx context.Context, tx core.Transaction) (string, error) {
	tx.Title = strings.TrimSpace(tx.Title)
	if err := tx.Validate(); err != nil {
		return "", err
	}

	key := uuid.NewString()
	err := s.store.Merge(ctx, store.Transactions, key, store.Document{
		"type":      string(tx.Type),
		"title":     tx.Title,
		"amount":    tx.Amount,
		"note":      strings.TrimSpace(tx.Note),
		"createdAt": s.store.ServerTimestamp(),
	})
	if err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}
	return key, s.refresher.RequestRefresh(ctx)
}

// Update edits an existing transaction line.
func (s *Transactions) Update(ctx context.Context, key string, tx core.Transaction) error {
	if _, err := s.store.Get(ctx, store.Transactions, key); err != nil {
		if err == store.ErrNotFound {
			return core.ErrNotFound
		}
		return fmt.Errorf("load transaction %s: %w", key, err)
	}
	tx.Title = strings.TrimSpace(tx.Title)
	if err := tx.Validate(); err != nil {
		return err
	}

	err := s.store.Merge(ctx, store.Transactions, key, store.Document{
		"type":      string(tx.Type),
		"title":     tx.Title,
		"amount":    tx.Amount,
		"note":      strings.TrimSpace(tx.Note),
		"updatedAt": s.store.ServerTimestamp(),
	})
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", key, err)
	}
	return s.refresher.RequestRefresh(ctx)
}

// Delete removes a transaction line permanently.
func (s *Transactions) Delete(ctx context.Context, key string) error {
	if _, err := s.store.Get(ctx, store.Transactions, key); err != nil {
		if err == store.ErrNotFound {
			return core.ErrNotFound
		}
		return fmt.Errorf("load transaction %s: %w", key, err)
	}
	if err := s.store.Delete(ctx, store.Transactions, key); err != nil {
		return fmt.Errorf("delete transaction %s: %w", key, err)
	}
	return s.refresher.RequestRefresh(ctx)
}

// List returns all transaction lines sorted by creation time descending,
// optionally narrowed to one type.
func (s *Transactions) List(ctx context.Context, typ core.TransactionType) ([]TransactionRecord, error) {
	docs, err := s.store.ScanAll(ctx, store.Transactions)
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}

	records := make([]TransactionRecord, 0, len(docs))
	createdAt := make(map[string]string, len(docs))
	for _, d := range docs {
		if typ != "" && core.TransactionType(d.Fields.String("type")) != typ {
			continue
		}
		var tx core.Transaction
		if err := store.Decode(d.Fields, &tx); err != nil {
			return nil, err
		}
		records = append(records, TransactionRecord{ID: d.Key, Transaction: tx})
		createdAt[d.Key] = d.Fields.String("createdAt")
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := createdAt[records[i].ID], createdAt[records[j].ID]
		if a != b {
			return a > b
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}
