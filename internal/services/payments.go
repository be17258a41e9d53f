package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"sangha/internal/core"
	"sangha/internal/store"
)

// PaymentInput is the admin payment form. Amount is in cents; PaidAtMonth
// accepts any parseable month spelling.
type PaymentInput struct {
	MemberCode  string
	Amount      int64
	Method      string
	PaidAtMonth string
	Note        string
}

// PaymentRecord is a payment document together with its store key.
type PaymentRecord struct {
	ID string `json:"id"`
	core.Payment
}

// Payments provides the admin operations on payment records. Every
// mutation schedules a recalculation for the affected member codes.
type Payments struct {
	store     store.Store
	refresher Refresher
}

func NewPayments(st store.Store, r Refresher) *Payments {
	return &Payments{store: st, refresher: r}
}

// paymentKey builds a readable, collision-resistant document key. The
// uuid suffix keeps two same-day identical payments distinct.
func paymentKey(code string, month core.Month, amount int64, method string) string {
	id := fmt.Sprintf("%s_%s_%d_%s_%s", code, month, amount, method, uuid.NewString())
	return strings.ReplaceAll(id, " ", "_")
}

// Add records one payment toward the given month, regardless of when it
// was entered. Returns the new document key.
func (s *Payments) Add(ctx context.Context, in PaymentInput) (string, error) {
	code := strings.TrimSpace(in.MemberCode)
	if code == "" {
		return "", core.ErrEmptyCode
	}
	if err := (core.Money{Cents: in.Amount}).Validate(); err != nil {
		return "", err
	}
	month, ok := core.NormalizeMonth(in.PaidAtMonth)
	if !ok {
		return "", fmt.Errorf("%w: %q", core.ErrBadJoinMonth, in.PaidAtMonth)
	}

	method := strings.TrimSpace(in.Method)
	if method == "" {
		method = "cash"
	}
	note := strings.TrimSpace(in.Note)
	if note == "" {
		note = "Manual add"
	}

	key := paymentKey(code, month, in.Amount, method)
	err := s.store.Merge(ctx, store.Payments, key, store.Document{
		"memberCode":  code,
		"amount":      in.Amount,
		"method":      method,
		"paidAtMonth": string(month),
		"paidAt":      month.Start().Format(time.RFC3339),
		"note":        note,
		"archived":    false,
		"createdAt":   s.store.ServerTimestamp(),
	})
	if err != nil {
		return "", fmt.Errorf("save payment %s: %w", key, err)
	}

	if err := s.refresher.RequestRefresh(ctx, code); err != nil {
		return "", err
	}
	return key, nil
}

// Update edits an existing payment. When the member code changes both the
// old and the new member are recalculated, otherwise one of them keeps a
// stale total.
func (s *Payments) Update(ctx context.Context, key string, in PaymentInput) error {
	doc, err := s.store.Get(ctx, store.Payments, key)
	if err == store.ErrNotFound {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load payment %s: %w", key, err)
	}

	code := strings.TrimSpace(in.MemberCode)
	if code == "" {
		return core.ErrEmptyCode
	}
	if err := (core.Money{Cents: in.Amount}).Validate(); err != nil {
		return err
	}
	month, ok := core.NormalizeMonth(in.PaidAtMonth)
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrBadJoinMonth, in.PaidAtMonth)
	}

	fields := store.Document{
		"memberCode":  code,
		"amount":      in.Amount,
		"paidAtMonth": string(month),
		"updatedAt":   s.store.ServerTimestamp(),
	}
	if m := strings.TrimSpace(in.Method); m != "" {
		fields["method"] = m
	}
	if n := strings.TrimSpace(in.Note); n != "" {
		fields["note"] = n
	}
	if err := s.store.Merge(ctx, store.Payments, key, fields); err != nil {
		return fmt.Errorf("update payment %s: %w", key, err)
	}

	oldCode := doc.String("memberCode")
	if oldCode != "" && oldCode != code {
		return s.refresher.RequestRefresh(ctx, oldCode, code)
	}
	return s.refresher.RequestRefresh(ctx, code)
}

// Delete removes a payment permanently. Archiving is the usual path;
// deletion exists for correcting outright mistakes.
func (s *Payments) Delete(ctx context.Context, key string) error {
	doc, err := s.store.Get(ctx, store.Payments, key)
	if err == store.ErrNotFound {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load payment %s: %w", key, err)
	}
	if err := s.store.Delete(ctx, store.Payments, key); err != nil {
		return fmt.Errorf("delete payment %s: %w", key, err)
	}
	return s.refresher.RequestRefresh(ctx, doc.String("memberCode"))
}

// Archive soft-deletes a payment: it stays for audit but drops out of
// every calculation.
func (s *Payments) Archive(ctx context.Context, key, reason string) error {
	doc, err := s.store.Get(ctx, store.Payments, key)
	if err == store.ErrNotFound {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load payment %s: %w", key, err)
	}
	if reason == "" {
		reason = "manual"
	}
	err = s.store.Merge(ctx, store.Payments, key, store.Document{
		"archived":       true,
		"archivedAt":     s.store.ServerTimestamp(),
		"archivedReason": reason,
	})
	if err != nil {
		return fmt.Errorf("archive payment %s: %w", key, err)
	}
	return s.refresher.RequestRefresh(ctx, doc.String("memberCode"))
}

// List returns payments newest-first, optionally narrowed by a free-text
// filter matched case-insensitively against code, method, month and key.
// A non-positive limit returns everything.
func (s *Payments) List(ctx context.Context, filter string, limit int) ([]PaymentRecord, error) {
	docs, err := s.store.ScanAll(ctx, store.Payments)
	if err != nil {
		return nil, fmt.Errorf("scan payments: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(filter))
	records := make([]PaymentRecord, 0, len(docs))
	for _, d := range docs {
		if needle != "" && !paymentMatches(d, needle) {
			continue
		}
		var p core.Payment
		if err := store.Decode(d.Fields, &p); err != nil {
			return nil, err
		}
		records = append(records, PaymentRecord{ID: d.Key, Payment: p})
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.PaidAtMonth != b.PaidAtMonth {
			return a.PaidAtMonth > b.PaidAtMonth
		}
		return a.ID > b.ID
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func paymentMatches(d store.KeyedDocument, needle string) bool {
	for _, s := range []string{
		d.Fields.String("memberCode"),
		d.Fields.String("method"),
		d.Fields.String("paidAtMonth"),
		d.Key,
	} {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}
