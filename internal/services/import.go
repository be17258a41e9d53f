package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"sangha/internal/core"
	"sangha/internal/sheets"
	"sangha/internal/store"
)

// DefaultImportBatch is the write batch size for bulk imports. Kept well
// under the store's hard batch limit so member and private rows never
// share headroom.
const DefaultImportBatch = 400

// ImportSummary reports what one import run committed. Imports are
// at-least-once: a re-run over the same sheet overwrites the same document
// keys instead of duplicating rows.
type ImportSummary struct {
	MembersImported  int `json:"membersImported"`
	MembersSkipped   int `json:"membersSkipped"`
	PaymentsImported int `json:"paymentsImported"`
	PaymentsSkipped  int `json:"paymentsSkipped"`
}

// Importer loads members and payments from a row source in bounded
// batches. The member phase runs first and a failure there aborts the
// payment phase; members already committed stay committed.
type Importer struct {
	store     store.Store
	source    sheets.RowSource
	refresher Refresher
	batchSize int
}

func NewImporter(st store.Store, src sheets.RowSource, r Refresher, batchSize int) *Importer {
	if batchSize <= 0 || batchSize > store.MaxBatch {
		batchSize = DefaultImportBatch
	}
	return &Importer{store: st, source: src, refresher: r, batchSize: batchSize}
}

// Run executes a full import: members, then payments, then one refresh
// over every touched member code. The refresh runs even when a phase
// failed part-way, so the codes that did commit are never left stale.
func (im *Importer) Run(ctx context.Context) (ImportSummary, error) {
	started := time.Now()
	var summary ImportSummary
	touched := map[string]bool{}

	memberErr := im.importMembers(ctx, &summary, touched)
	var paymentErr error
	if memberErr == nil {
		paymentErr = im.importPayments(ctx, &summary, touched)
	}

	codes := make([]string, 0, len(touched))
	for code := range touched {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	refreshErr := im.refresher.RequestRefresh(ctx, codes...)

	slog.InfoContext(ctx, "Import finished",
		"members_imported", summary.MembersImported,
		"members_skipped", summary.MembersSkipped,
		"payments_imported", summary.PaymentsImported,
		"payments_skipped", summary.PaymentsSkipped,
		"duration", time.Since(started))

	return summary, errors.Join(memberErr, paymentErr, refreshErr)
}

func (im *Importer) importMembers(ctx context.Context, summary *ImportSummary, touched map[string]bool) error {
	rows, err := im.source.MemberRows(ctx)
	if err != nil {
		return fmt.Errorf("read member rows: %w", err)
	}

	var members, private []store.KeyedDocument
	for _, r := range rows {
		code := strings.TrimSpace(r.MemberCode)
		name := strings.TrimSpace(r.Name)
		if code == "" {
			code = core.MemberCodeFromName(name)
		}
		if code == "" || name == "" {
			summary.MembersSkipped++
			continue
		}
		gender := strings.TrimSpace(r.Gender)
		members = append(members, store.KeyedDocument{
			Key: code,
			Fields: store.Document{
				"memberCode":  code,
				"name":        name,
				"nameLower":   strings.ToLower(name),
				"gender":      gender,
				"genderLower": strings.ToLower(gender),
				"joinMonth":   strings.TrimSpace(r.JoinMonth),
				"monthlyDue":  r.MonthlyDue,
				"note":        "Imported from Excel",
				"updatedAt":   im.store.ServerTimestamp(),
			},
		})
		if phone := strings.TrimSpace(r.Phone); phone != "" {
			private = append(private, store.KeyedDocument{
				Key: code,
				Fields: store.Document{
					"phone":     phone,
					"updatedAt": im.store.ServerTimestamp(),
				},
			})
		}
		touched[code] = true
		summary.MembersImported++
	}

	// Public and private docs are flushed as separate batch runs; a
	// combined run could exceed the batch limit even when each side fits.
	if err := im.flush(ctx, store.Members, members); err != nil {
		return err
	}
	return im.flush(ctx, store.MembersPrivate, private)
}

func (im *Importer) importPayments(ctx context.Context, summary *ImportSummary, touched map[string]bool) error {
	rows, err := im.source.PaymentRows(ctx)
	if err != nil {
		return fmt.Errorf("read payment rows: %w", err)
	}

	var batch []store.KeyedDocument
	for i, r := range rows {
		code := strings.TrimSpace(r.MemberCode)
		month, ok := core.NormalizeMonth(r.PaidAtMonth)
		if code == "" || r.Amount <= 0 || !ok {
			summary.PaymentsSkipped++
			continue
		}
		method := strings.TrimSpace(r.Method)
		if method == "" {
			method = "import"
		}
		// The key is deterministic over the row position, so a re-run of
		// the same sheet rewrites rows instead of duplicating them.
		key := strings.ReplaceAll(
			fmt.Sprintf("%s_%s_%d_%s_row%d", code, month, r.Amount, method, i), " ", "_")
		batch = append(batch, store.KeyedDocument{
			Key: key,
			Fields: store.Document{
				"memberCode":  code,
				"amount":      r.Amount,
				"method":      method,
				"paidAtMonth": string(month),
				"paidAt":      month.Start().Format(time.RFC3339),
				"note":        "Imported from Excel",
				"archived":    false,
				"createdAt":   im.store.ServerTimestamp(),
			},
		})
		touched[code] = true
		summary.PaymentsImported++
	}
	return im.flush(ctx, store.Payments, batch)
}

func (im *Importer) flush(ctx context.Context, collection string, docs []store.KeyedDocument) error {
	for i := 0; i < len(docs); i += im.batchSize {
		end := min(i+im.batchSize, len(docs))
		if err := im.store.BatchMerge(ctx, collection, docs[i:end]); err != nil {
			return fmt.Errorf("import batch %s [%d:%d]: %w", collection, i, end, err)
		}
	}
	return nil
}
