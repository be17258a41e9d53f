package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"sangha/internal/core"
	"sangha/internal/store"
)

// archiveChunk bounds one archive batch during member deletion, matching
// the import chunk size.
const archiveChunk = 400

// MemberInput is the admin-facing member form. MonthlyDue is in cents;
// JoinMonth is stored as entered and normalized lazily by recalculation,
// so a historical record with a sloppy month still saves.
type MemberInput struct {
	MemberCode string
	Name       string
	Gender     string
	Phone      string
	JoinMonth  string
	MonthlyDue int64
}

// Members provides the admin operations on member records. Phone numbers
// live in a separate private collection and never travel with the public
// member document.
type Members struct {
	store     store.Store
	refresher Refresher
}

func NewMembers(st store.Store, r Refresher) *Members {
	return &Members{store: st, refresher: r}
}

// Save creates or updates a member keyed by its member code. A blank code
// is derived from the name. Returns the effective code.
func (s *Members) Save(ctx context.Context, in MemberInput) (string, error) {
	code := strings.TrimSpace(in.MemberCode)
	name := strings.TrimSpace(in.Name)
	if code == "" {
		code = core.MemberCodeFromName(name)
	}
	if code == "" || name == "" || strings.TrimSpace(in.JoinMonth) == "" {
		return "", fmt.Errorf("%w: memberCode, name and joinMonth are required", core.ErrEmptyCode)
	}
	if in.MonthlyDue < 0 {
		return "", core.ErrInvalidAmount
	}

	gender := strings.TrimSpace(in.Gender)
	err := s.store.Merge(ctx, store.Members, code, store.Document{
		"memberCode":  code,
		"name":        name,
		"nameLower":   strings.ToLower(name),
		"gender":      gender,
		"genderLower": strings.ToLower(gender),
		"joinMonth":   strings.TrimSpace(in.JoinMonth),
		"monthlyDue":  in.MonthlyDue,
		"updatedAt":   s.store.ServerTimestamp(),
	})
	if err != nil {
		return "", fmt.Errorf("save member %s: %w", code, err)
	}

	if phone := strings.TrimSpace(in.Phone); phone != "" {
		err := s.store.Merge(ctx, store.MembersPrivate, code, store.Document{
			"phone":     phone,
			"updatedAt": s.store.ServerTimestamp(),
		})
		if err != nil {
			return "", fmt.Errorf("save member contact %s: %w", code, err)
		}
	}

	if err := s.refresher.RequestRefresh(ctx, code); err != nil {
		return "", err
	}
	return code, nil
}

// UpdateByKey edits the member document at key, which may differ from the
// member code on historical records. The recalculation targets the stored
// member code and falls back to the key.
func (s *Members) UpdateByKey(ctx context.Context, key string, in MemberInput) error {
	doc, err := s.store.Get(ctx, store.Members, key)
	if err == store.ErrNotFound {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load member %s: %w", key, err)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return core.ErrEmptyName
	}
	joinMonth := strings.TrimSpace(in.JoinMonth)
	if joinMonth == "" {
		return fmt.Errorf("%w: joinMonth is required", core.ErrBadJoinMonth)
	}
	if in.MonthlyDue < 0 {
		return core.ErrInvalidAmount
	}

	gender := strings.TrimSpace(in.Gender)
	err = s.store.Merge(ctx, store.Members, key, store.Document{
		"name":        name,
		"nameLower":   strings.ToLower(name),
		"gender":      gender,
		"genderLower": strings.ToLower(gender),
		"joinMonth":   joinMonth,
		"monthlyDue":  in.MonthlyDue,
		"updatedAt":   s.store.ServerTimestamp(),
	})
	if err != nil {
		return fmt.Errorf("update member %s: %w", key, err)
	}

	recalcKey := doc.String("memberCode")
	if recalcKey == "" {
		recalcKey = key
	}
	return s.refresher.RequestRefresh(ctx, recalcKey)
}

// Delete removes a member. Its active payments are not deleted: they are
// archived in bounded batches and their sum is converted into an income
// transaction, so the fund keeps the money the member already paid.
// Returns the transferred amount in cents.
func (s *Members) Delete(ctx context.Context, key string) (int64, error) {
	doc, err := s.store.Get(ctx, store.Members, key)
	if err == store.ErrNotFound {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load member %s: %w", key, err)
	}

	name := doc.String("name")
	if name == "" {
		name = "Unknown"
	}
	// Payments are associated by the stored memberCode field, not the
	// document key.
	realCode := strings.TrimSpace(doc.String("memberCode"))
	if realCode == "" {
		realCode = key
	}

	payments, err := s.store.Query(ctx, store.Payments, "memberCode", realCode)
	if err != nil {
		return 0, fmt.Errorf("load payments for %s: %w", realCode, err)
	}

	var total int64
	var toArchive []store.KeyedDocument
	for _, p := range payments {
		if p.Fields.Bool("archived") {
			continue
		}
		total += p.Fields.Cents("amount")
		toArchive = append(toArchive, store.KeyedDocument{
			Key: p.Key,
			Fields: store.Document{
				"archived":               true,
				"archivedAt":             s.store.ServerTimestamp(),
				"archivedReason":         "member_deleted",
				"archivedByMemberDelete": realCode,
			},
		})
	}

	for i := 0; i < len(toArchive); i += archiveChunk {
		end := min(i+archiveChunk, len(toArchive))
		if err := s.store.BatchMerge(ctx, store.Payments, toArchive[i:end]); err != nil {
			return 0, fmt.Errorf("archive payments for %s: %w", realCode, err)
		}
	}

	if total > 0 {
		err := s.store.Merge(ctx, store.Transactions, uuid.NewString(), store.Document{
			"type":      string(core.Income),
			"title":     fmt.Sprintf("Member deleted: %s (%s)", name, realCode),
			"amount":    total,
			"note":      "Member payments transferred to income on delete (payments archived)",
			"createdAt": s.store.ServerTimestamp(),
		})
		if err != nil {
			return 0, fmt.Errorf("record transfer income for %s: %w", realCode, err)
		}
	}

	if err := s.store.Delete(ctx, store.Members, key); err != nil {
		return 0, fmt.Errorf("delete member %s: %w", key, err)
	}
	// The private doc may be keyed by either the code or the document
	// key; remove both, missing ones are silent no-ops.
	if err := s.store.Delete(ctx, store.MembersPrivate, realCode); err != nil {
		slog.WarnContext(ctx, "Delete private record failed", "key", realCode, "error", err)
	}
	if key != realCode {
		if err := s.store.Delete(ctx, store.MembersPrivate, key); err != nil {
			slog.WarnContext(ctx, "Delete private record failed", "key", key, "error", err)
		}
	}

	slog.InfoContext(ctx, "Member deleted",
		"member_code", realCode,
		"archived_payments", len(toArchive),
		"transferred_cents", total)

	// No per-member recalc: the member is gone. The rollup and fund both
	// still change.
	return total, s.refresher.RequestRefresh(ctx)
}

// List returns all member documents sorted by member code, falling back
// to the document key.
func (s *Members) List(ctx context.Context) ([]core.Member, error) {
	docs, err := s.store.ScanAll(ctx, store.Members)
	if err != nil {
		return nil, fmt.Errorf("scan members: %w", err)
	}

	members := make([]core.Member, 0, len(docs))
	for _, d := range docs {
		var m core.Member
		if err := store.Decode(d.Fields, &m); err != nil {
			return nil, err
		}
		if m.MemberCode == "" {
			m.MemberCode = d.Key
		}
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].MemberCode < members[j].MemberCode
	})
	return members, nil
}
