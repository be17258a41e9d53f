package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"sangha/internal/core"
	"sangha/internal/store"
)

// PublicMember is what the public member search exposes. It carries no
// contact details; phones never leave the private collection.
type PublicMember struct {
	MemberCode string `json:"memberCode"`
	Name       string `json:"name"`
	Gender     string `json:"gender,omitempty"`
	JoinMonth  string `json:"joinMonth"`
	MonthlyDue int64  `json:"monthlyDue"`
	TotalPaid  int64  `json:"totalPaid"`
	Due        int64  `json:"due"`
	Advance    int64  `json:"advance"`
}

// Search serves the public read paths: the member directory and the
// running-month collection. It only reads persisted derived fields, never
// recalculates.
type Search struct {
	store store.Store
	dues  *Dues
}

func NewSearch(st store.Store, dues *Dues) *Search {
	return &Search{store: st, dues: dues}
}

// Members returns the public member directory, optionally narrowed by a
// case-folded substring match over member code and name. Sorted by code.
func (s *Search) Members(ctx context.Context, q string) ([]PublicMember, error) {
	docs, err := s.store.ScanAll(ctx, store.Members)
	if err != nil {
		return nil, fmt.Errorf("scan members: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(q))
	out := make([]PublicMember, 0, len(docs))
	for _, d := range docs {
		code := d.Fields.String("memberCode")
		if code == "" {
			code = d.Key
		}
		nameLower := d.Fields.String("nameLower")
		if nameLower == "" {
			nameLower = strings.ToLower(d.Fields.String("name"))
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(code), needle) &&
			!strings.Contains(nameLower, needle) {
			continue
		}
		out = append(out, PublicMember{
			MemberCode: code,
			Name:       d.Fields.String("name"),
			Gender:     d.Fields.String("gender"),
			JoinMonth:  d.Fields.String("joinMonth"),
			MonthlyDue: d.Fields.Cents("monthlyDue"),
			TotalPaid:  d.Fields.Cents("totalPaid"),
			Due:        d.Fields.Cents("due"),
			Advance:    d.Fields.Cents("advance"),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberCode < out[j].MemberCode })
	return out, nil
}

// RunningMonthCollection sums non-archived payments of current members
// attributed to the current accrual month, regardless of when they were
// entered. Payments whose member no longer exists do not count.
func (s *Search) RunningMonthCollection(ctx context.Context) (core.Month, int64, error) {
	month := s.dues.CurrentMonth()
	members, err := s.store.ScanAll(ctx, store.Members)
	if err != nil {
		return month, 0, fmt.Errorf("scan members: %w", err)
	}
	active := make(map[string]bool, len(members))
	for _, m := range members {
		code := m.Fields.String("memberCode")
		if code == "" {
			code = m.Key
		}
		active[code] = true
	}

	payments, err := s.store.Query(ctx, store.Payments, "paidAtMonth", string(month))
	if err != nil {
		return month, 0, fmt.Errorf("scan running month payments: %w", err)
	}
	var total int64
	for _, p := range payments {
		if p.Fields.Bool("archived") {
			continue
		}
		if !active[p.Fields.String("memberCode")] {
			continue
		}
		total += p.Fields.Cents("amount")
	}
	return month, total, nil
}
