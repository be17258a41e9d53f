package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	TransactionType string

	// Member is a registered member. The business key is MemberCode; the
	// document key usually equals it but historical records may differ, so
	// lookups fall back to a field scan.
	Member struct {
		MemberCode string `json:"memberCode"`
		Name       string `json:"name"`
		NameLower  string `json:"nameLower,omitempty"`
		Gender     string `json:"gender,omitempty"`
		JoinMonth  string `json:"joinMonth"`
		MonthlyDue int64  `json:"monthlyDue"` // cents

		// Derived fields, written only by recalculation.
		TotalPaid       int64 `json:"totalPaid"`
		ExpectedTillNow int64 `json:"expectedTillNow"`
		Due             int64 `json:"due"`
		Advance         int64 `json:"advance"`
	}

	// Payment counts toward PaidAtMonth regardless of when it was entered.
	// Archived payments are kept for audit but excluded from every
	// calculation.
	Payment struct {
		MemberCode  string    `json:"memberCode"`
		Amount      int64     `json:"amount"` // cents
		Method      string    `json:"method"`
		PaidAtMonth string    `json:"paidAtMonth"`
		PaidAt      time.Time `json:"paidAt,omitempty"`
		Note        string    `json:"note,omitempty"`
		Archived    bool      `json:"archived"`
	}

	// Transaction is a manually entered ledger line, independent of members
	// and payments.
	Transaction struct {
		Type   TransactionType `json:"type"`
		Title  string          `json:"title"`
		Amount int64           `json:"amount"` // cents
		Note   string          `json:"note,omitempty"`
	}

	// GlobalStats is the organization-wide snapshot, recomputed wholesale
	// after every relevant mutation and never edited by hand.
	GlobalStats struct {
		TotalMembers      int   `json:"totalMembers"`
		TotalCollectedYTD int64 `json:"totalCollectedYTD"`
		TotalDues         int64 `json:"totalDues"`
		TotalAdvance      int64 `json:"totalAdvance"`
		TotalOtherIncome  int64 `json:"totalOtherIncome"`
		TotalExpense      int64 `json:"totalExpense"`
		AvailableFund     int64 `json:"availableFund"`
	}

	// DuesResult carries the derived fields recalculation persists on a
	// member document.
	DuesResult struct {
		ElapsedMonths   int
		ExpectedTillNow int64
		TotalPaid       int64
		Due             int64
		Advance         int64
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyCode     = errors.New("empty member code")
	ErrEmptyName     = errors.New("empty name")
	ErrEmptyTitle    = errors.New("empty title")
	ErrBadJoinMonth  = errors.New("join month not parseable")
	ErrBadTxType     = errors.New("transaction type must be income or expense")
	ErrNotFound      = errors.New("not found")
)

// ComputeDues applies the accrual formula: months elapsed from joinMonth to
// current inclusive of both endpoints, times the monthly due, set against
// the paid total. An unparseable join month yields zero elapsed months, not
// an error. At most one of Due/Advance is non-zero.
func ComputeDues(joinMonth, current Month, monthlyDueCents, totalPaidCents int64) DuesResult {
	elapsed := MonthsInclusive(joinMonth, current)
	expected := int64(elapsed) * monthlyDueCents
	r := DuesResult{
		ElapsedMonths:   elapsed,
		ExpectedTillNow: expected,
		TotalPaid:       totalPaidCents,
	}
	if d := expected - totalPaidCents; d > 0 {
		r.Due = d
	}
	if a := totalPaidCents - expected; a > 0 {
		r.Advance = a
	}
	return r
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.MemberCode) == "" {
		return ErrEmptyCode
	}
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyName
	}
	if _, ok := NormalizeMonth(m.JoinMonth); !ok {
		return ErrBadJoinMonth
	}
	if m.MonthlyDue < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p Payment) Validate() error {
	if strings.TrimSpace(p.MemberCode) == "" {
		return ErrEmptyCode
	}
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if _, ok := NormalizeMonth(p.PaidAtMonth); !ok {
		return ErrBadJoinMonth
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrBadTxType
	}
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

var codeJunk = regexp.MustCompile(`[^\p{L}\p{N}\-_.]+`)
var codeDashRuns = regexp.MustCompile(`-+`)

// MemberCodeFromName derives a member code from a full name: first and last
// word joined with a dash, anything outside letters, digits, "-", "_" and
// "." collapsed to dashes. Returns "" for a blank name.
func MemberCodeFromName(fullName string) string {
	parts := strings.Fields(strings.TrimSpace(fullName))
	if len(parts) == 0 {
		return ""
	}
	code := parts[0]
	if len(parts) > 1 {
		code += "-" + parts[len(parts)-1]
	}
	code = strings.ReplaceAll(code, "/", "-")
	code = codeJunk.ReplaceAllString(code, "-")
	code = codeDashRuns.ReplaceAllString(code, "-")
	return strings.Trim(code, "-")
}

// NormalizeCode folds a member code for comparisons.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
