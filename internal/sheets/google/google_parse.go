package google

import (
	"fmt"
	"strings"

	"sangha/internal/core"
	ports "sangha/internal/sheets"
)

// Header spellings accepted in the import sheets. Matching is
// case-insensitive and tries each alias in order.
var (
	memberCodeHeaders = []string{"Member Code", "MemberCode", "Code"}
	nameHeaders       = []string{"Name", "Member Name", "Full Name"}
	genderHeaders     = []string{"Gender", "Sex"}
	phoneHeaders      = []string{"Phone", "Mobile", "Contact"}
	joinMonthHeaders  = []string{"Join Month", "JoinMonth", "Joining Month"}
	monthlyDueHeaders = []string{"Monthly Due", "MonthlyDue", "Due"}
	amountHeaders     = []string{"Amount", "Paid Amount"}
	methodHeaders     = []string{"Method", "Payment Method"}
	paidMonthHeaders  = []string{"Month", "Paid Month", "Paid At Month"}
)

// parseMemberRows converts a values matrix (as returned by the Sheets API)
// into member rows. The first row must carry recognizable headers; column
// order is free.
func parseMemberRows(values [][]any) ([]ports.MemberRow, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	colName := indexOfAny(headers, nameHeaders)
	colJoin := indexOfAny(headers, joinMonthHeaders)
	if colName == -1 || colJoin == -1 {
		return nil, fmt.Errorf("unexpected member header: got %v", headers)
	}
	colCode := indexOfAny(headers, memberCodeHeaders)
	colGender := indexOfAny(headers, genderHeaders)
	colPhone := indexOfAny(headers, phoneHeaders)
	colDue := indexOfAny(headers, monthlyDueHeaders)

	out := make([]ports.MemberRow, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		due := parseDueToCents(safeGet(row, colDue))
		out = append(out, ports.MemberRow{
			MemberCode: safeGet(row, colCode),
			Name:       safeGet(row, colName),
			Gender:     safeGet(row, colGender),
			Phone:      safeGet(row, colPhone),
			JoinMonth:  safeGet(row, colJoin),
			MonthlyDue: due,
		})
	}
	return out, nil
}

// parsePaymentRows converts a values matrix into payment rows.
func parsePaymentRows(values [][]any) ([]ports.PaymentRow, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	colCode := indexOfAny(headers, memberCodeHeaders)
	colAmount := indexOfAny(headers, amountHeaders)
	colMonth := indexOfAny(headers, paidMonthHeaders)
	if colCode == -1 || colAmount == -1 || colMonth == -1 {
		return nil, fmt.Errorf("unexpected payment header: got %v", headers)
	}
	colMethod := indexOfAny(headers, methodHeaders)

	out := make([]ports.PaymentRow, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		amount := parseAmountToCents(safeGet(row, colAmount))
		out = append(out, ports.PaymentRow{
			MemberCode:  safeGet(row, colCode),
			Amount:      amount,
			Method:      safeGet(row, colMethod),
			PaidAtMonth: safeGet(row, colMonth),
		})
	}
	return out, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func indexOfAny(arr []string, targets []string) int {
	for _, t := range targets {
		if i := indexOf(arr, t); i != -1 {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseAmountToCents parses a sheet cell as a positive decimal amount.
// Unparseable cells surface as zero so the importer can count the skip.
func parseAmountToCents(s string) int64 {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return 0
	}
	return cents
}

// parseDueToCents is the relaxed variant for the monthly-due column,
// where zero and blank cells are legitimate.
func parseDueToCents(s string) int64 {
	cents, err := core.ParseNonNegativeCents(s)
	if err != nil {
		return 0
	}
	return cents
}
