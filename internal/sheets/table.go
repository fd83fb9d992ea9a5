package sheets

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"envelopes/internal/core"
	"envelopes/internal/ledger"
)

var (
	LedgerHeader  = []string{"ID", "Date", "Type", "Amount", "From", "To", "Memo"}
	BalanceHeader = []string{"ID", "Name", "Type", "Interval", "Target", "Balance"}
)

// Decimal renders p as a plain decimal number ("-12.05") that spreadsheets
// parse as a value in USER_ENTERED mode.
func Decimal(p core.Pennies) string {
	sign := ""
	if p < 0 {
		sign = "-"
		p = -p
	}
	return fmt.Sprintf("%s%d.%02d", sign, p/100, p%100)
}

// LedgerTable returns the header plus one row per transaction.
func LedgerTable(rows []core.TxnExport) [][]any {
	out := make([][]any, 0, len(rows)+1)
	out = append(out, toAny(LedgerHeader))
	for _, r := range rows {
		out = append(out, []any{r.ID, r.Date.String(), string(r.Type), Decimal(r.Amount), r.From, r.To, r.Memo})
	}
	return out
}

// BalanceTable returns a title row stamped with takenAt, the header and one
// row per balance.
func BalanceTable(takenAt time.Time, balances []ledger.Balance) [][]any {
	out := make([][]any, 0, len(balances)+2)
	out = append(out, []any{"Balances as of", takenAt.UTC().Format(time.RFC3339)})
	out = append(out, toAny(BalanceHeader))
	for _, b := range balances {
		out = append(out, []any{b.ID, b.Name, string(b.Type), string(b.Extra.Interval), Decimal(b.Extra.Target), Decimal(b.Balance)})
	}
	return out
}

// ParseBalanceTable reads back a table produced by BalanceTable. Columns are
// located by header so reordered sheets still parse.
func ParseBalanceTable(values [][]any) ([]ledger.Balance, error) {
	headerAt := -1
	for i, row := range values {
		if len(row) > 0 && strings.EqualFold(strings.TrimSpace(fmt.Sprint(row[0])), "ID") {
			headerAt = i
			break
		}
	}
	if headerAt == -1 {
		if len(values) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("balance sheet has no header row")
	}
	headers := toStrings(values[headerAt])
	col := make(map[string]int, len(BalanceHeader))
	var missing []string
	for _, h := range BalanceHeader {
		idx := indexOf(headers, h)
		if idx == -1 {
			missing = append(missing, h)
		}
		col[h] = idx
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unexpected balance header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	var out []ledger.Balance
	for n, raw := range values[headerAt+1:] {
		row := toStrings(raw)
		id := safeGet(row, col["ID"])
		if id == "" {
			continue
		}
		target, err := parseCell(safeGet(row, col["Target"]))
		if err != nil {
			return nil, fmt.Errorf("row %d target: %w", headerAt+n+2, err)
		}
		balance, err := parseCell(safeGet(row, col["Balance"]))
		if err != nil {
			return nil, fmt.Errorf("row %d balance: %w", headerAt+n+2, err)
		}
		out = append(out, ledger.Balance{
			ID:      id,
			Name:    safeGet(row, col["Name"]),
			Type:    core.BucketType(safeGet(row, col["Type"])),
			Extra:   core.EnvelopeExtra{Target: target, Interval: core.Interval(safeGet(row, col["Interval"]))},
			Balance: balance,
		})
	}
	return out, nil
}

// SameBalances reports whether two balance lists hold the same IDs and
// amounts in the same order.
func SameBalances(a, b []ledger.Balance) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Balance != b[i].Balance || a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}

// parseCell accepts "12.34", "1,234.56" as rendered by locale-aware sheets
// and plain integers from UNFORMATTED reads.
func parseCell(s string) (core.Pennies, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	}
	if _, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err != nil {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidAmount, s)
	}
	return core.ParseDecimal(s)
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
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
		if strings.EqualFold(v, target) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx >= 0 && idx < len(arr) {
		return arr[idx]
	}
	return ""
}
