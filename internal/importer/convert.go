package importer

import (
	"fmt"
	"strings"
	"time"

	"envelopes/internal/core"
)

var rowDateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006", time.RFC3339}

// RowError pairs a row with the reason it could not be converted.
type RowError struct {
	Row Row
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %s %s %q: %v", e.Row.Date, e.Row.Amount, e.Row.Name, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Conversion is the outcome of turning a whole export into transactions.
// Bucket IDs are still empty; see Resolve.
type Conversion struct {
	Transactions []core.Transaction
	Unmatched    []Row
	Rejected     []RowError
}

// Convert reconciles rows and converts every merged or bank row. Rows that
// fail are collected rather than aborting the import.
func Convert(rows []Row, gen core.IDGenerator) Conversion {
	res := ReconcileAll(rows, gen)
	out := Conversion{Unmatched: res.Unmatched}
	for _, r := range res.Rows {
		txn, err := RowToTxn(r, gen)
		if err != nil {
			out.Rejected = append(out.Rejected, RowError{Row: r, Err: err})
			continue
		}
		out.Transactions = append(out.Transactions, txn)
	}
	return out
}

// RowToTxn converts a row according to its kind.
func RowToTxn(r Row, gen core.IDGenerator) (core.Transaction, error) {
	kind, err := kindOf(r)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindAccountTransfer:
		return RowToAccountTransfer(r, gen)
	case KindEnvelopeTransfer:
		return RowToEnvelopeTransfer(r, gen)
	case KindBank:
		return RowToBankTxn(r, gen)
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnclassifiedRow, kind)
	}
}

// RowToBankTxn builds a bank transaction paid to Name from Account.
func RowToBankTxn(r Row, gen core.IDGenerator) (core.BankTxn, error) {
	date, err := parseRowDate(r.Date)
	if err != nil {
		return core.BankTxn{}, err
	}
	cats, err := ParseCategories(r)
	if err != nil {
		return core.BankTxn{}, err
	}
	b := core.NewBankTxn(date)
	b.Memo = r.Notes
	b.Payee = r.Name
	b.From = core.BucketRef{Name: r.Account, Type: core.Account}
	for _, c := range cats {
		b.AddCategory(c)
	}
	return core.WithID(b.Draft(), gen).(core.BankTxn), nil
}

// RowToAccountTransfer builds a transfer from Account to Name. The amount is
// the magnitude of the row amount so it debits the source account.
func RowToAccountTransfer(r Row, gen core.IDGenerator) (core.AccountTransfer, error) {
	date, err := parseRowDate(r.Date)
	if err != nil {
		return core.AccountTransfer{}, err
	}
	amount, err := ParseAmount(r.Amount)
	if err != nil {
		return core.AccountTransfer{}, err
	}
	t := core.AccountTransfer{
		Header: core.Header{Date: date, Memo: r.Notes},
		From:   core.BucketRef{Name: r.Account, Type: core.Account},
		To:     core.BucketRef{Name: r.Name, Type: core.Account},
		Amount: amount.Abs(),
		TxfrID: r.TxfrID,
	}
	return core.WithID(t, gen).(core.AccountTransfer), nil
}

// RowToEnvelopeTransfer builds a transfer out of the Account envelope into
// the Name envelope. The source carries the row amount and the single leg
// its negation.
func RowToEnvelopeTransfer(r Row, gen core.IDGenerator) (core.EnvelopeTransfer, error) {
	date, err := parseRowDate(r.Date)
	if err != nil {
		return core.EnvelopeTransfer{}, err
	}
	amount, err := ParseAmount(r.Amount)
	if err != nil {
		return core.EnvelopeTransfer{}, err
	}
	t := core.NewEnvelopeTransfer(
		core.Header{Date: date, Memo: r.Notes},
		core.BucketRef{Name: r.Account, Type: core.Envelope},
		[]core.EnvelopeEvent{{Name: r.Name, Amount: -amount}},
	)
	return core.WithID(t, gen).(core.EnvelopeTransfer), nil
}

func parseRowDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range rowDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	return core.Date{}, fmt.Errorf("%w: unrecognized date %q", core.ErrInvalidDay, s)
}
