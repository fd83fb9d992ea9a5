// Package importer turns rows exported by an envelope-budgeting app into
// ledger transactions.
//
// The export writes each transfer as two rows, one per side. Reconcile
// merges those halves back into single transfers before conversion.
package importer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"envelopes/internal/core"
)

// Row kinds produced by TypeForRow.
const (
	KindBank             = "bank"
	KindAccountTransfer  = "accountTransfer"
	KindEnvelopeTransfer = "envelopeTransfer"
)

// Markers used by the export format.
const (
	NotesEnvelopeTransfer = "Envelope Transfer"
	NotesAccountTransfer  = "Account Transfer"
	AccountNone           = "[none]"
)

var (
	ErrUnclassifiedRow = errors.New("row matches no transaction kind")
	ErrBadAmount       = errors.New("bad amount")
	ErrBadDetails      = errors.New("bad category details")
)

// Row is one already-parsed export row. Kind and TxfrID are set on rows
// produced by merging the two halves of a transfer.
type Row struct {
	Date     string `json:"date"`
	Amount   string `json:"amount"`
	Account  string `json:"account"`
	Envelope string `json:"envelope"`
	Name     string `json:"name"`
	Notes    string `json:"notes"`
	Details  string `json:"details"`
	Kind     string `json:"kind,omitempty"`
	TxfrID   string `json:"txfr_id,omitempty"`
}

// IsFill reports whether the row records an envelope fill, which the import
// skips.
func (r Row) IsFill() bool {
	return r.Account == AccountNone
}

// ParseAmount strips "." and "," and parses the remaining digits as pennies.
// "12.34" and "1,234.00" become 1234 and 123400.
func ParseAmount(s string) (core.Pennies, error) {
	clean := strings.NewReplacer(".", "", ",", "").Replace(strings.TrimSpace(s))
	n, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrBadAmount, s, err)
	}
	return core.Pennies(n), nil
}

// TypeForRow classifies a row. Rules are checked in order.
func TypeForRow(r Row) (string, error) {
	switch {
	case r.Notes == NotesEnvelopeTransfer || (r.Account == "" && r.Envelope != core.UnallocatedName):
		return KindEnvelopeTransfer, nil
	case r.Notes == NotesAccountTransfer || (r.Details == "" && r.Envelope == ""):
		return KindAccountTransfer, nil
	case r.Envelope != "" || r.Details != "":
		return KindBank, nil
	default:
		return "", fmt.Errorf("%w: %+v", ErrUnclassifiedRow, r)
	}
}

func kindOf(r Row) (string, error) {
	if r.Kind != "" {
		return r.Kind, nil
	}
	return TypeForRow(r)
}

// ParseCategories returns the envelope allocations of a bank row. A row
// with an Envelope or without Details is allocated entirely to Envelope.
// Otherwise Details holds "name|amount" pairs separated by "||".
func ParseCategories(r Row) ([]core.EnvelopeEvent, error) {
	if r.Details == "" || r.Envelope != "" {
		amount, err := ParseAmount(r.Amount)
		if err != nil {
			return nil, err
		}
		return []core.EnvelopeEvent{{Name: r.Envelope, Amount: amount}}, nil
	}

	var out []core.EnvelopeEvent
	for _, detail := range strings.Split(r.Details, "||") {
		name, raw, ok := strings.Cut(detail, "|")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrBadDetails, detail)
		}
		amount, err := ParseAmount(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, core.EnvelopeEvent{Name: name, Amount: amount})
	}
	return out, nil
}
