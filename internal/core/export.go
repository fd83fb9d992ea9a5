package core

import "strings"

// TxnExport is the flat row written to spreadsheets and CSV exports.
type TxnExport struct {
	ID     string  `json:"id"`
	Date   Date    `json:"date"`
	Amount Pennies `json:"amount"`
	From   string  `json:"from"`
	To     string  `json:"to"`
	Memo   string  `json:"memo"`
	Type   TxnType `json:"type"`
}

// Export flattens t. Bank transactions list their category names as the
// source and the payee as the destination.
func Export(t Transaction) TxnExport {
	h := t.Head()
	row := TxnExport{ID: h.ID, Date: h.Date, Memo: h.Memo, Amount: t.Total(), Type: t.Type()}
	switch v := t.(type) {
	case BankTxn:
		names := make([]string, 0, len(v.categories))
		for _, c := range v.categories {
			names = append(names, c.Name)
		}
		row.From = strings.Join(names, "||")
		row.To = v.Payee
	case AccountTransfer:
		row.From = v.From.Name
		row.To = v.To.Name
	case EnvelopeTransfer:
		names := make([]string, 0, len(v.To))
		for _, leg := range v.To {
			names = append(names, leg.Name)
		}
		row.From = v.From.Name
		row.To = strings.Join(names, "||")
	case Fill:
		row.From = v.FromID
		row.To = v.ToID
	default:
		panic(UnknownKindError{Value: t})
	}
	return row
}
