package core

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed marks a persisted document that does not match its schema.
var ErrMalformed = errors.New("malformed transaction document")

// Persisted document shapes, one per kind. Amount is written for readers of
// the raw documents and checked against the derived value on decode.
type (
	bankTxnDoc struct {
		ID         string          `json:"id"`
		Type       TxnType         `json:"type"`
		Date       Date            `json:"date"`
		Memo       string          `json:"memo"`
		Amount     Pennies         `json:"amount"`
		Payee      string          `json:"payee"`
		From       BucketRef       `json:"from"`
		Categories []EnvelopeEvent `json:"categories"`
	}

	accountTransferDoc struct {
		ID     string    `json:"id"`
		Type   TxnType   `json:"type"`
		Date   Date      `json:"date"`
		Memo   string    `json:"memo"`
		Amount Pennies   `json:"amount"`
		From   BucketRef `json:"from"`
		To     BucketRef `json:"to"`
		TxfrID string    `json:"txfr_id"`
	}

	envelopeTransferDoc struct {
		ID     string          `json:"id"`
		Type   TxnType         `json:"type"`
		Date   Date            `json:"date"`
		Memo   string          `json:"memo"`
		Amount Pennies         `json:"amount"`
		From   EnvelopeEvent   `json:"from"`
		To     []EnvelopeEvent `json:"to"`
	}

	fillDoc struct {
		ID     string  `json:"id"`
		Type   TxnType `json:"type"`
		Date   Date    `json:"date"`
		Memo   string  `json:"memo"`
		Amount Pennies `json:"amount"`
		FromID string  `json:"from_id"`
		ToID   string  `json:"to_id"`
		TxnID  string  `json:"txn_id"`
	}
)

// EncodeTransaction writes the canonical document for t.
func EncodeTransaction(t Transaction) ([]byte, error) {
	var doc any
	switch v := t.(type) {
	case BankTxn:
		doc = bankTxnDoc{
			ID: v.ID, Type: TypeBankTxn, Date: v.Date, Memo: v.Memo, Amount: v.Total(),
			Payee: v.Payee, From: v.From, Categories: v.Categories(),
		}
	case AccountTransfer:
		doc = accountTransferDoc{
			ID: v.ID, Type: TypeAccountTransfer, Date: v.Date, Memo: v.Memo, Amount: v.Amount,
			From: v.From, To: v.To, TxfrID: v.TxfrID,
		}
	case EnvelopeTransfer:
		doc = envelopeTransferDoc{
			ID: v.ID, Type: TypeEnvelopeTransfer, Date: v.Date, Memo: v.Memo, Amount: v.From.Amount,
			From: v.From, To: v.To,
		}
	case Fill:
		doc = fillDoc{
			ID: v.ID, Type: TypeFill, Date: v.Date, Memo: v.Memo, Amount: v.Amount,
			FromID: v.FromID, ToID: v.ToID, TxnID: v.TxnID,
		}
	default:
		panic(UnknownKindError{Value: t})
	}
	return json.Marshal(doc)
}

// DecodeTransaction parses one canonical document. Unknown kinds, unknown
// fields and amounts that contradict the document's legs are rejected.
func DecodeTransaction(data []byte) (Transaction, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	typ, err := ParseTxnType(probe.Type)
	if err != nil {
		return nil, err
	}

	switch typ {
	case TypeBankTxn:
		var doc bankTxnDoc
		if err := strictUnmarshal(data, &doc); err != nil {
			return nil, err
		}
		if err := checkRef(doc.From, Account); err != nil {
			return nil, err
		}
		t := BankTxn{
			Header:     Header{ID: doc.ID, Date: doc.Date, Memo: doc.Memo},
			Payee:      doc.Payee,
			From:       doc.From,
			categories: doc.Categories,
		}
		if t.Total() != doc.Amount {
			return nil, fmt.Errorf("%w: amount %d does not match categories %d", ErrMalformed, doc.Amount, t.Total())
		}
		return t, nil
	case TypeAccountTransfer:
		var doc accountTransferDoc
		if err := strictUnmarshal(data, &doc); err != nil {
			return nil, err
		}
		if err := checkRef(doc.From, Account); err != nil {
			return nil, err
		}
		if err := checkRef(doc.To, Account); err != nil {
			return nil, err
		}
		return AccountTransfer{
			Header: Header{ID: doc.ID, Date: doc.Date, Memo: doc.Memo},
			From:   doc.From,
			To:     doc.To,
			Amount: doc.Amount,
			TxfrID: doc.TxfrID,
		}, nil
	case TypeEnvelopeTransfer:
		var doc envelopeTransferDoc
		if err := strictUnmarshal(data, &doc); err != nil {
			return nil, err
		}
		t := EnvelopeTransfer{
			Header: Header{ID: doc.ID, Date: doc.Date, Memo: doc.Memo},
			From:   doc.From,
			To:     doc.To,
		}
		if doc.Amount != doc.From.Amount || !t.Balanced() {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, ErrUnbalancedTransfer)
		}
		return t, nil
	case TypeFill:
		var doc fillDoc
		if err := strictUnmarshal(data, &doc); err != nil {
			return nil, err
		}
		return Fill{
			Header: Header{ID: doc.ID, Date: doc.Date, Memo: doc.Memo},
			FromID: doc.FromID,
			ToID:   doc.ToID,
			Amount: doc.Amount,
			TxnID:  doc.TxnID,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, probe.Type)
	}
}

// DecodeTransactions reads newline-delimited documents. Blank lines are
// skipped.
func DecodeTransactions(r io.Reader) ([]Transaction, error) {
	var out []Transaction
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		t, err := DecodeTransaction(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, t)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	return out, nil
}

// EncodeTransactions writes one document per line.
func EncodeTransactions(w io.Writer, txns []Transaction) error {
	for _, t := range txns {
		data, err := EncodeTransaction(t)
		if err != nil {
			return fmt.Errorf("encode %s: %w", t.Head().ID, err)
		}
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func checkRef(r BucketRef, want BucketType) error {
	if r.IsEmpty() && r.Type == "" {
		return nil
	}
	if r.Type != want {
		return fmt.Errorf("%w: bucket %q has type %q, want %q", ErrMalformed, r.Name, r.Type, want)
	}
	return nil
}
