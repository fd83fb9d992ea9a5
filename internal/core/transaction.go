package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	TypeBankTxn          TxnType = "banktxn"
	TypeAccountTransfer  TxnType = "accountTransfer"
	TypeEnvelopeTransfer TxnType = "envelopeTransfer"
	TypeFill             TxnType = "fill"
)

// AllTxnTypes lists every transaction kind. Code that branches on kind is
// tested against this list.
var AllTxnTypes = []TxnType{TypeBankTxn, TypeAccountTransfer, TypeEnvelopeTransfer, TypeFill}

var (
	ErrMissingTxnID       = errors.New("transaction id is missing")
	ErrUnbalancedTransfer = errors.New("envelope transfer does not sum to zero")
	ErrSameBucket         = errors.New("source and destination are the same bucket")
	ErrUnknownType        = errors.New("unknown transaction type")
)

type (
	TxnType string

	// Header carries the fields every transaction kind shares.
	Header struct {
		ID   string
		Date Date
		Memo string
	}

	// Transaction is implemented by BankTxn, AccountTransfer,
	// EnvelopeTransfer and Fill only.
	Transaction interface {
		Head() Header
		Type() TxnType
		// Total is the signed amount the transaction moves.
		Total() Pennies
		isTransaction()
	}

	AccountTransfer struct {
		Header
		From   BucketRef
		To     BucketRef
		Amount Pennies
		TxfrID string
	}

	EnvelopeTransfer struct {
		Header
		From EnvelopeEvent
		To   []EnvelopeEvent
	}

	// Fill moves money from the Unallocated envelope into ToID. Fills made
	// together share TxnID.
	Fill struct {
		Header
		FromID string
		ToID   string
		Amount Pennies
		TxnID  string
	}
)

// UnknownKindError is raised when a switch over transaction kinds meets a
// value outside the closed set. It signals a programming error.
type UnknownKindError struct {
	Value any
}

func (e UnknownKindError) Error() string {
	return fmt.Sprintf("unknown transaction kind %T", e.Value)
}

func (h Header) Head() Header { return h }

func (AccountTransfer) Type() TxnType  { return TypeAccountTransfer }
func (EnvelopeTransfer) Type() TxnType { return TypeEnvelopeTransfer }
func (Fill) Type() TxnType             { return TypeFill }

func (t AccountTransfer) Total() Pennies  { return t.Amount }
func (t EnvelopeTransfer) Total() Pennies { return t.From.Amount }
func (t Fill) Total() Pennies             { return t.Amount }

func (BankTxn) isTransaction()          {}
func (AccountTransfer) isTransaction()  {}
func (EnvelopeTransfer) isTransaction() {}
func (Fill) isTransaction()             {}

// TouchesBank reports whether t moves real money in an account.
func TouchesBank(t Transaction) bool {
	switch t.(type) {
	case BankTxn:
		return true
	case AccountTransfer:
		return true
	case EnvelopeTransfer:
		return false
	case Fill:
		return false
	default:
		panic(UnknownKindError{Value: t})
	}
}

// HasCategories reports whether t allocates money between envelopes through
// categories or transfer legs.
func HasCategories(t Transaction) bool {
	switch t.(type) {
	case BankTxn:
		return true
	case AccountTransfer:
		return false
	case EnvelopeTransfer:
		return true
	case Fill:
		return false
	default:
		panic(UnknownKindError{Value: t})
	}
}

// TouchesAccount reports whether t debits or credits the account accountID.
func TouchesAccount(accountID string, t Transaction) bool {
	switch v := t.(type) {
	case BankTxn:
		return v.From.ID == accountID
	case AccountTransfer:
		return v.From.ID == accountID || v.To.ID == accountID
	case EnvelopeTransfer:
		return false
	case Fill:
		return false
	default:
		panic(UnknownKindError{Value: t})
	}
}

// Zero returns an empty transaction of the given kind.
func Zero(typ TxnType) (Transaction, error) {
	switch typ {
	case TypeBankTxn:
		return BankTxn{From: EmptyRef(Account)}, nil
	case TypeAccountTransfer:
		return AccountTransfer{From: EmptyRef(Account), To: EmptyRef(Account)}, nil
	case TypeEnvelopeTransfer:
		return EnvelopeTransfer{}, nil
	case TypeFill:
		return Fill{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(typ))
	}
}

// ParseTxnType validates a persisted type tag.
func ParseTxnType(s string) (TxnType, error) {
	for _, t := range AllTxnTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// NewEnvelopeTransfer builds a transfer whose source amount is the negated
// sum of the legs.
func NewEnvelopeTransfer(h Header, from BucketRef, to []EnvelopeEvent) EnvelopeTransfer {
	legs := make([]EnvelopeEvent, len(to))
	copy(legs, to)
	var sum Pennies
	for _, leg := range legs {
		sum += leg.Amount
	}
	return EnvelopeTransfer{
		Header: h,
		From:   EnvelopeEvent{Name: from.Name, ID: from.ID, Amount: -sum},
		To:     legs,
	}
}

// Balanced reports whether the source amount offsets every leg.
func (t EnvelopeTransfer) Balanced() bool {
	var sum Pennies
	for _, leg := range t.To {
		sum += leg.Amount
	}
	return t.From.Amount == -sum
}

func (h Header) validate() error {
	if strings.TrimSpace(h.ID) == "" {
		return ErrMissingTxnID
	}
	return h.Date.Validate()
}

// MsgTransferAmount is reported for a transfer whose amount is not
// positive. Amount always moves money from From to To.
const MsgTransferAmount = "Amount must be positive"

func (t AccountTransfer) Validate() error {
	if err := t.Header.validate(); err != nil {
		return err
	}
	var msgs []string
	if t.From.ID == "" {
		msgs = append(msgs, "Source account is missing")
	}
	if t.To.ID == "" {
		msgs = append(msgs, "Destination account is missing")
	}
	if t.From.ID != "" && t.From.ID == t.To.ID {
		msgs = append(msgs, ErrSameBucket.Error())
	}
	if t.Amount <= 0 {
		msgs = append(msgs, MsgTransferAmount)
	}
	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

func (t EnvelopeTransfer) Validate() error {
	if err := t.Header.validate(); err != nil {
		return err
	}
	if !t.Balanced() {
		return ErrUnbalancedTransfer
	}
	var msgs []string
	if t.From.ID == "" {
		msgs = append(msgs, "Source envelope is missing")
	}
	if len(t.To) == 0 {
		msgs = append(msgs, "You must include at least one destination envelope")
	}
	for _, leg := range t.To {
		if leg.ID == "" {
			msgs = append(msgs, "Destination envelope is missing")
			break
		}
	}
	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

func (t Fill) Validate() error {
	if err := t.Header.validate(); err != nil {
		return err
	}
	var msgs []string
	if t.FromID == "" {
		msgs = append(msgs, "Unallocated envelope is missing")
	}
	if t.ToID == "" {
		msgs = append(msgs, "Envelope is missing")
	}
	if t.FromID != "" && t.FromID == t.ToID {
		msgs = append(msgs, ErrSameBucket.Error())
	}
	if t.TxnID == "" {
		msgs = append(msgs, "Program error: fill group did not get set")
	}
	if t.Amount == 0 {
		msgs = append(msgs, "Fill amount must be non-zero")
	}
	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

// Validate checks t before it is accepted for persistence.
func Validate(t Transaction) error {
	switch v := t.(type) {
	case BankTxn:
		return v.Validate()
	case AccountTransfer:
		return v.Validate()
	case EnvelopeTransfer:
		return v.Validate()
	case Fill:
		return v.Validate()
	default:
		panic(UnknownKindError{Value: t})
	}
}
