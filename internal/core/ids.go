package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type (
	// IDGenerator supplies short collision-resistant strings.
	IDGenerator interface {
		NewID() string
	}

	// Clock supplies the current time. The ledger never reads the wall clock
	// directly so callers can pin dates in tests.
	Clock interface {
		Now() time.Time
	}

	// UUIDGenerator derives ids from random UUIDs.
	UUIDGenerator struct{}

	SystemClock struct{}

	// FixedClock always reports the same instant.
	FixedClock struct {
		At time.Time
	}
)

// NewID returns the first 12 hex digits of a random UUID.
func (UUIDGenerator) NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (SystemClock) Now() time.Time { return time.Now() }

func (c FixedClock) Now() time.Time { return c.At }

// Today returns the clock's current calendar day.
func Today(c Clock) Date {
	return DateOf(c.Now())
}

// NewTxnID builds an id of the form txn/<date>/<type>/<discriminator>/<random>.
func NewTxnID(date Date, typ TxnType, discriminator string, gen IDGenerator) string {
	disc := strings.TrimSpace(strings.ReplaceAll(discriminator, "/", "-"))
	if disc == "" {
		disc = "_"
	}
	return strings.Join([]string{"txn", date.String(), string(typ), disc, gen.NewID()}, "/")
}

// WithID returns t unchanged when it already has an id, otherwise a copy
// carrying a freshly derived one.
func WithID(t Transaction, gen IDGenerator) Transaction {
	if t.Head().ID != "" {
		return t
	}
	switch v := t.(type) {
	case BankTxn:
		v.ID = NewTxnID(v.Date, TypeBankTxn, v.Payee, gen)
		return v
	case AccountTransfer:
		v.ID = NewTxnID(v.Date, TypeAccountTransfer, v.TxfrID, gen)
		return v
	case EnvelopeTransfer:
		v.ID = NewTxnID(v.Date, TypeEnvelopeTransfer, v.From.Name, gen)
		return v
	case Fill:
		v.ID = NewTxnID(v.Date, TypeFill, v.TxnID, gen)
		return v
	default:
		panic(UnknownKindError{Value: t})
	}
}
