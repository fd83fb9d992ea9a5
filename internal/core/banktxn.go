package core

import (
	"strings"
)

// Validation messages reported by BankTxnBuilder.Errors, in report order.
const (
	MsgPayeeMissing       = "Payee is missing"
	MsgAccountMissing     = "Account is missing"
	MsgAccountIDMissing   = "Program error: Account ID did not get set"
	MsgNoCategories       = "You must include at least one category"
	MsgZeroAmountCategory = "All categories must have a non-zero balance"
)

// BankTxn records money entering or leaving an account, split across
// envelope categories. Its amount is always the sum of its categories.
type BankTxn struct {
	Header
	Payee string
	From  BucketRef

	categories []EnvelopeEvent
}

func (BankTxn) Type() TxnType { return TypeBankTxn }

// Total returns the sum of the category amounts.
func (t BankTxn) Total() Pennies {
	var sum Pennies
	for _, c := range t.categories {
		sum += c.Amount
	}
	return sum
}

// Categories returns a copy of the allocations.
func (t BankTxn) Categories() []EnvelopeEvent {
	out := make([]EnvelopeEvent, len(t.categories))
	copy(out, t.categories)
	return out
}

// MapCategories returns a copy of t with fn applied to every allocation.
func (t BankTxn) MapCategories(fn func(EnvelopeEvent) EnvelopeEvent) BankTxn {
	out := t
	out.categories = make([]EnvelopeEvent, len(t.categories))
	for i, c := range t.categories {
		out.categories[i] = fn(c)
	}
	return out
}

// Edit returns a builder seeded with a copy of t.
func (t BankTxn) Edit() *BankTxnBuilder {
	return &BankTxnBuilder{
		Header:     t.Header,
		Payee:      t.Payee,
		From:       t.From,
		categories: t.Categories(),
	}
}

func (t BankTxn) Validate() error {
	if err := t.Header.validate(); err != nil {
		return err
	}
	msgs := bankTxnErrors(t.Payee, t.From, t.categories)
	for _, c := range t.categories {
		if c.ID == "" {
			msgs = append(msgs, "Program error: Category ID did not get set")
			break
		}
	}
	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

// BankTxnBuilder assembles a BankTxn. A builder is owned by a single caller
// until Build hands out the finished value.
type BankTxnBuilder struct {
	Header
	Payee string
	From  BucketRef

	categories []EnvelopeEvent
	debitMode  bool
}

// NewBankTxn starts an empty bank transaction on date.
func NewBankTxn(date Date) *BankTxnBuilder {
	return &BankTxnBuilder{
		Header: Header{Date: date},
		From:   EmptyRef(Account),
	}
}

func (b *BankTxnBuilder) AddCategory(event EnvelopeEvent) *BankTxnBuilder {
	b.categories = append(b.categories, event)
	return b
}

// RemoveZeroCategories drops allocations whose amount is exactly zero.
func (b *BankTxnBuilder) RemoveZeroCategories() *BankTxnBuilder {
	kept := b.categories[:0]
	for _, c := range b.categories {
		if c.Amount != 0 {
			kept = append(kept, c)
		}
	}
	b.categories = kept
	return b
}

// DebitMode reports whether amounts are being entered as an expense.
func (b *BankTxnBuilder) DebitMode() bool {
	return b.debitMode
}

// SetDebitMode flips every category's sign when the mode changes. Setting
// the current mode again does nothing.
func (b *BankTxnBuilder) SetDebitMode(on bool) *BankTxnBuilder {
	if b.debitMode != on {
		for i := range b.categories {
			b.categories[i].Amount = -b.categories[i].Amount
		}
	}
	b.debitMode = on
	return b
}

func (b *BankTxnBuilder) Categories() []EnvelopeEvent {
	out := make([]EnvelopeEvent, len(b.categories))
	copy(out, b.categories)
	return out
}

// Amount is the running sum of the categories.
func (b *BankTxnBuilder) Amount() Pennies {
	var sum Pennies
	for _, c := range b.categories {
		sum += c.Amount
	}
	return sum
}

// Errors returns the validation messages in a fixed order, or nil when the
// transaction can be saved.
func (b *BankTxnBuilder) Errors() []string {
	return bankTxnErrors(b.Payee, b.From, b.categories)
}

// Build finalizes the transaction. The result shares nothing with b.
func (b *BankTxnBuilder) Build() (BankTxn, error) {
	if msgs := b.Errors(); msgs != nil {
		return BankTxn{}, &ValidationError{Messages: msgs}
	}
	return b.Draft(), nil
}

// Draft returns the transaction without validating it. Imports use it for
// rows whose bucket IDs are resolved afterwards.
func (b *BankTxnBuilder) Draft() BankTxn {
	return BankTxn{
		Header:     b.Header,
		Payee:      b.Payee,
		From:       b.From,
		categories: b.Categories(),
	}
}

func bankTxnErrors(payee string, from BucketRef, categories []EnvelopeEvent) []string {
	var msgs []string
	if strings.TrimSpace(payee) == "" {
		msgs = append(msgs, MsgPayeeMissing)
	}
	if from.Name == "" {
		msgs = append(msgs, MsgAccountMissing)
	}
	if from.Name != "" && from.ID == "" {
		msgs = append(msgs, MsgAccountIDMissing)
	}
	if len(categories) == 0 {
		msgs = append(msgs, MsgNoCategories)
	}
	for _, c := range categories {
		if c.Amount == 0 {
			msgs = append(msgs, MsgZeroAmountCategory)
			break
		}
	}
	return msgs
}
