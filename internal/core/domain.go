package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Account  BucketType = "account"
	Envelope BucketType = "envelope"
)

const (
	Total     Interval = "total"
	Weekly    Interval = "weekly"
	Biweekly  Interval = "biweekly"
	Bimonthly Interval = "bimonthly"
	Monthly   Interval = "monthly"
	Annually  Interval = "annually"
)

// UnallocatedName is the reserved envelope every fill is drawn from.
const UnallocatedName = "[Unallocated]"

const dateLayout = "2006-01-02"

type (
	BucketType string

	Interval string

	Date struct {
		time.Time
	}

	// BucketRef identifies an account or envelope. ID is stable, Name is a
	// display label that may change after transactions were recorded.
	BucketRef struct {
		ID   string     `json:"id"`
		Name string     `json:"name"`
		Type BucketType `json:"type"`
	}

	// EnvelopeExtra holds the budgeting goal of an envelope.
	EnvelopeExtra struct {
		Target   Pennies  `json:"target"`
		Interval Interval `json:"interval"`
		Due      *Date    `json:"due"`
	}

	Bucket struct {
		ID    string            `json:"id"`
		Name  string            `json:"name"`
		Type  BucketType        `json:"type"`
		Extra EnvelopeExtra     `json:"extra"`
		Tags  map[string]string `json:"tags,omitempty"`
	}

	// EnvelopeEvent is one signed allocation against an envelope.
	EnvelopeEvent struct {
		Name   string  `json:"name"`
		ID     string  `json:"id"`
		Amount Pennies `json:"amount"`
	}
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidBucketType = errors.New("invalid bucket type")
	ErrInvalidInterval   = errors.New("invalid interval")
	ErrEmptyBucketName   = errors.New("empty bucket name")
	ErrEmptyBucketID     = errors.New("empty bucket id")
)

// AllIntervals lists every fill interval in display order.
var AllIntervals = []Interval{Total, Weekly, Biweekly, Bimonthly, Monthly, Annually}

// EmptyRef returns a placeholder reference for a bucket not chosen yet.
func EmptyRef(t BucketType) BucketRef {
	return BucketRef{Type: t}
}

// IsEmpty reports whether the reference was never resolved to a bucket.
func (r BucketRef) IsEmpty() bool {
	return r.ID == "" && r.Name == ""
}

func (t BucketType) Validate() error {
	switch t {
	case Account, Envelope:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBucketType, string(t))
	}
}

func (i Interval) Validate() error {
	for _, known := range AllIntervals {
		if i == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidInterval, string(i))
}

// Ref returns the reference used by transactions pointing at this bucket.
func (b Bucket) Ref() BucketRef {
	return BucketRef{ID: b.ID, Name: b.Name, Type: b.Type}
}

func (b Bucket) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return ErrEmptyBucketID
	}
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyBucketName
	}
	if err := b.Type.Validate(); err != nil {
		return err
	}
	if b.Type == Envelope && b.Extra.Interval != "" {
		if err := b.Extra.Interval.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IsUnallocated reports whether b is the reserved source envelope for fills.
func (b Bucket) IsUnallocated() bool {
	return b.Type == Envelope && b.Name == UnallocatedName
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string. Full RFC 3339 timestamps are
// accepted too and truncated to their day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
