package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventKind names what happened to the ledger.
type EventKind string

const (
	EventTxnSaved     EventKind = "txn.saved"
	EventTxnDeleted   EventKind = "txn.deleted"
	EventFillSaved    EventKind = "fill.saved"
	EventFillDeleted  EventKind = "fill.deleted"
	EventImportDone   EventKind = "import.completed"
	EventBucketsSaved EventKind = "buckets.saved"
)

var ErrUnknownEvent = errors.New("unknown ledger event")

var knownEvents = map[EventKind]bool{
	EventTxnSaved:     true,
	EventTxnDeleted:   true,
	EventFillSaved:    true,
	EventFillDeleted:  true,
	EventImportDone:   true,
	EventBucketsSaved: true,
}

// LedgerEvent is a notification that the stored ledger changed. It carries
// identifiers only; consumers read the current state from the store.
type LedgerEvent struct {
	Kind      EventKind `json:"kind"`
	TxnID     string    `json:"txn_id,omitempty"`
	TxnType   string    `json:"txn_type,omitempty"`
	FillGroup string    `json:"fill_group,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(kind EventKind) *LedgerEvent {
	return &LedgerEvent{Kind: kind, Timestamp: time.Now().UTC()}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes a message body and rejects unknown kinds.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !knownEvents[msg.Kind] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Kind)
	}
	return &msg, nil
}
