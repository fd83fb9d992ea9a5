package amqp

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second}
	for attempt, d := range want {
		if got := exponentialBackoff(attempt); got != d {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", attempt, got, d)
		}
	}
	if got := exponentialBackoff(12); got != 30*time.Second {
		t.Errorf("exponentialBackoff(12) = %v, want cap of 30s", got)
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil},
		{name: "refused", err: errors.New("dial tcp: connection refused"), want: true},
		{name: "closed", err: errors.New("Exception (504) Reason: \"channel/connection is not open\" connection closed"), want: true},
		{name: "eof", err: io.ErrUnexpectedEOF, want: true},
		{name: "broken pipe", err: errors.New("write: broken pipe"), want: true},
		{name: "closed network", err: errors.New("use of closed network connection"), want: true},
		{name: "unroutable event", err: errors.New("ledger event has no kind")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.want {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCircuitBreakerTransitions(t *testing.T) {
	c := &Client{}
	if c.isCircuitOpen() {
		t.Fatal("new client has an open circuit")
	}

	for i := 0; i < maxFailures-1; i++ {
		c.recordFailure()
	}
	if c.isCircuitOpen() {
		t.Fatalf("circuit opened after %d failures", maxFailures-1)
	}
	c.recordFailure()
	if !c.isCircuitOpen() || c.State() != StateOpen {
		t.Fatalf("circuit still closed after %d failures", maxFailures)
	}

	c.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if c.isCircuitOpen() {
		t.Fatal("circuit stayed open past the timeout")
	}
	if c.State() != StateHalfOpen {
		t.Fatalf("State() = %d, want StateHalfOpen", c.State())
	}

	c.recordSuccess()
	if c.State() != StateClosed || atomic.LoadInt64(&c.failureCount) != 0 {
		t.Fatalf("success left state=%d failures=%d", c.State(), atomic.LoadInt64(&c.failureCount))
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	client := &Client{}
	atomic.StoreInt32(&client.state, StateHalfOpen)
	client.recordFailure()
	if client.State() != StateOpen {
		t.Fatalf("State() = %d, want StateOpen", client.State())
	}
}

func TestPublishWithoutBroker(t *testing.T) {
	ev := NewLedgerEvent(EventTxnSaved)
	ev.TxnID = "txn/2024-01-02/banktxn/Shop/abc"

	open := &Client{}
	atomic.StoreInt32(&open.state, StateOpen)
	open.lastFailure = time.Now()
	if err := open.Publish(context.Background(), ev); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Publish() on open circuit = %v, want ErrCircuitOpen", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (&Client{}).Publish(ctx, ev); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish() with cancelled context = %v, want context.Canceled", err)
	}
}

func TestNewLedgerEvent(t *testing.T) {
	msg := NewLedgerEvent(EventFillSaved)
	if msg.Kind != EventFillSaved {
		t.Errorf("Kind = %v, want %v", msg.Kind, EventFillSaved)
	}
	if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestLedgerEvent_JSON(t *testing.T) {
	msg := &LedgerEvent{
		Kind:      EventImportDone,
		Count:     42,
		Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := LedgerEventFromJSON(data)
	if err != nil {
		t.Fatalf("LedgerEventFromJSON() error = %v", err)
	}
	if parsed.Kind != msg.Kind || parsed.Count != 42 || !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("parsed = %+v, want %+v", parsed, msg)
	}
}

func TestLedgerEvent_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `{"kind":`},
		{name: "unknown kind", data: `{"kind":"expense.created"}`},
		{name: "wrong field type", data: `{"kind":"txn.saved","count":"many"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LedgerEventFromJSON([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
