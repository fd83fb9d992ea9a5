// Package memory keeps exported tables in process. The worker uses it when
// no spreadsheet is configured, and tests read the tables back.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"envelopes/internal/core"
	"envelopes/internal/ledger"
	ports "envelopes/internal/sheets"
)

type Exporter struct {
	mu       sync.Mutex
	ledger   [][]any
	balances [][]any
	writes   int
}

var (
	_ ports.Exporter      = (*Exporter)(nil)
	_ ports.BalanceReader = (*Exporter)(nil)
)

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) ExportLedger(_ context.Context, rows []core.TxnExport) (string, error) {
	table := ports.LedgerTable(rows)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ledger = table
	e.writes++
	return fmt.Sprintf("mem:ledger:%d", len(table)), nil
}

func (e *Exporter) ExportBalances(_ context.Context, takenAt time.Time, balances []ledger.Balance) (string, error) {
	table := ports.BalanceTable(takenAt, balances)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances = table
	e.writes++
	return fmt.Sprintf("mem:balances:%d", len(table)), nil
}

func (e *Exporter) ReadBalances(_ context.Context) ([]ledger.Balance, error) {
	e.mu.Lock()
	table := e.balances
	e.mu.Unlock()
	return ports.ParseBalanceTable(table)
}

// LedgerTable returns a copy of the last exported ledger table.
func (e *Exporter) LedgerTable() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]any(nil), e.ledger...)
}

// Writes counts ExportLedger and ExportBalances calls.
func (e *Exporter) Writes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writes
}
