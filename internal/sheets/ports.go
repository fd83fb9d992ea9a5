// Package sheets renders the ledger and balances as spreadsheet tables and
// defines the ports the export adapters implement.
package sheets

import (
	"context"
	"time"

	"envelopes/internal/core"
	"envelopes/internal/ledger"
)

// Ports for outbound adapters.
type (
	LedgerExporter interface {
		// ExportLedger replaces the ledger sheet with rows and returns a
		// reference to the written range.
		ExportLedger(ctx context.Context, rows []core.TxnExport) (ref string, err error)
	}

	BalanceExporter interface {
		ExportBalances(ctx context.Context, takenAt time.Time, balances []ledger.Balance) (ref string, err error)
	}

	// BalanceReader returns the balances last written by ExportBalances.
	BalanceReader interface {
		ReadBalances(ctx context.Context) ([]ledger.Balance, error)
	}

	Exporter interface {
		LedgerExporter
		BalanceExporter
	}
)
