// Package google exports ledger tables to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"envelopes/internal/core"
	"envelopes/internal/ledger"
	ports "envelopes/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	ledgerSheet   string
	balancesSheet string
}

var (
	_ ports.Exporter      = (*Exporter)(nil)
	_ ports.BalanceReader = (*Exporter)(nil)
)

// Config names the spreadsheet and its two tabs.
type Config struct {
	SpreadsheetID string
	LedgerSheet   string
	BalancesSheet string
}

func (c Config) withDefaults() Config {
	if c.LedgerSheet == "" {
		c.LedgerSheet = "Ledger"
	}
	if c.BalancesSheet == "" {
		c.BalancesSheet = "Balances"
	}
	return c
}

// New builds an exporter. Without opts, service account credentials are
// read from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Exporter, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if len(opts) == 0 {
		creds, err := credentialsFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		ledgerSheet:   cfg.LedgerSheet,
		balancesSheet: cfg.BalancesSheet,
	}, nil
}

func credentialsFromEnv(ctx context.Context) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account credentials", "path", file)
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (e *Exporter) ExportLedger(ctx context.Context, rows []core.TxnExport) (string, error) {
	return e.replace(ctx, e.ledgerSheet, ports.LedgerTable(rows))
}

func (e *Exporter) ExportBalances(ctx context.Context, takenAt time.Time, balances []ledger.Balance) (string, error) {
	return e.replace(ctx, e.balancesSheet, ports.BalanceTable(takenAt, balances))
}

// replace clears the sheet and writes table from A1.
func (e *Exporter) replace(ctx context.Context, sheet string, table [][]any) (string, error) {
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	whole := fmt.Sprintf("%s!A:Z", sheet)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, whole, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", whole, err)
	}

	rng := fmt.Sprintf("%s!A1", sheet)
	resp, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng, &gsheet.ValueRange{Values: table}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}
	slog.InfoContext(ctx, "Exported sheet", "sheet", sheet, "rows", len(table), "updated_range", resp.UpdatedRange)
	if resp.UpdatedRange != "" {
		return resp.UpdatedRange, nil
	}
	return rng, nil
}

func (e *Exporter) ReadBalances(ctx context.Context) ([]ledger.Balance, error) {
	if e.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:F", e.balancesSheet)
	resp, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return ports.ParseBalanceTable(resp.Values)
}
