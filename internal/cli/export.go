package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"envelopes/internal/core"
	"envelopes/internal/sheets"
	"envelopes/internal/worker"
)

func NewExportCommand(opts *RootOptions) *cobra.Command {
	var to, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the journal",
		Long: `Export the journal as newline-delimited JSON documents (ndjson), as a
flat CSV table (csv), or rewrite the configured spreadsheet (sheets).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			ctx := cmd.Context()

			if to == "sheets" {
				exporter, err := app.Exporter(ctx)
				if err != nil {
					return err
				}
				if err := worker.NewLedgerWorker(app.Ledger, app.Snapshots, exporter).Export(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Spreadsheet updated")
				return nil
			}

			txns, err := app.Ledger.List(ctx, "")
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			switch to {
			case "ndjson":
				return core.EncodeTransactions(w, txns)
			case "csv":
				rows := make([]core.TxnExport, 0, len(txns))
				for _, t := range txns {
					rows = append(rows, core.Export(t))
				}
				return writeCSV(w, sheets.LedgerTable(rows))
			default:
				return fmt.Errorf("invalid export target %q: must be ndjson, csv or sheets", to)
			}
		},
	}
	cmd.Flags().StringVar(&to, "to", "ndjson", "ndjson, csv or sheets")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file, defaults to stdout")
	return cmd
}

func writeCSV(w io.Writer, table [][]any) error {
	cw := csv.NewWriter(w)
	for _, row := range table {
		rec := make([]string, len(row))
		for i, cell := range row {
			rec[i] = fmt.Sprint(cell)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
