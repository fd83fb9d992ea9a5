package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"envelopes/internal/core"
	"envelopes/internal/importer"
	"envelopes/internal/ledger"
)

func NewBalancesCommand(opts *RootOptions) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Show the balance of every account and envelope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			var balances []ledger.Balance
			if typ != "" {
				balances, err = app.Ledger.BalancesOf(cmd.Context(), core.BucketType(typ))
			} else {
				balances, err = app.Ledger.Balances(cmd.Context())
			}
			if err != nil {
				return err
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), balances)
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "NAME\tTYPE\tTARGET\tBALANCE")
			for _, b := range balances {
				target := ""
				if b.Extra.Interval != "" {
					target = b.Extra.Target.Format(app.Config.Currency) + " " + string(b.Extra.Interval)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Name, b.Type, target, b.Balance.Format(app.Config.Currency))
			}
			fmt.Fprintf(tw, "Total\t\t\t%s\n", ledger.Total(balances).Format(app.Config.Currency))
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "only show account or envelope balances")
	return cmd
}

func NewImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv|->",
		Short: "Import transactions exported from another budgeting app",
		Long: `Import a CSV export. Transfer halves are paired, missing accounts and
envelopes are created, and rows that cannot be paired are reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readRows(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Imports.Import(cmd.Context(), rows)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json() {
				return writeJSON(out, struct {
					Imported       int            `json:"imported"`
					CreatedBuckets []core.Bucket  `json:"created_buckets"`
					Unmatched      []importer.Row `json:"unmatched"`
					Rejected       []string       `json:"rejected"`
					Invalid        any            `json:"invalid"`
				}{res.Imported, res.CreatedBuckets, res.Unmatched, res.RejectedMessages(), res.Invalid})
			}

			fmt.Fprintf(out, "Imported %d transactions, created %d buckets\n", res.Imported, len(res.CreatedBuckets))
			for _, b := range res.CreatedBuckets {
				fmt.Fprintf(out, "  new %s: %s\n", b.Type, b.Name)
			}
			for _, r := range res.Unmatched {
				fmt.Fprintf(out, "Unmatched transfer: %s %s %s %s\n", r.Date, r.Amount, r.Account, r.Name)
			}
			for _, msg := range res.RejectedMessages() {
				fmt.Fprintf(out, "Rejected: %s\n", msg)
			}
			for _, inv := range res.Invalid {
				fmt.Fprintf(out, "Invalid %s: %s\n", inv.ID, inv.Error)
			}
			return nil
		},
	}
}

func readRows(stdin io.Reader, path string) ([]importer.Row, error) {
	if path == "-" {
		return importer.ReadCSV(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return importer.ReadCSV(f)
}

func NewTxnCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "txn",
		Short: "List, add and delete transactions",
	}
	cmd.AddCommand(newTxnListCommand(opts))
	cmd.AddCommand(newTxnGetCommand(opts))
	cmd.AddCommand(newTxnAddCommand(opts))
	cmd.AddCommand(newTxnDeleteCommand(opts))
	return cmd
}

func newTxnListCommand(opts *RootOptions) *cobra.Command {
	var typ, account string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			var txns []core.Transaction
			if account != "" {
				txns, err = app.Ledger.ListForAccount(cmd.Context(), account)
			} else {
				txns, err = app.Ledger.List(cmd.Context(), core.TxnType(typ))
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json() {
				docs := make([]json.RawMessage, 0, len(txns))
				for _, t := range txns {
					doc, err := core.EncodeTransaction(t)
					if err != nil {
						return err
					}
					docs = append(docs, doc)
				}
				return writeJSON(out, docs)
			}

			tw := newTable(out)
			fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tFROM\tTO\tID")
			for _, t := range txns {
				row := core.Export(t)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					row.Date, row.Type, row.Amount.Format(app.Config.Currency), row.From, row.To, row.ID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "only list one transaction type")
	cmd.Flags().StringVar(&account, "account", "", "only list transactions touching this account ID")
	return cmd
}

func newTxnGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one transaction document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			t, err := app.Ledger.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			doc, err := core.EncodeTransaction(t)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), json.RawMessage(doc))
		},
	}
}

func newTxnAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file.ndjson|->",
		Short: "Save transactions from newline-delimited JSON documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			txns, err := core.DecodeTransactions(r)
			if err != nil {
				return err
			}

			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			for _, t := range txns {
				if t.Type() == core.TypeFill {
					return fmt.Errorf("fills are saved with 'envelopes fill save'")
				}
			}
			for _, t := range txns {
				t = core.WithID(t, app.IDs)
				if err := app.Ledger.Save(cmd.Context(), t); err != nil {
					return fmt.Errorf("save %s: %w", t.Head().ID, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), t.Head().ID)
			}
			return nil
		},
	}
}

func newTxnDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Ledger.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
