package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"envelopes/internal/backend"
	"envelopes/internal/core"
	"envelopes/internal/log"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
	Backend string
	DBPath  string
	Format  string // "text" | "json"
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "envelopes",
		Short:         "Envelope budgeting ledger",
		Long:          "Record bank transactions, move money between envelopes and keep balances up to date.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return LoadEnvFile(opts.EnvFile)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "environment file to load if present")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "data backend ("+backendNames()+"), overrides DATA_BACKEND")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path, overrides SQLITE_DB_PATH")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewWorkerCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewBalancesCommand(opts))
	cmd.AddCommand(NewTxnCommand(opts))
	cmd.AddCommand(NewFillCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

// Execute runs cmd and reports errors on its error stream. Validation
// failures print one message per line. It returns the process exit code.
func Execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	w := cmd.ErrOrStderr()
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		for _, msg := range verr.Messages {
			fmt.Fprintln(w, msg)
		}
		return 1
	}
	fmt.Fprintln(w, "Error:", err)
	return 1
}

// open loads configuration and builds the services for one command run.
func (o *RootOptions) open(cmd *cobra.Command) (*App, error) {
	cfg, err := LoadConfig(o)
	if err != nil {
		return nil, err
	}
	logger := SetupLogger(log.ComponentApp, cmd.ErrOrStderr())
	return NewApp(cmd.Context(), cfg, logger)
}

func (o *RootOptions) json() bool { return o.Format == "json" }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func backendNames() string {
	names := make([]string, 0, 2)
	for _, bt := range backend.GetBackendTypes() {
		names = append(names, bt.String())
	}
	return strings.Join(names, "|")
}
