package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"envelopes/internal/config"
	"envelopes/internal/storage"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
	}
	run := func(fn func(cfg *config.Config, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.DataBackend != "sqlite" {
				return errors.New("migrations only apply to the sqlite backend")
			}
			return fn(cfg, cmd)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: run(func(cfg *config.Config, cmd *cobra.Command) error {
			if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
				return err
			}
			return printVersion(cmd, cfg.SQLiteDBPath)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: run(func(cfg *config.Config, cmd *cobra.Command) error {
			if err := storage.RollbackMigrations(cfg.SQLiteDBPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema rolled back")
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the schema version",
		Args:  cobra.NoArgs,
		RunE: run(func(cfg *config.Config, cmd *cobra.Command) error {
			return printVersion(cmd, cfg.SQLiteDBPath)
		}),
	})
	return cmd
}

func printVersion(cmd *cobra.Command, dbPath string) error {
	v, dirty, err := storage.SchemaVersion(dbPath)
	if err != nil {
		return err
	}
	state := ""
	if dirty {
		state = " (dirty)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d%s\n", v, state)
	return nil
}

func NewSeedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <catalogue.yaml>",
		Short: "Create or update accounts and envelopes from a YAML catalogue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Seed(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d buckets, updated %d\n", res.Created, res.Updated)
			return nil
		},
	}
}
