package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"envelopes/internal/core"
	"envelopes/internal/fill"
	"envelopes/internal/store"
)

func NewFillCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Plan and record envelope fills from [Unallocated]",
	}
	cmd.AddCommand(newFillPlanCommand(opts))
	cmd.AddCommand(newFillSaveCommand(opts))
	cmd.AddCommand(newFillShowCommand(opts))
	cmd.AddCommand(newFillDeleteCommand(opts))
	return cmd
}

func newFillPlanCommand(opts *RootOptions) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Propose fill amounts without saving them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMode(mode)
			if err != nil {
				return err
			}
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			plan, err := app.Fills.Plan(cmd.Context(), m)
			if err != nil {
				return err
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), plan)
			}
			return printProposals(cmd.OutOrStdout(), plan.Proposals, app.Config.Currency, &plan)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(fill.ModePeriodic), "periodic or zero")
	return cmd
}

func newFillSaveCommand(opts *RootOptions) *cobra.Command {
	var (
		group, date, mode string
		sets              []string
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a fill group",
		Long: `Save a fill group. Proposals start from the existing group when --group
names one, otherwise from a fresh plan. --set Name=12.34 overrides one
envelope; an amount of 0 leaves it out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMode(mode)
			if err != nil {
				return err
			}
			var day core.Date
			if date != "" {
				if day, err = core.ParseDate(date); err != nil {
					return err
				}
			}
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			ctx := cmd.Context()

			var proposals []fill.Proposal
			if group != "" {
				proposals, err = app.Fills.LoadGroup(ctx, group)
				if err != nil && !errors.Is(err, store.ErrNotFound) {
					return err
				}
			}
			if proposals == nil {
				plan, err := app.Fills.Plan(ctx, m)
				if err != nil {
					return err
				}
				proposals = plan.Proposals
			}
			if err := applySets(proposals, sets); err != nil {
				return err
			}

			txnID, fills, err := app.Fills.SaveGroup(ctx, group, day, proposals)
			if err != nil {
				return err
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"txn_id": txnID, "fills": len(fills)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d fills as %s\n", len(fills), txnID)
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "fill group to replace")
	cmd.Flags().StringVar(&date, "date", "", "fill date (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&mode, "mode", string(fill.ModePeriodic), "plan mode for new groups: periodic or zero")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override an envelope amount, Name=12.34")
	return cmd
}

func newFillShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <group>",
		Short: "Show a saved fill group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			proposals, err := app.Fills.LoadGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), proposals)
			}
			return printProposals(cmd.OutOrStdout(), proposals, app.Config.Currency, nil)
		},
	}
}

func newFillDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <group>",
		Short: "Delete every fill in a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.Fills.DeleteGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d fills\n", n)
			return nil
		},
	}
}

func parseMode(s string) (fill.Mode, error) {
	switch m := fill.Mode(s); m {
	case fill.ModePeriodic, fill.ModeZeroOut:
		return m, nil
	default:
		return "", fmt.Errorf("invalid fill mode %q: must be %s or %s", s, fill.ModePeriodic, fill.ModeZeroOut)
	}
}

// applySets overrides proposal amounts matched by envelope name or ID.
func applySets(proposals []fill.Proposal, sets []string) error {
	for _, set := range sets {
		name, amount, ok := strings.Cut(set, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q: want Name=amount", set)
		}
		p, err := core.ParseDecimal(amount)
		if err != nil {
			return fmt.Errorf("invalid --set %q: %w", set, err)
		}
		name = strings.TrimSpace(name)
		found := false
		for i := range proposals {
			if proposals[i].Name == name || proposals[i].EnvelopeID == name {
				proposals[i].Amount = p
				found = true
			}
		}
		if !found {
			return fmt.Errorf("no envelope %q in the fill", name)
		}
	}
	return nil
}

func printProposals(w io.Writer, proposals []fill.Proposal, currency string, plan *fill.Plan) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ENVELOPE\tDUE\tAMOUNT")
	for _, p := range proposals {
		due := ""
		if p.Due {
			due = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, due, p.Amount.Format(currency))
	}
	if plan != nil {
		fmt.Fprintf(tw, "%s\t\t%s\n", core.UnallocatedName, plan.Unallocated.Format(currency))
		fmt.Fprintf(tw, "Remaining\t\t%s\n", plan.Remaining.Format(currency))
	}
	return tw.Flush()
}
