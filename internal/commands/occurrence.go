package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cashflow/internal/cli"
	"cashflow/internal/core"
	"cashflow/internal/ledger"
)

func newBalanceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Manage opening balances",
	}

	var month, amount string
	set := &cobra.Command{
		Use:   "set",
		Short: "Record the opening balance of a month",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			target, err := a.month(month)
			if err != nil {
				return err
			}
			value, err := core.MoneyFromDecimal(amount)
			if err != nil {
				return fmt.Errorf("amount %q: %w", amount, err)
			}

			occ, err := a.ledger.SetOpeningBalance(cmd.Context(), target.MonthKey(), value)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Opening balance of %s set to %s\n", occ.MonthKey, cli.FormatMoney(occ.Amount))
			return nil
		}),
	}
	set.Flags().StringVar(&month, "month", "", "month (YYYY-MM), defaults to the current month")
	set.Flags().StringVar(&amount, "amount", "", "balance, may be negative (required)")
	_ = set.MarkFlagRequired("amount")

	cmd.AddCommand(set)
	return cmd
}

func newOccurrenceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "occurrence",
		Aliases: []string{"occ"},
		Short:   "Manage dated ledger entries",
	}

	cmd.AddCommand(newOccurrenceAddCommand(a), newOccurrenceListCommand(a), newOccurrenceRemoveCommand(a))
	return cmd
}

func newOccurrenceAddCommand(a *app) *cobra.Command {
	var date, kind, amount, title string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a manual income or expense",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			t, err := time.Parse(time.DateOnly, date)
			if err != nil {
				return fmt.Errorf("date %q: %w", date, err)
			}
			k, err := core.ParseRuleKind(kind)
			if err != nil {
				return err
			}
			cents, err := core.ParseDecimalToCents(amount)
			if err != nil {
				return fmt.Errorf("amount %q: %w", amount, err)
			}

			occ, err := a.ledger.AddManualOccurrence(cmd.Context(), core.Date{Time: t}, k.OccurrenceKind(), core.Money{Cents: cents}, title)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s on %s (%s)\n", occ.Kind, cli.FormatMoney(occ.Amount), occ.Date.Format(time.DateOnly), occ.ID)
			return nil
		}),
	}

	cmd.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD) (required)")
	cmd.Flags().StringVar(&kind, "kind", "", "income or expense (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "positive amount (required)")
	cmd.Flags().StringVar(&title, "title", "", "free-text title")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newOccurrenceListCommand(a *app) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the occurrences of a month",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			target, err := a.month(month)
			if err != nil {
				return err
			}

			occurrences, err := a.backend.Store.ListOccurrences(cmd.Context(), ledger.OccurrenceFilter{MonthKey: target.MonthKey()})
			if err != nil {
				return fmt.Errorf("list occurrences: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(occurrences) == 0 {
				fmt.Fprintf(out, "%s\n", cli.RenderMuted("  No occurrences in "+target.MonthKey()+"."))
				return nil
			}

			ledger.SortOccurrences(occurrences)
			rows := make([][]string, 0, len(occurrences))
			for _, o := range occurrences {
				origin := "rule"
				if o.IsManual {
					origin = "manual"
				}
				rows = append(rows, []string{
					o.Date.Format(time.DateOnly),
					string(o.Kind),
					o.Title,
					cli.RenderAmount(o.Amount.Cents, cli.FormatMoney(o.Amount)),
					origin,
					o.ID,
				})
			}

			fmt.Fprint(out, cli.RenderTable(cli.Table{
				Title:   "Occurrences " + target.MonthKey(),
				Headers: []string{"Date", "Kind", "Title", "Amount", "Origin", "ID"},
				Rows:    rows,
			}))
			fmt.Fprintf(out, "  %s occurrences\n", cli.FormatCount(len(occurrences)))
			return nil
		}),
	}

	cmd.Flags().StringVar(&month, "month", "", "month (YYYY-MM), defaults to the current month")
	return cmd
}

func newOccurrenceRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a manual occurrence",
		Args:  cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string) error {
			if err := a.ledger.DeleteOccurrence(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted occurrence %s\n", args[0])
			return nil
		}),
	}
}
