package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cashflow/internal/cli"
	"cashflow/internal/core"
)

func newRulesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage recurring income and expense rules",
	}

	cmd.AddCommand(newRulesListCommand(a), newRulesAddCommand(a), newRulesRemoveCommand(a))
	return cmd
}

func newRulesListCommand(a *app) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			var filter core.RuleKind
			if kind != "" {
				k, err := core.ParseRuleKind(kind)
				if err != nil {
					return err
				}
				filter = k
			}

			rules, err := a.ledger.Rules(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("list rules: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(rules) == 0 {
				fmt.Fprintln(out, cli.RenderMuted("  No rules found."))
				return nil
			}

			rows := make([][]string, 0, len(rules))
			for _, r := range rules {
				end := "-"
				if !r.EndDate.IsEmpty() {
					end = r.EndDate.Format(time.DateOnly)
				}
				rows = append(rows, []string{
					r.Label,
					string(r.Kind),
					cli.FormatMoney(r.Amount),
					string(r.Periodicity),
					cli.FormatMonths(r.Months),
					cli.FormatDay(r.Day),
					end,
					r.ID,
				})
			}

			fmt.Fprint(out, cli.RenderTable(cli.Table{
				Title:   "Rules",
				Headers: []string{"Label", "Kind", "Amount", "Periodicity", "Months", "Day", "Ends", "ID"},
				Rows:    rows,
			}))
			return nil
		}),
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only list income or expense rules")
	return cmd
}

func newRulesAddCommand(a *app) *cobra.Command {
	var (
		id, kind, label, amount, periodicity string
		months, endDate, complement          string
		day                                  int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a rule",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			rule, err := parseRule(id, kind, label, amount, periodicity, months, day, endDate, complement)
			if err != nil {
				return err
			}

			saved, err := a.ledger.SaveRule(cmd.Context(), rule, a.now())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s rule %q (%s)\n", saved.Kind, saved.Label, saved.ID)
			return nil
		}),
	}

	cmd.Flags().StringVar(&id, "id", "", "id of the rule to replace")
	cmd.Flags().StringVar(&kind, "kind", "", "income or expense (required)")
	cmd.Flags().StringVar(&label, "label", "", "rule label (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "positive amount, e.g. 12.50 (required)")
	cmd.Flags().StringVar(&periodicity, "periodicity", string(core.Monthly), "monthly, bimonthly, quarterly, semiannual, annual or one-off")
	cmd.Flags().StringVar(&months, "months", "", "comma-separated months the rule fires in, e.g. 3,9")
	cmd.Flags().IntVar(&day, "day", 0, "day of month, clamped to the month length")
	cmd.Flags().StringVar(&endDate, "end-date", "", "last day an expense rule fires (YYYY-MM-DD)")
	cmd.Flags().StringVar(&complement, "complement", "", "encoded recurrence descriptor used when months or day are unset")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("label")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newRulesRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string) error {
			if err := a.ledger.DeleteRule(cmd.Context(), args[0], a.now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %s\n", args[0])
			return nil
		}),
	}
}

func parseRule(id, kind, label, amount, periodicity, months string, day int, endDate, complement string) (core.Rule, error) {
	k, err := core.ParseRuleKind(kind)
	if err != nil {
		return core.Rule{}, err
	}
	cents, err := core.ParseDecimalToCents(amount)
	if err != nil {
		return core.Rule{}, fmt.Errorf("amount %q: %w", amount, err)
	}
	p, err := core.ParsePeriodicity(periodicity)
	if err != nil {
		return core.Rule{}, err
	}
	set, err := parseMonths(months)
	if err != nil {
		return core.Rule{}, err
	}

	rule := core.Rule{
		ID:          id,
		Kind:        k,
		Label:       label,
		Amount:      core.Money{Cents: cents},
		Periodicity: p,
		Months:      set,
		Day:         day,
		Complement:  complement,
	}
	if endDate != "" {
		t, err := time.Parse(time.DateOnly, endDate)
		if err != nil {
			return core.Rule{}, fmt.Errorf("end date %q: %w", endDate, err)
		}
		rule.EndDate = core.Date{Time: t}
	}
	return rule, nil
}

func parseMonths(csv string) ([]int, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	var months []int
	for _, part := range strings.Split(csv, ",") {
		m, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || m < 1 || m > 12 {
			return nil, fmt.Errorf("%w: %q", core.ErrInvalidMonth, part)
		}
		months = append(months, m)
	}
	return months, nil
}
