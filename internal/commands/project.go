package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cashflow/internal/core"
)

func newProjectCommand(a *app) *cobra.Command {
	var month, kind string

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Regenerate the occurrences of a month from the rules",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			target, err := a.month(month)
			if err != nil {
				return err
			}
			kinds, err := parseKinds(kind)
			if err != nil {
				return err
			}

			for _, k := range kinds {
				n, err := a.projector.Project(cmd.Context(), target.Time, k)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Projected %d %s occurrences for %s\n", n, k, target.MonthKey())
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&month, "month", "", "month to project (YYYY-MM), defaults to the current month")
	cmd.Flags().StringVar(&kind, "kind", "all", "income, expense or all")
	return cmd
}

func parseKinds(s string) ([]core.RuleKind, error) {
	if s == "" || strings.EqualFold(s, "all") {
		return []core.RuleKind{core.RuleIncome, core.RuleExpense}, nil
	}
	k, err := core.ParseRuleKind(s)
	if err != nil {
		return nil, err
	}
	return []core.RuleKind{k}, nil
}

// projectMonth regenerates both kinds of month before it is read.
func (a *app) projectMonth(ctx context.Context, month time.Time) error {
	for _, k := range []core.RuleKind{core.RuleIncome, core.RuleExpense} {
		if _, err := a.projector.Project(ctx, month, k); err != nil {
			return err
		}
	}
	a.dashboard.Invalidate()
	return nil
}
