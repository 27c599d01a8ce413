package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cashflow/internal/cli"
	"cashflow/internal/core"
)

func newDashboardCommand(a *app) *cobra.Command {
	var offset int

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the figures of the current month or of a later one",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			if offset < 0 {
				return fmt.Errorf("offset %d: must not be negative", offset)
			}

			now := a.now()
			if err := a.projectMonth(cmd.Context(), now); err != nil {
				return err
			}

			f := a.dashboard.Page(cmd.Context(), now, offset)
			renderFigures(cmd, f)
			return nil
		}),
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "months after the current one")
	return cmd
}

func renderFigures(cmd *cobra.Command, f core.DashboardFigures) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.RenderTitle("DASHBOARD  "+f.MonthKey))
	fmt.Fprint(out, cli.RenderTable(cli.Table{
		Headers: []string{"Figure", "Amount"},
		Rows: [][]string{
			{"Fixed incomes", cli.FormatMoney(f.FixedIncomes)},
			{"Fixed expenses", cli.FormatMoney(f.FixedExpenses)},
			{"---"},
			{"Current balance", cli.RenderAmount(f.CurrentBalance.Cents, cli.FormatMoney(f.CurrentBalance))},
			{"Forecast", cli.RenderAmount(f.Forecast.Cents, cli.FormatMoney(f.Forecast))},
			{"Still to come", cli.FormatDelta(f.Forecast.Sub(f.CurrentBalance))},
		},
	}))
}
