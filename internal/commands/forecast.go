package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cashflow/internal/cli"
	"cashflow/internal/config"
	"cashflow/internal/core"
)

func newForecastCommand(a *app) *cobra.Command {
	var (
		horizon       int
		balance, from string
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast month-end balances over a horizon",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			start, err := a.month(from)
			if err != nil {
				return err
			}
			if horizon == 0 {
				horizon = a.cfg.ForecastHorizon
			}
			if horizon < 1 || horizon > config.MaxHorizon {
				return fmt.Errorf("horizon %d: must be between 1 and %d", horizon, config.MaxHorizon)
			}

			if err := a.projectMonth(ctx, start.Time); err != nil {
				return err
			}

			var base core.Money
			if balance != "" {
				base, err = core.MoneyFromDecimal(balance)
				if err != nil {
					return fmt.Errorf("balance %q: %w", balance, err)
				}
			} else if base, err = a.openingBalance(ctx, start.MonthKey()); err != nil {
				return err
			}

			projections := a.forecaster.BuildProjections(ctx, horizon, base, start.Time)

			rows := make([][]string, 0, len(projections))
			for _, p := range projections {
				rows = append(rows, []string{
					p.MonthKey,
					cli.FormatMoney(p.StartBalance),
					cli.FormatMoney(p.IncomesTotal),
					cli.FormatMoney(p.ExpensesTotal),
					cli.RenderAmount(p.EndBalance.Cents, cli.FormatMoney(p.EndBalance)),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.RenderTitle(fmt.Sprintf("FORECAST  %s  +%d months", start.MonthKey(), horizon-1)))
			fmt.Fprint(out, cli.RenderTable(cli.Table{
				Headers: []string{"Month", "Start", "Incomes", "Expenses", "End"},
				Rows:    rows,
			}))
			return nil
		}),
	}

	cmd.Flags().IntVar(&horizon, "horizon", 0, "number of months, defaults to FORECAST_HORIZON")
	cmd.Flags().StringVar(&balance, "balance", "", "opening balance of the first month, defaults to the recorded one")
	cmd.Flags().StringVar(&from, "from", "", "first month (YYYY-MM), defaults to the current month")
	return cmd
}

func newCurveCommand(a *app) *cobra.Command {
	var month, start string

	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Show the daily balance curve of a month",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			target, err := a.month(month)
			if err != nil {
				return err
			}
			if err := a.projectMonth(ctx, target.Time); err != nil {
				return err
			}

			var base core.Money
			if start != "" {
				base, err = core.MoneyFromDecimal(start)
				if err != nil {
					return fmt.Errorf("start %q: %w", start, err)
				}
			} else if base, err = a.openingBalance(ctx, target.MonthKey()); err != nil {
				return err
			}

			points := a.forecaster.Curve(ctx, target.Time, base)

			rows := make([][]string, 0, len(points))
			for _, p := range points {
				rows = append(rows, []string{
					p.Date.Format(time.DateOnly),
					p.Date.Weekday().String()[:3],
					cli.RenderAmount(p.Balance.Cents, cli.FormatMoney(p.Balance)),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.RenderTitle("BALANCE CURVE  "+target.MonthKey()))
			fmt.Fprint(out, cli.RenderTable(cli.Table{
				Headers: []string{"Date", "Day", "Balance"},
				Rows:    rows,
			}))
			return nil
		}),
	}

	cmd.Flags().StringVar(&month, "month", "", "month (YYYY-MM), defaults to the current month")
	cmd.Flags().StringVar(&start, "start", "", "balance before the first day, defaults to the recorded opening balance")
	return cmd
}
