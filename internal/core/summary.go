package core

import "time"

// MonthProjection summarises one month of a forecast horizon. It is derived on each
// forecast run and never persisted.
type MonthProjection struct {
	MonthIndex    int
	MonthDate     Date
	MonthKey      string
	StartBalance  Money
	IncomesTotal  Money
	ExpensesTotal Money // magnitude, always >= 0
	EndBalance    Money
}

// ForecastPoint is the balance recorded at the end of one calendar day.
type ForecastPoint struct {
	Date    time.Time
	Balance Money
}

// DashboardFigures are the figures displayed for one month of the horizon.
type DashboardFigures struct {
	Offset         int
	MonthKey       string
	FixedIncomes   Money
	FixedExpenses  Money
	CurrentBalance Money
	Forecast       Money
}
