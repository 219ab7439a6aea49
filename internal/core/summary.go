package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// MonthTotal is the aggregated amount of a YYYY-MM month.
type MonthTotal struct {
	Month string
	Total decimal.Decimal
}
