// Package ledger derives monthly figures from a snapshot of expenses and
// provisions.
//
// A Ledger never caches: every figure is recomputed from the records it was
// built with, so a fresh Ledger over a reloaded snapshot is always consistent
// with storage. Months are 0-indexed (0 = January). Carry-over is scoped to a
// single year and never reaches into December of the previous year.
package ledger

import (
	"sort"

	"gestion/internal/core"
)

// MonthsPerYear is the number of months in a yearly overview.
const MonthsPerYear = 12

// Totals holds the sums of one calendar month.
type Totals struct {
	Expenses   core.Money
	Provisions core.Money
}

// Net returns provisions minus expenses.
func (t Totals) Net() core.Money {
	return t.Provisions.Sub(t.Expenses)
}

// MonthSummary is every figure shown for one month.
type MonthSummary struct {
	Month     int // 0-11
	Year      int
	Totals    Totals
	CarryOver core.Money
	Available core.Money
	Balance   core.Money
}

// Status classifies the balance.
func (s MonthSummary) Status() Status {
	return StatusOf(s.Balance)
}

// Ledger computes figures over a fixed record snapshot.
type Ledger struct {
	expenses   []core.Expense
	provisions []core.Provision
}

// New returns a Ledger over the given records. The slices are not copied and
// must not be mutated while the Ledger is in use.
func New(expenses []core.Expense, provisions []core.Provision) *Ledger {
	return &Ledger{expenses: expenses, provisions: provisions}
}

// MonthlyTotals sums the prices of expenses and the amounts of provisions dated
// in month of year. Records with a zero date are ignored.
func (l *Ledger) MonthlyTotals(month, year int) Totals {
	t := Totals{Expenses: core.Zero, Provisions: core.Zero}
	for _, e := range l.expenses {
		if e.Date.In(month, year) {
			t.Expenses = t.Expenses.Add(e.Price)
		}
	}
	for _, p := range l.provisions {
		if p.Date.In(month, year) {
			t.Provisions = t.Provisions.Add(p.Amount)
		}
	}
	return t
}

// CarryOver is the net position of months 0..month-1 of the same year.
func (l *Ledger) CarryOver(month, year int) core.Money {
	carry := core.Zero
	for m := 0; m < month; m++ {
		carry = carry.Add(l.MonthlyTotals(m, year).Net())
	}
	return carry
}

// Available is the month's provisions plus the carry-over.
func (l *Ledger) Available(month, year int) core.Money {
	return l.MonthlyTotals(month, year).Provisions.Add(l.CarryOver(month, year))
}

// Balance is Available minus the month's expenses. Negative means overspent.
func (l *Ledger) Balance(month, year int) core.Money {
	return l.Available(month, year).Sub(l.MonthlyTotals(month, year).Expenses)
}

// Summary gathers the figures of one month.
func (l *Ledger) Summary(month, year int) MonthSummary {
	totals := l.MonthlyTotals(month, year)
	carry := l.CarryOver(month, year)
	available := totals.Provisions.Add(carry)
	return MonthSummary{
		Month:     month,
		Year:      year,
		Totals:    totals,
		CarryOver: carry,
		Available: available,
		Balance:   available.Sub(totals.Expenses),
	}
}

// Year returns the summaries of the twelve months of year.
func (l *Ledger) Year(year int) []MonthSummary {
	out := make([]MonthSummary, 0, MonthsPerYear)
	for m := 0; m < MonthsPerYear; m++ {
		out = append(out, l.Summary(m, year))
	}
	return out
}

// ExpensesIn returns the expenses of a month sorted by ascending date, then id.
func (l *Ledger) ExpensesIn(month, year int) []core.Expense {
	var out []core.Expense
	for _, e := range l.expenses {
		if e.Date.In(month, year) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ProvisionsIn returns the provisions of a month sorted by ascending date, then id.
func (l *Ledger) ProvisionsIn(month, year int) []core.Provision {
	var out []core.Provision
	for _, p := range l.provisions {
		if p.Date.In(month, year) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
