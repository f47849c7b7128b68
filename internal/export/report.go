// Package export renders one month of the ledger as a PDF report or a
// spreadsheet.
package export

import (
	"errors"
	"fmt"
	"io"

	"gestion/internal/core"
	"gestion/internal/ledger"
)

// Currency is appended to every formatted amount.
const Currency = "DH"

// MonthNames are the display names of months 0-11.
var MonthNames = [ledger.MonthsPerYear]string{
	"Janvier", "Février", "Mars", "Avril", "Mai", "Juin",
	"Juillet", "Août", "Septembre", "Octobre", "Novembre", "Décembre",
}

var ErrInvalidMonth = errors.New("export: month must be between 0 and 11")

// Report is the content of one month's export. Expenses are sorted by date.
type Report struct {
	Summary    ledger.MonthSummary
	Expenses   []core.Expense
	Provisions []core.Provision
}

// NewReport computes the report of month (0-11) of year.
func NewReport(l *ledger.Ledger, month, year int) (Report, error) {
	if month < 0 || month >= ledger.MonthsPerYear {
		return Report{}, ErrInvalidMonth
	}
	return Report{
		Summary:    l.Summary(month, year),
		Expenses:   l.ExpensesIn(month, year),
		Provisions: l.ProvisionsIn(month, year),
	}, nil
}

// MonthName returns the display name of the report month.
func (r Report) MonthName() string {
	return MonthName(r.Summary.Month)
}

// Title is the heading of the PDF report.
func (r Report) Title() string {
	return fmt.Sprintf("Rapport Financier : %s %d", r.MonthName(), r.Summary.Year)
}

// MonthName returns the display name of month (0-11), or "" when out of range.
func MonthName(month int) string {
	if month < 0 || month >= len(MonthNames) {
		return ""
	}
	return MonthNames[month]
}

// FormatAmount renders m with two decimals and the currency suffix.
func FormatAmount(m core.Money) string {
	return m.Fixed() + " " + Currency
}

// Renderer writes a Report in one file format.
type Renderer interface {
	Render(w io.Writer, r Report) error
	Filename(r Report) string
	ContentType() string
}
