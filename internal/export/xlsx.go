package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetName is the single worksheet of the spreadsheet export.
const SheetName = "Dépenses et Provisions"

// ProvisionLabel fills the product column of provision rows.
const ProvisionLabel = "RECHARGE ALIMENTATION"

// BalanceLabel starts the closing row.
const BalanceLabel = "SOLDE DU MOIS"

var xlsxHeader = []any{"Date", "Dépense (Produit)", "Montant Dépense (DH)", "Provision Alimentation (DH)"}

// XLSX renders expenses and provisions as a flat sheet.
type XLSX struct{}

func NewXLSX() *XLSX { return &XLSX{} }

func (x *XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (x *XLSX) Filename(r Report) string {
	return fmt.Sprintf("Finance_%s_%d.xlsx", r.MonthName(), r.Summary.Year)
}

// Rows returns the sheet content: header, expense rows, provision rows, a
// blank row and the balance row.
func (x *XLSX) Rows(r Report) [][]any {
	rows := make([][]any, 0, len(r.Expenses)+len(r.Provisions)+3)
	rows = append(rows, xlsxHeader)
	for _, e := range r.Expenses {
		rows = append(rows, []any{e.Date.String(), e.ProductName, e.Price.InexactFloat64(), ""})
	}
	for _, p := range r.Provisions {
		rows = append(rows, []any{p.Date.String(), ProvisionLabel, "", p.Amount.InexactFloat64()})
	}
	rows = append(rows, nil)
	rows = append(rows, []any{BalanceLabel, "", "", FormatAmount(r.Summary.Balance)})
	return rows
}

func (x *XLSX) Render(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	for i, row := range x.Rows(r) {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "D1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "D", 24); err != nil {
		return fmt.Errorf("size columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
