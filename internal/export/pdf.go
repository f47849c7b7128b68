package export

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-pdf/fpdf"
)

const (
	pageMargin   = 14.0
	pageHeight   = 297.0
	rowHeight    = 8.0
	photoRowSize = 30.0
	photoSize    = 26.0
)

var pdfColumns = []struct {
	title string
	width float64
	align string
}{
	{"Date", 30, "L"},
	{"Produit", 82, "L"},
	{"Prix", 40, "R"},
	{"Reçu", photoRowSize, "C"},
}

// PDF renders the detailed expense report.
type PDF struct {
	thumbs *Thumbnails
}

// NewPDF returns a PDF renderer. thumbs may be nil, in which case every
// receipt is decoded on each render.
func NewPDF(thumbs *Thumbnails) *PDF {
	if thumbs == nil {
		thumbs = NewThumbnails(1, 0)
	}
	return &PDF{thumbs: thumbs}
}

func (p *PDF) ContentType() string { return "application/pdf" }

func (p *PDF) Filename(r Report) string {
	return fmt.Sprintf("Dépenses_Détaillées_%s.pdf", r.MonthName())
}

func (p *PDF) Render(w io.Writer, r Report) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(false, pageMargin)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetTitle(r.Title(), true)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 18)
	doc.Text(pageMargin, 20, tr(r.Title()))

	s := r.Summary
	doc.SetFont("Helvetica", "", 10)
	lines := []string{
		"Alimentation du mois : " + FormatAmount(s.Totals.Provisions),
		"Report : " + FormatAmount(s.CarryOver),
		"Total Dépenses : " + FormatAmount(s.Totals.Expenses),
		"Solde Final : " + FormatAmount(s.Balance),
	}
	for i, line := range lines {
		doc.Text(pageMargin, 30+float64(i)*5, tr(line))
	}

	doc.SetY(55)
	p.header(doc, tr)
	for i, e := range r.Expenses {
		height := rowHeight
		var thumb *Thumbnail
		receipt := "Aucun"
		if len(e.Photo) > 0 {
			t, err := p.thumbs.Get(e.Photo)
			if err != nil {
				slog.Warn("Skipping unreadable receipt", "expense_id", e.ID, "error", err)
				receipt = "Illisible"
			} else {
				thumb, receipt, height = &t, "", photoRowSize
			}
		}
		if doc.GetY()+height > pageHeight-pageMargin {
			doc.AddPage()
			p.header(doc, tr)
		}

		fill := i%2 == 1
		doc.SetFillColor(245, 245, 250)
		doc.SetTextColor(20, 20, 20)
		doc.SetFont("Helvetica", "", 10)
		cells := []string{e.Date.String(), e.ProductName, FormatAmount(e.Price), receipt}
		x, y := doc.GetXY()
		for c, col := range pdfColumns {
			ln := 0
			if c == len(pdfColumns)-1 {
				ln = 1
			}
			doc.CellFormat(col.width, height, tr(cells[c]), "B", ln, col.align, fill, 0, "")
		}
		if thumb != nil {
			p.drawThumb(doc, e.ID, *thumb, x+pdfColumns[0].width+pdfColumns[1].width+pdfColumns[2].width+2, y+2)
		}
	}

	if err := doc.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := doc.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func (p *PDF) header(doc *fpdf.Fpdf, tr func(string) string) {
	doc.SetFont("Helvetica", "B", 10)
	doc.SetFillColor(79, 70, 229)
	doc.SetTextColor(255, 255, 255)
	for i, col := range pdfColumns {
		ln := 0
		if i == len(pdfColumns)-1 {
			ln = 1
		}
		doc.CellFormat(col.width, rowHeight, tr(col.title), "", ln, col.align, true, 0, "")
	}
}

// drawThumb fits the thumbnail in a photoSize square, keeping its aspect.
func (p *PDF) drawThumb(doc *fpdf.Fpdf, id string, t Thumbnail, x, y float64) {
	w, h := photoSize, photoSize
	if t.Width > t.Height {
		h = photoSize * float64(t.Height) / float64(t.Width)
	} else if t.Height > t.Width {
		w = photoSize * float64(t.Width) / float64(t.Height)
	}
	opts := fpdf.ImageOptions{ImageType: "JPG"}
	name := "receipt-" + id
	doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(t.JPEG))
	doc.ImageOptions(name, x+(photoSize-w)/2, y+(photoSize-h)/2, w, h, false, opts, 0, "")
}
