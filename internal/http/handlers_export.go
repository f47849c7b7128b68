package http

import (
	"bytes"
	"net/http"
	"strconv"

	"gestion/internal/export"
	applog "gestion/internal/log"
)

// handleExport renders one month with the renderer returned by pick. The
// access code is required.
func (s *Server) handleExport(pick func() export.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd := pick()
		if rd == nil {
			NotFoundError("Export indisponible.").Write(w)
			return
		}
		if !s.checkPIN(w, r, r.URL.Query().Get("pin")) {
			return
		}
		m, y := s.ctrl.Selected()
		params, err := ParseMonthParams(r.URL.Query(), MonthParams{Year: y, Month: m})
		if err != nil {
			BadRequestError("Mois invalide.").Write(w)
			return
		}

		report, err := export.NewReport(s.ctrl.Ledger(), params.Month, params.Year)
		if err != nil {
			BadRequestError("Mois invalide.").Write(w)
			return
		}

		// Render fully before writing so a failure still yields a clean error.
		var buf bytes.Buffer
		if err := rd.Render(&buf, report); err != nil {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentExport).ErrorContext(r.Context(), "Export failed",
				applog.NewFields().
					WithOperation(applog.OpExport).
					WithMonth(params.Month, params.Year).
					WithError(err).
					ToSlice()...)
			InternalServerError("Échec de l'export.").Write(w)
			return
		}

		filename := rd.Filename(report)
		w.Header().Set("Content-Type", rd.ContentType())
		w.Header().Set("Content-Disposition", contentDisposition(filename))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Header().Set("Cache-Control", "no-store")
		_, _ = buf.WriteTo(w)

		applog.FromContext(r.Context()).WithComponent(applog.ComponentExport).InfoContext(r.Context(), "Export served",
			applog.FieldFormat, rd.ContentType(),
			applog.FieldMonth, params.Month,
			applog.FieldYear, params.Year,
			"filename", filename)
	}
}
