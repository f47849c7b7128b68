package http

import (
	"net/http"

	"gestion/internal/amqp"
	"gestion/internal/capture"
	"gestion/internal/core"
	applog "gestion/internal/log"
	"gestion/internal/services"
)

// handleSaveExpense creates an expense, or edits one when the form carries an
// id. Editing requires the access code.
func (s *Server) handleSaveExpense(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if err := parseRecordForm(w, r); err != nil {
		BadRequestError("Formulaire invalide.").Write(w)
		return
	}

	in := services.ExpenseInput{
		ID:          sanitizeInput(r.FormValue("id")),
		ProductName: sanitizeInput(r.FormValue("product_name")),
		RemovePhoto: formBool(r.Form, "remove_photo"),
	}
	if in.ID != "" && !s.checkPIN(w, r, r.FormValue("pin")) {
		return
	}

	var err error
	if in.Date, err = formDate(r.Form); err != nil {
		UnprocessableEntityError("Date invalide.").Write(w)
		return
	}
	if in.Price, err = core.ParseAmount(r.FormValue("price")); err != nil {
		UnprocessableEntityError("Montant invalide.").Write(w)
		return
	}
	if in.Photo, err = s.uploadedPhoto(r); err != nil {
		UnprocessableEntityError("Photo du reçu illisible.").Write(w)
		return
	}

	e, err := s.ctrl.SaveExpense(r.Context(), in)
	if err != nil {
		s.writeError(w, r, "Failed to save expense", err)
		return
	}

	month := monthOf(e.Date)
	NewHTMXResponse().
		TriggerRecordSaved(amqp.MonthOf(e.Date)).
		TriggerSuccessNotification("Dépense enregistrée.").
		Redirect(r, month.URL()).
		Write(w)
}

// handleSaveProvision creates or edits a provision.
func (s *Server) handleSaveProvision(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if err := parseRecordForm(w, r); err != nil {
		BadRequestError("Formulaire invalide.").Write(w)
		return
	}

	in := services.ProvisionInput{ID: sanitizeInput(r.FormValue("id"))}
	if in.ID != "" && !s.checkPIN(w, r, r.FormValue("pin")) {
		return
	}

	var err error
	if in.Date, err = formDate(r.Form); err != nil {
		UnprocessableEntityError("Date invalide.").Write(w)
		return
	}
	if in.Amount, err = core.ParseAmount(r.FormValue("amount")); err != nil {
		UnprocessableEntityError("Montant invalide.").Write(w)
		return
	}

	p, err := s.ctrl.SaveProvision(r.Context(), in)
	if err != nil {
		s.writeError(w, r, "Failed to save provision", err)
		return
	}

	NewHTMXResponse().
		TriggerRecordSaved(amqp.MonthOf(p.Date)).
		TriggerSuccessNotification("Alimentation enregistrée.").
		Redirect(r, monthOf(p.Date).URL()).
		Write(w)
}

// handleDelete removes a record of kind. Always gated.
func (s *Server) handleDelete(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resp := RequireMethod(r, http.MethodPost, http.MethodDelete); resp != nil {
			resp.Write(w)
			return
		}
		if err := r.ParseForm(); err != nil {
			BadRequestError("Formulaire invalide.").Write(w)
			return
		}
		id := sanitizeInput(r.Form.Get("id"))
		if id == "" {
			BadRequestError("Identifiant manquant.").Write(w)
			return
		}
		if !s.checkPIN(w, r, r.Form.Get("pin")) {
			return
		}

		month, year := s.ctrl.Selected()
		target := MonthParams{Year: year, Month: month}
		if d, ok := s.recordDate(kind, id); ok {
			target = monthOf(d)
		}

		if err := s.ctrl.Delete(r.Context(), kind, id); err != nil {
			s.writeError(w, r, "Failed to delete record", err)
			return
		}

		NewHTMXResponse().
			TriggerRecordDeleted(amqp.MonthRef{Month: target.Month, Year: target.Year}).
			TriggerSuccessNotification("Supprimé.").
			Redirect(r, target.URL()).
			Write(w)
	}
}

func (s *Server) recordDate(kind core.Kind, id string) (core.Date, bool) {
	switch kind {
	case core.KindExpense:
		if e, ok := s.ctrl.Expense(id); ok {
			return e.Date, true
		}
	case core.KindProvision:
		if p, ok := s.ctrl.Provision(id); ok {
			return p.Date, true
		}
	}
	return core.Date{}, false
}

// handleReceipt serves the stored receipt of an expense.
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ctrl.Expense(r.URL.Query().Get("id"))
	if !ok || len(e.Photo) == 0 {
		NotFoundError("Aucun reçu.").Write(w)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, no-store")
	_, _ = w.Write(e.Photo)
}

// handleCapturePhoto takes a raw picture upload and returns the receipt JPEG
// that would be stored, for preview before saving.
func (s *Server) handleCapturePhoto(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if err := parseRecordForm(w, r); err != nil {
		BadRequestError("Formulaire invalide.").Write(w)
		return
	}
	photo, err := s.uploadedPhoto(r)
	if err != nil {
		UnprocessableEntityError("Photo du reçu illisible.").Write(w)
		return
	}
	if photo == nil {
		BadRequestError("Aucune photo reçue.").Write(w)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(photo)
}

// uploadedPhoto normalizes the "photo" upload to a receipt JPEG. No upload
// returns nil.
func (s *Server) uploadedPhoto(r *http.Request) ([]byte, error) {
	raw, err := formFile(r, "photo")
	if err != nil || raw == nil {
		return nil, err
	}
	photo, err := capture.Capture(r.Context(), capture.NewImageDevice(raw))
	if err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentCapture).WarnContext(r.Context(), "Receipt upload rejected",
			applog.FieldOperation, applog.OpCapture, applog.FieldError, err)
		return nil, err
	}
	return photo, nil
}
