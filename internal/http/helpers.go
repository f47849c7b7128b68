package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"gestion/internal/capture"
	"gestion/internal/core"
	"gestion/internal/gate"
	applog "gestion/internal/log"
	"gestion/internal/services"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, gate.ErrMismatch):
		return http.StatusForbidden, "Code d'accès incorrect."
	case errors.Is(err, core.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "Montant invalide."
	case errors.Is(err, core.ErrInvalidDate):
		return http.StatusUnprocessableEntity, "Date invalide."
	case errors.Is(err, core.ErrNameTooLong):
		return http.StatusUnprocessableEntity, "Nom du produit trop long."
	case errors.Is(err, core.ErrInvalidKind), errors.Is(err, core.ErrEmptyID):
		return http.StatusUnprocessableEntity, "Enregistrement invalide."
	case errors.Is(err, services.ErrInvalidMonth):
		return http.StatusBadRequest, "Mois invalide."
	case errors.Is(err, capture.ErrDeviceUnavailable), errors.Is(err, capture.ErrNoFrame):
		return http.StatusUnprocessableEntity, "Photo du reçu illisible."
	}
	return http.StatusInternalServerError, "Erreur lors de l'enregistrement."
}

// writeError logs err and writes the mapped error fragment.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	code, text := statusFor(err)
	logger := applog.FromContext(r.Context())
	if code >= 500 {
		logger.ErrorContext(r.Context(), msg, applog.FieldError, err)
	} else {
		logger.WarnContext(r.Context(), msg, applog.FieldError, err)
	}
	ErrorResponse(code, text).Write(w)
}

var accents = strings.NewReplacer(
	"à", "a", "â", "a", "ä", "a", "ç", "c",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"î", "i", "ï", "i", "ô", "o", "ö", "o",
	"ù", "u", "û", "u", "ü", "u",
	"À", "A", "Â", "A", "Ç", "C", "É", "E", "È", "E", "Ê", "E",
	"Î", "I", "Ô", "O", "Û", "U",
)

// asciiFallback strips accents for the legacy filename parameter.
func asciiFallback(name string) string {
	name = accents.Replace(name)
	var b strings.Builder
	for _, r := range name {
		if r < 0x80 && r >= 0x20 && r != '"' && r != '\\' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func pathEscape(name string) string {
	return url.PathEscape(name)
}
