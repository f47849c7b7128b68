package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gestion/internal/amqp"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusOK).
		BodyString("test").
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerRecordSaved(amqp.MonthRef{Month: 1, Year: 2025}).
		TriggerSuccessNotification("Dépense enregistrée.").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if trigger == "" {
		t.Fatal("HX-Trigger header not set")
	}

	var events map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trigger), &events); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	var saved amqp.MonthRef
	if err := json.Unmarshal(events["record:saved"], &saved); err != nil {
		t.Fatalf("record:saved payload: %v", err)
	}
	if saved.Month != 1 || saved.Year != 2025 {
		t.Errorf("record:saved = %+v, want month 1 of 2025", saved)
	}
	if _, ok := events["show-notification"]; !ok {
		t.Error("show-notification trigger missing")
	}
}

func TestHTMXResponseBuilder_Redirect(t *testing.T) {
	t.Run("htmx request", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/expenses", nil)
		r.Header.Set("HX-Request", "true")
		w := httptest.NewRecorder()

		NewHTMXResponse().Redirect(r, "/month?year=2025&month=1").Write(w)

		if w.Code != http.StatusOK {
			t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
		}
		if got := w.Header().Get("HX-Redirect"); got != "/month?year=2025&month=1" {
			t.Errorf("HX-Redirect = %q", got)
		}
		if w.Header().Get("Location") != "" {
			t.Error("Location must not be set for HTMX requests")
		}
	})

	t.Run("plain request", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/expenses", nil)
		w := httptest.NewRecorder()

		NewHTMXResponse().Redirect(r, "/month?year=2025&month=1").Write(w)

		if w.Code != http.StatusSeeOther {
			t.Errorf("Status code = %d, want %d", w.Code, http.StatusSeeOther)
		}
		if got := w.Header().Get("Location"); got != "/month?year=2025&month=1" {
			t.Errorf("Location = %q", got)
		}
	})
}

func TestHTMXResponseBuilder_CustomHeader(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Header("X-Custom", "value").
		Write(w)

	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("X-Custom header = %q, want %q", w.Header().Get("X-Custom"), "value")
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{
			name:       "bad request",
			builder:    BadRequestError("Mois invalide."),
			wantStatus: http.StatusBadRequest,
			wantBody:   `<div class="error" role="alert">Mois invalide.</div>`,
		},
		{
			name:       "unprocessable entity",
			builder:    UnprocessableEntityError("Montant invalide."),
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `<div class="error" role="alert">Montant invalide.</div>`,
		},
		{
			name:       "forbidden",
			builder:    ForbiddenError("Code"),
			wantStatus: http.StatusForbidden,
			wantBody:   `<div class="error" role="alert">Code</div>`,
		},
		{
			name:       "internal server error",
			builder:    InternalServerError("Erreur"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `<div class="error" role="alert">Erreur</div>`,
		},
		{
			name:       "not found",
			builder:    NotFoundError("Aucun reçu."),
			wantStatus: http.StatusNotFound,
			wantBody:   `<div class="error" role="alert">Aucun reçu.</div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()

	BadRequestError("<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("Error response did not escape HTML")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("Error response did not properly escape HTML entities")
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	w := httptest.NewRecorder()

	MethodNotAllowedError("GET, POST").Write(w)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
	if w.Header().Get("Allow") != "GET, POST" {
		t.Errorf("Allow header = %q, want %q", w.Header().Get("Allow"), "GET, POST")
	}
}

func TestNotificationTypes(t *testing.T) {
	tests := []struct {
		notifType NotificationType
		want      string
	}{
		{NotificationSuccess, "success"},
		{NotificationError, "error"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		NewHTMXResponse().
			TriggerNotification(tt.notifType, "test", 1000).
			Write(w)

		trigger := w.Header().Get("HX-Trigger")
		if !strings.Contains(trigger, `"type":"`+tt.want+`"`) {
			t.Errorf("Notification type %q not found in trigger: %s", tt.want, trigger)
		}
	}
}
