package http

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"gestion/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	def := MonthParams{Year: 2025, Month: 4}
	tests := []struct {
		name    string
		query   string
		want    MonthParams
		wantErr bool
	}{
		{name: "defaults", query: "", want: def},
		{name: "explicit", query: "year=2024&month=11", want: MonthParams{Year: 2024, Month: 11}},
		{name: "first month", query: "month=0", want: MonthParams{Year: 2025, Month: 0}},
		{name: "non-numeric falls back", query: "year=abc&month=x", want: def},
		{name: "month too large", query: "month=12", wantErr: true},
		{name: "negative month", query: "month=-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := ParseMonthParams(q, def)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMonthParams(%q) = %+v, want error", tt.query, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMonthParams(%q) error = %v", tt.query, err)
			}
			if got != tt.want {
				t.Errorf("ParseMonthParams(%q) = %+v, want %+v", tt.query, got, tt.want)
			}
		})
	}
}

func TestMonthParams_Navigation(t *testing.T) {
	jan := MonthParams{Year: 2025, Month: 0}
	if got := jan.Prev(); got != (MonthParams{Year: 2024, Month: 11}) {
		t.Errorf("Prev of January = %+v", got)
	}
	dec := MonthParams{Year: 2025, Month: 11}
	if got := dec.Next(); got != (MonthParams{Year: 2026, Month: 0}) {
		t.Errorf("Next of December = %+v", got)
	}
	if got := jan.URL(); got != "/month?year=2025&month=0" {
		t.Errorf("URL = %q", got)
	}
	if got := CurrentMonth(time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC)); got != (MonthParams{Year: 2025, Month: 2}) {
		t.Errorf("CurrentMonth = %+v", got)
	}
	if got := monthOf(core.NewDate(2025, 2, 15)); got != (MonthParams{Year: 2025, Month: 1}) {
		t.Errorf("monthOf = %+v", got)
	}
}

func TestFormDate(t *testing.T) {
	d, err := formDate(url.Values{"date": {"2025-02-14"}})
	if err != nil || d.String() != "2025-02-14" {
		t.Errorf("formDate = %v, %v", d, err)
	}
	d, err = formDate(url.Values{})
	if err != nil || !d.IsZero() {
		t.Errorf("empty date = %v, %v; want zero date", d, err)
	}
	if _, err := formDate(url.Values{"date": {"14/02/2025"}}); err == nil {
		t.Error("malformed date accepted")
	}
}

func TestParseRecordForm_Multipart(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("product_name", "Pain")
	fw, _ := mw.CreateFormFile("photo", "receipt.jpg")
	_, _ = fw.Write([]byte("jpeg-bytes"))
	_ = mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/expenses", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()

	if err := parseRecordForm(w, r); err != nil {
		t.Fatalf("parseRecordForm error = %v", err)
	}
	if r.FormValue("product_name") != "Pain" {
		t.Errorf("product_name = %q", r.FormValue("product_name"))
	}
	data, err := formFile(r, "photo")
	if err != nil || string(data) != "jpeg-bytes" {
		t.Errorf("formFile = %q, %v", data, err)
	}
	missing, err := formFile(r, "other")
	if err != nil || missing != nil {
		t.Errorf("missing file = %v, %v; want nil, nil", missing, err)
	}
}

func TestParseRecordForm_URLEncoded(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/provisions", strings.NewReader("amount=1500&date=2025-01-01"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	if err := parseRecordForm(w, r); err != nil {
		t.Fatalf("parseRecordForm error = %v", err)
	}
	if r.FormValue("amount") != "1500" {
		t.Errorf("amount = %q", r.FormValue("amount"))
	}
	data, err := formFile(r, "photo")
	if err != nil || data != nil {
		t.Errorf("formFile on url-encoded form = %v, %v", data, err)
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Lait\x00 demi\x07-écrémé \n"); got != "Lait demi-écrémé" {
		t.Errorf("sanitizeInput = %q", got)
	}
}

func TestFormBool(t *testing.T) {
	for _, v := range []string{"1", "true", "on", "YES"} {
		if !formBool(url.Values{"k": {v}}, "k") {
			t.Errorf("formBool(%q) = false", v)
		}
	}
	if formBool(url.Values{"k": {"no"}}, "k") || formBool(url.Values{}, "k") {
		t.Error("formBool accepted a false value")
	}
}

func TestRequireMethod(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		allowed    []string
		wantReject bool
	}{
		{"allowed single", http.MethodPost, []string{http.MethodPost}, false},
		{"allowed one of many", http.MethodDelete, []string{http.MethodPost, http.MethodDelete}, false},
		{"rejected", http.MethodGet, []string{http.MethodPost}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/", nil)
			resp := RequireMethod(r, tt.allowed...)
			if (resp != nil) != tt.wantReject {
				t.Fatalf("RequireMethod rejected = %v, want %v", resp != nil, tt.wantReject)
			}
			if resp != nil {
				w := httptest.NewRecorder()
				resp.Write(w)
				if w.Code != http.StatusMethodNotAllowed {
					t.Errorf("Status code = %d, want %d", w.Code, http.StatusMethodNotAllowed)
				}
			}
		})
	}
}

func TestRequirePOST(t *testing.T) {
	if RequirePOST(httptest.NewRequest(http.MethodPost, "/", nil)) != nil {
		t.Error("POST rejected")
	}
	if RequirePOST(httptest.NewRequest(http.MethodGet, "/", nil)) == nil {
		t.Error("GET accepted")
	}
}
