package http

// Request parsing helpers: month selection, record forms and uploads.

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gestion/internal/core"
	"gestion/internal/ledger"
)

// maxUploadBytes bounds a receipt upload.
const maxUploadBytes = 10 << 20

var errBadMonth = errors.New("month must be between 0 and 11")

// MonthParams is a 0-indexed month and its year.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams reads year and month from query, falling back to def for
// missing or non-numeric values. A numeric month outside 0..11 is an error.
func ParseMonthParams(query url.Values, def MonthParams) (MonthParams, error) {
	params := def
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			params.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			params.Month = m
		}
	}
	if params.Month < 0 || params.Month >= ledger.MonthsPerYear {
		return params, errBadMonth
	}
	return params, nil
}

// CurrentMonth returns the month containing now.
func CurrentMonth(now time.Time) MonthParams {
	return MonthParams{Year: now.Year(), Month: int(now.Month()) - 1}
}

// Prev and Next step across year boundaries.
func (p MonthParams) Prev() MonthParams {
	if p.Month == 0 {
		return MonthParams{Year: p.Year - 1, Month: ledger.MonthsPerYear - 1}
	}
	return MonthParams{Year: p.Year, Month: p.Month - 1}
}

func (p MonthParams) Next() MonthParams {
	if p.Month == ledger.MonthsPerYear-1 {
		return MonthParams{Year: p.Year + 1, Month: 0}
	}
	return MonthParams{Year: p.Year, Month: p.Month + 1}
}

// URL is the month page address.
func (p MonthParams) URL() string {
	return fmt.Sprintf("/month?year=%d&month=%d", p.Year, p.Month)
}

// monthOf returns the month page of d, or the current month for the zero date.
func monthOf(d core.Date) MonthParams {
	if d.IsZero() {
		return CurrentMonth(time.Now())
	}
	return MonthParams{Year: d.Year(), Month: int(d.Month()) - 1}
}

// parseRecordForm parses url-encoded and multipart bodies alike.
func parseRecordForm(w http.ResponseWriter, r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
		return r.ParseMultipartForm(maxUploadBytes)
	}
	return r.ParseForm()
}

// formDate parses the date field. An empty field is the zero Date, which
// record normalization turns into today.
func formDate(form url.Values) (core.Date, error) {
	v := strings.TrimSpace(form.Get("date"))
	if v == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(v)
}

// formFile reads an uploaded file field. A missing field returns nil.
func formFile(r *http.Request, field string) ([]byte, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f)
}

func readLimited(f multipart.File) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxUploadBytes {
		return nil, fmt.Errorf("upload larger than %d bytes", maxUploadBytes)
	}
	return data, nil
}

// sanitizeInput trims and drops control characters except tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func formBool(form url.Values, key string) bool {
	switch strings.ToLower(strings.TrimSpace(form.Get(key))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// RequireMethod returns a 405 builder when r.Method is not allowed.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}
