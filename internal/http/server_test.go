package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestion/internal/core"
	"gestion/internal/export"
	"gestion/internal/gate"
	"gestion/internal/records/memory"
	"gestion/internal/services"
)

type testServer struct {
	srv  *Server
	ctrl *services.Controller
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctrl := services.NewController(memory.New(), nil)
	require.NoError(t, ctrl.Reload(context.Background()))
	g, err := gate.New("")
	require.NoError(t, err)

	srv := NewServer(":0", Deps{
		Controller: ctrl,
		Gate:       g,
		PDF:        export.NewPDF(nil),
		XLSX:       export.NewXLSX(),
		Now:        func() time.Time { return time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC) },
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{srv: srv, ctrl: ctrl}
}

func (ts *testServer) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(w, r)
	return w
}

func (ts *testServer) get(path string) *httptest.ResponseRecorder {
	return ts.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (ts *testServer) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ts.do(r)
}

func (ts *testServer) summary(t *testing.T, month, year int) summaryResponse {
	t.Helper()
	w := ts.get("/api/summary?year=" + strconv.Itoa(year) + "&month=" + strconv.Itoa(month))
	require.Equal(t, http.StatusOK, w.Code)
	var got summaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for x := 0; x < 32; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: 90, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartExpense(t *testing.T, fields map[string]string, photo []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if photo != nil {
		fw, err := mw.CreateFormFile("photo", "receipt.png")
		require.NoError(t, err)
		_, err = fw.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	r := httptest.NewRequest(http.MethodPost, "/expenses", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get("/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = ts.get("/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ready"`)
}

func TestServer_ReadyReportsStoreFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.ready = func(context.Context) error { return errors.New("database is closed") }

	w := ts.get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database is closed")
}

func TestServer_RecordLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.postForm("/provisions", url.Values{"date": {"2025-01-05"}, "amount": {"1500"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/month?year=2025&month=0", w.Header().Get("Location"))

	w = ts.postForm("/expenses", url.Values{"date": {"2025-01-10"}, "product_name": {"Courses"}, "price": {"300,00"}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	jan := ts.summary(t, 0, 2025)
	assert.Equal(t, "1200.00", jan.Balance)
	assert.Equal(t, 1, jan.ExpenseCount)

	feb := ts.summary(t, 1, 2025)
	assert.Equal(t, "1200.00", feb.CarryOver)
	assert.Equal(t, "1200.00", feb.Balance)
	assert.Equal(t, "within_budget", feb.Status)

	exps := ts.ctrl.ViewOf(0, 2025).Expenses
	require.Len(t, exps, 1)
	id := exps[0].ID

	w = ts.postForm("/expenses/delete", url.Values{"id": {id}, "pin": {"0000"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Len(t, ts.ctrl.ViewOf(0, 2025).Expenses, 1)

	w = ts.postForm("/expenses/delete", url.Values{"id": {id}, "pin": {gate.DefaultCode}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/month?year=2025&month=0", w.Header().Get("Location"))
	assert.Equal(t, "1500.00", ts.summary(t, 0, 2025).Balance)
}

func TestServer_HTMXSaveRedirects(t *testing.T) {
	ts := newTestServer(t)

	r := httptest.NewRequest(http.MethodPost, "/provisions", strings.NewReader("date=2025-02-01&amount=500"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set("HX-Request", "true")
	w := ts.do(r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/month?year=2025&month=1", w.Header().Get("HX-Redirect"))
	assert.Contains(t, w.Header().Get("HX-Trigger"), "record:saved")
}

func TestServer_EditRequiresAccessCode(t *testing.T) {
	ts := newTestServer(t)
	p, err := ts.ctrl.SaveProvision(context.Background(), services.ProvisionInput{
		Date: core.NewDate(2025, 1, 1), Amount: core.NewMoney(100),
	})
	require.NoError(t, err)

	w := ts.postForm("/provisions", url.Values{"id": {p.ID}, "date": {"2025-01-01"}, "amount": {"900"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.postForm("/provisions", url.Values{"id": {p.ID}, "date": {"2025-01-01"}, "amount": {"900"}, "pin": {"1997"}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	got, ok := ts.ctrl.Provision(p.ID)
	require.True(t, ok)
	assert.Equal(t, "900.00", got.Amount.Fixed())
}

func TestServer_BiometricUnlock(t *testing.T) {
	ts := newTestServer(t)
	p, err := ts.ctrl.SaveProvision(context.Background(), services.ProvisionInput{
		Date: core.NewDate(2025, 1, 1), Amount: core.NewMoney(250),
	})
	require.NoError(t, err)

	w := ts.get("/export/xlsx?year=2025&month=0&biometric=1")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.postForm("/provisions", url.Values{"id": {p.ID}, "date": {"2025-01-01"}, "amount": {"300"}, "biometric": {"on"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	got, ok := ts.ctrl.Provision(p.ID)
	require.True(t, ok)
	assert.Equal(t, "300.00", got.Amount.Fixed())

	w = ts.postForm("/provisions/delete", url.Values{"id": {p.ID}, "biometric": {"1"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	_, ok = ts.ctrl.Provision(p.ID)
	assert.False(t, ok)

	w = ts.postForm("/provisions/delete", url.Values{"id": {p.ID}, "biometric": {"0"}})
	assert.Equal(t, http.StatusForbidden, w.Code, "biometric=0 falls back to the code")
}

func TestServer_AccessCodeAttemptsAreLimited(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 5; i++ {
		w := ts.get("/export/xlsx?year=2025&month=0&pin=1234")
		require.Equal(t, http.StatusForbidden, w.Code)
	}
	w := ts.get("/export/xlsx?year=2025&month=0&pin=1997")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestServer_InvalidInput(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		form url.Values
		want int
	}{
		{"negative price", url.Values{"price": {"-5"}}, http.StatusUnprocessableEntity},
		{"malformed price", url.Values{"price": {"abc"}}, http.StatusUnprocessableEntity},
		{"malformed date", url.Values{"date": {"10/01/2025"}, "price": {"5"}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.postForm("/expenses", tt.form)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	expenses, _ := ts.ctrl.Counts()
	assert.Zero(t, expenses)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get("/expenses")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "POST", w.Header().Get("Allow"))
}

func TestServer_ReceiptUpload(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(multipartExpense(t, map[string]string{"date": "2025-02-03", "price": "12.5"}, pngBytes(t)))
	require.Equal(t, http.StatusSeeOther, w.Code)

	exps := ts.ctrl.ViewOf(1, 2025).Expenses
	require.Len(t, exps, 1)
	e := exps[0]
	assert.Equal(t, core.DefaultProductName, e.ProductName)
	require.NotEmpty(t, e.Photo)
	assert.Equal(t, []byte{0xFF, 0xD8}, e.Photo[:2], "receipt is stored as JPEG")

	w = ts.get("/expenses/receipt?id=" + e.ID)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, e.Photo, w.Body.Bytes())

	w = ts.get("/expenses/receipt?id=unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_UnreadableReceiptRejected(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(multipartExpense(t, map[string]string{"price": "3"}, []byte("not an image")))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	expenses, _ := ts.ctrl.Counts()
	assert.Zero(t, expenses)
}

func TestServer_CapturePreview(t *testing.T) {
	ts := newTestServer(t)

	r := multipartExpense(t, nil, pngBytes(t))
	r.URL.Path = "/expenses/photo"
	w := ts.do(r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0xFF, 0xD8}, w.Body.Bytes()[:2])
}

func TestServer_Pages(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.ctrl.SaveExpense(context.Background(), services.ExpenseInput{
		Date: core.NewDate(2025, 2, 14), ProductName: "Fleurs", Price: core.NewMoney(80),
	})
	require.NoError(t, err)

	w := ts.get("/month?year=2025&month=1")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Février 2025")
	assert.Contains(t, body, "Fleurs")
	assert.Contains(t, body, "-80.00 DH")

	month, year := ts.ctrl.Selected()
	assert.Equal(t, 1, month)
	assert.Equal(t, 2025, year)

	w = ts.get("/?year=2025")
	require.Equal(t, http.StatusOK, w.Code)
	body = w.Body.String()
	assert.Contains(t, body, "Janvier")
	assert.Contains(t, body, "Décembre")
	assert.Contains(t, body, "À venir")

	w = ts.get("/month?year=2025&month=12")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Export(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.ctrl.SaveProvision(context.Background(), services.ProvisionInput{
		Date: core.NewDate(2025, 1, 2), Amount: core.NewMoney(1000),
	})
	require.NoError(t, err)

	w := ts.get("/export/xlsx?year=2025&month=0")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.get("/export/xlsx?year=2025&month=0&pin=1997")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.NewXLSX().ContentType(), w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="Finance_Janvier_2025.xlsx"`)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w = ts.get("/export/pdf?year=2025&month=0&pin=1997")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="Depenses_Detaillees_Janvier.pdf"`)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "filename*=UTF-8''D%C3%A9penses_D%C3%A9taill%C3%A9es_Janvier.pdf")
	body, _ := io.ReadAll(w.Body)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	w = ts.get("/export/pdf?year=2025&month=13&pin=1997")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{gate.ErrMismatch, http.StatusForbidden},
		{core.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{core.ErrNameTooLong, http.StatusUnprocessableEntity},
		{services.ErrInvalidMonth, http.StatusBadRequest},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, msg := statusFor(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
		assert.NotEmpty(t, msg)
	}
}

func TestAsciiFallback(t *testing.T) {
	assert.Equal(t, "Depenses_Detaillees_Fevrier.pdf", asciiFallback("Dépenses_Détaillées_Février.pdf"))
	assert.Equal(t, "a_b.pdf", asciiFallback(`a"b.pdf`))
}
