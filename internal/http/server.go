package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"gestion/internal/core"
	"gestion/internal/export"
	"gestion/internal/gate"
	applog "gestion/internal/log"
	"gestion/internal/middleware/ratelimit"
	"gestion/internal/middleware/security"
	"gestion/internal/middleware/trace"
	"gestion/internal/services"
	appweb "gestion/web"
)

// Deps are the collaborators of the HTTP surface.
type Deps struct {
	Controller *services.Controller
	Gate       *gate.Gate
	PDF        export.Renderer
	XLSX       export.Renderer
	// Ready checks the record store for /readyz. Optional.
	Ready  func(ctx context.Context) error
	Logger *applog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	ctrl      *services.Controller
	gate      *gate.Gate
	pdf       export.Renderer
	xlsx      export.Renderer
	ready     func(ctx context.Context) error
	now       func() time.Time
	started   time.Time

	clientIP    *security.ClientIP
	postLimiter *ratelimit.Limiter
	// pinLimiter counts failed access code attempts per client.
	pinLimiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

var templateFuncs = template.FuncMap{
	"money":      export.FormatAmount,
	"monthName":  export.MonthName,
	"negative":   func(m core.Money) bool { return m.IsNegative() },
	"keypadKeys": func() []string { return []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"} },
}

// NewServer wires routes, templates and middleware.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	clientIP, _ := security.NewClientIP()

	s := &Server{
		ctrl:        deps.Controller,
		gate:        deps.Gate,
		pdf:         deps.PDF,
		xlsx:        deps.XLSX,
		ready:       deps.Ready,
		now:         deps.Now,
		started:     time.Now(),
		clientIP:    clientIP,
		postLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		pinLimiter:  ratelimit.NewLimiter(ratelimit.Config{Limit: 5, Window: time.Minute}),
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		deps.Logger.Error("Failed parsing templates", "error", err)
	}
	s.templates = t

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		mux.Handle("GET /static/", security.StaticAssets(3600)(http.StripPrefix("/static/", http.FileServer(http.FS(sub)))))
	} else {
		deps.Logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /{$}", s.handleYear)
	mux.HandleFunc("GET /month", s.handleMonth)
	mux.Handle("GET /api/summary", security.NoStore(http.HandlerFunc(s.handleSummary)))

	mux.HandleFunc("/expenses", s.handleSaveExpense)
	mux.HandleFunc("/provisions", s.handleSaveProvision)
	mux.HandleFunc("/expenses/delete", s.handleDelete(core.KindExpense))
	mux.HandleFunc("/provisions/delete", s.handleDelete(core.KindProvision))
	mux.HandleFunc("GET /expenses/receipt", s.handleReceipt)
	mux.HandleFunc("/expenses/photo", s.handleCapturePhoto)

	mux.HandleFunc("GET /export/pdf", s.handleExport(func() export.Renderer { return s.pdf }))
	mux.HandleFunc("GET /export/xlsx", s.handleExport(func() export.Renderer { return s.xlsx }))

	var h http.Handler = mux
	h = s.postLimiter.Middleware(s.clientIP.Extract, http.MethodPost)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = applog.AccessLog(s.clientIP.Extract)(h)
	h = applog.Middleware(deps.Logger.WithComponent(applog.ComponentHTTP), trace.FromRequest)(h)
	h = trace.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the limiters and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.postLimiter.Stop()
		s.pinLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			"error", err, "template", name)
	}
}

// checkPIN authorizes a gated action, either with the access code in pin or
// with the biometric prompt when the request sets biometric. It writes the
// error response and returns false when the action must not run.
func (s *Server) checkPIN(w http.ResponseWriter, r *http.Request, pin string) bool {
	ip := s.clientIP.Extract(r)
	if s.pinLimiter.Exceeded(ip) {
		w.Header().Set("Retry-After", "60")
		ErrorResponse(http.StatusTooManyRequests, "Trop de tentatives, réessayez dans une minute.").Write(w)
		return false
	}

	_ = r.ParseForm()
	method := "code"
	var err error
	if formBool(r.Form, "biometric") {
		method = "biometric"
		err = s.gate.Biometric()
	} else {
		err = s.gate.Unlock(pin, nil)
	}

	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentGate)
	if err != nil {
		s.pinLimiter.Allow(ip)
		logger.WarnContext(r.Context(), "Access code rejected",
			applog.FieldOperation, applog.OpUnlock,
			applog.FieldPath, r.URL.Path,
			"method", method)
		ForbiddenError("Code d'accès incorrect.").Write(w)
		return false
	}
	logger.DebugContext(r.Context(), "Access granted",
		applog.FieldOperation, applog.OpUnlock,
		applog.FieldPath, r.URL.Path,
		"method", method)
	s.pinLimiter.Reset(ip)
	return true
}

func contentDisposition(filename string) string {
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, asciiFallback(filename), pathEscape(filename))
}
