package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"gestion/internal/core"
	"gestion/internal/export"
	"gestion/internal/ledger"
	applog "gestion/internal/log"
	"gestion/internal/services"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks templates and the record store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"templates": "ok", "store": "ok"}
	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}
	exps, provs := s.ctrl.Counts()
	writeJSON(w, code, map[string]any{
		"status":     status,
		"timestamp":  time.Now().Format(time.RFC3339),
		"checks":     checks,
		"expenses":   exps,
		"provisions": provs,
	})
}

type monthCard struct {
	ledger.MonthSummary
	Name     string
	URL      string
	Future   bool
	Selected bool
}

type yearPage struct {
	Year       int
	Months     []monthCard
	PrevYear   int
	NextYear   int
	NextFuture bool
}

// handleYear renders the twelve months of a year. Months after the current
// one are shown but not linked.
func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	selMonth, selYear := s.ctrl.Selected()
	year := selYear
	if v := r.URL.Query().Get("year"); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}

	page := yearPage{
		Year:       year,
		PrevYear:   year - 1,
		NextYear:   year + 1,
		NextFuture: services.IsFuture(0, year+1, now),
	}
	for _, sum := range s.ctrl.Year(year) {
		page.Months = append(page.Months, monthCard{
			MonthSummary: sum,
			Name:         export.MonthName(sum.Month),
			URL:          MonthParams{Year: year, Month: sum.Month}.URL(),
			Future:       services.IsFuture(sum.Month, year, now),
			Selected:     sum.Month == selMonth && year == selYear,
		})
	}
	s.render(w, r, "year.html", page)
}

type monthPage struct {
	services.MonthView
	Name       string
	Status     string
	Prev       MonthParams
	Next       MonthParams
	NextFuture bool
	Today      string
	Month      MonthParams
}

// handleMonth selects a month and renders its dashboard.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	m, y := s.ctrl.Selected()
	params, err := ParseMonthParams(r.URL.Query(), MonthParams{Year: y, Month: m})
	if err != nil {
		BadRequestError("Mois invalide.").Write(w)
		return
	}
	if err := s.ctrl.Select(params.Month, params.Year); err != nil {
		BadRequestError("Mois invalide.").Write(w)
		return
	}

	view := s.ctrl.View()
	page := monthPage{
		MonthView:  view,
		Name:       export.MonthName(params.Month),
		Status:     string(view.Summary.Status()),
		Prev:       params.Prev(),
		Next:       params.Next(),
		NextFuture: services.IsFuture(params.Next().Month, params.Next().Year, s.now()),
		Today:      core.Today().String(),
		Month:      params,
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Month selected",
		applog.NewFields().WithMonth(params.Month, params.Year).ToSlice()...)
	s.render(w, r, "month.html", page)
}

type summaryResponse struct {
	Month          int    `json:"month"`
	MonthName      string `json:"month_name"`
	Year           int    `json:"year"`
	Expenses       string `json:"expenses"`
	Provisions     string `json:"provisions"`
	CarryOver      string `json:"carry_over"`
	Available      string `json:"available"`
	Balance        string `json:"balance"`
	Status         string `json:"status"`
	ExpenseCount   int    `json:"expense_count"`
	ProvisionCount int    `json:"provision_count"`
}

func newSummaryResponse(v services.MonthView) summaryResponse {
	sum := v.Summary
	return summaryResponse{
		Month:          sum.Month,
		MonthName:      export.MonthName(sum.Month),
		Year:           sum.Year,
		Expenses:       sum.Totals.Expenses.Fixed(),
		Provisions:     sum.Totals.Provisions.Fixed(),
		CarryOver:      sum.CarryOver.Fixed(),
		Available:      sum.Available.Fixed(),
		Balance:        sum.Balance.Fixed(),
		Status:         string(sum.Status()),
		ExpenseCount:   len(v.Expenses),
		ProvisionCount: len(v.Provisions),
	}
}

// handleSummary returns the ledger figures of a month without changing the
// selection.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	m, y := s.ctrl.Selected()
	params, err := ParseMonthParams(r.URL.Query(), MonthParams{Year: y, Month: m})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, newSummaryResponse(s.ctrl.ViewOf(params.Month, params.Year)))
}
