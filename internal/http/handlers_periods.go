package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"persacc/internal/core"
	"persacc/internal/forecast"
	"persacc/internal/kpi"
	"persacc/internal/worker"
)

type snapshotDTO struct {
	ClosedAt             string `json:"closed_at"`
	Method               string `json:"method"`
	CapturedBalanceCents int64  `json:"captured_balance_cents"`
	NewSalaryCents       int64  `json:"new_salary_cents"`
	SurplusPctBP         int64  `json:"surplus_pct_bp"`
	SalaryPctBP          int64  `json:"salary_pct_bp"`
	SurplusRetainedCents int64  `json:"surplus_retained_cents"`
	SalaryRetainedCents  int64  `json:"salary_retained_cents"`
	ConsequencesCents    int64  `json:"consequences_cents"`
	TotalIncomeCents     int64  `json:"total_income_cents"`
	TotalExpenseCents    int64  `json:"total_expense_cents"`
	ClosingBalanceCents  int64  `json:"closing_balance_cents"`
	NextSalaryCents      int64  `json:"next_salary_cents"`
	DeviationCents       int64  `json:"deviation_cents"`
	Notes                string `json:"notes,omitempty"`
}

func toSnapshotDTO(s core.ClosingSnapshot) snapshotDTO {
	return snapshotDTO{
		ClosedAt:             s.ClosedAt.Format(time.RFC3339),
		Method:               string(s.Method),
		CapturedBalanceCents: s.CapturedBalance.Cents,
		NewSalaryCents:       s.NewSalary.Cents,
		SurplusPctBP:         s.SurplusPctBP,
		SalaryPctBP:          s.SalaryPctBP,
		SurplusRetainedCents: s.SurplusRetained.Cents,
		SalaryRetainedCents:  s.SalaryRetained.Cents,
		ConsequencesCents:    s.Consequences.Cents,
		TotalIncomeCents:     s.TotalIncome.Cents,
		TotalExpenseCents:    s.TotalExpense.Cents,
		ClosingBalanceCents:  s.ClosingBalance.Cents,
		NextSalaryCents:      s.NextSalary.Cents,
		DeviationCents:       s.Deviation.Cents,
		Notes:                s.Notes,
	}
}

type periodDTO struct {
	Period              string       `json:"period"`
	State               string       `json:"state"`
	OpeningBalanceCents int64        `json:"opening_balance_cents"`
	OpeningBalance      string       `json:"opening_balance"`
	Snapshot            *snapshotDTO `json:"snapshot,omitempty"`
}

func toPeriodDTO(p core.Period) periodDTO {
	dto := periodDTO{
		Period:              p.Key.String(),
		State:               string(p.State),
		OpeningBalanceCents: p.OpeningBalance.Cents,
		OpeningBalance:      p.OpeningBalance.String(),
	}
	if p.Snapshot != nil {
		snap := toSnapshotDTO(*p.Snapshot)
		dto.Snapshot = &snap
	}
	return dto
}

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	list, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]periodDTO, 0, len(list))
	for _, p := range list {
		out = append(out, toPeriodDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.Open(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

func (s *Server) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	key, ok := pathPeriod(w, r)
	if !ok {
		return
	}
	p, err := s.registry.Get(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

type relevanceShareDTO struct {
	Code        string `json:"code"`
	AmountCents int64  `json:"amount_cents"`
	ShareBP     int64  `json:"share_bp"`
}

type categoryTotalDTO struct {
	CategoryID  int64  `json:"category_id"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Entries     int    `json:"entries"`
}

func toCategoryTotalDTO(c kpi.CategoryTotal) categoryTotalDTO {
	return categoryTotalDTO{
		CategoryID:  c.CategoryID,
		Name:        c.Name,
		AmountCents: c.Amount.Cents,
		Entries:     c.Entries,
	}
}

type summaryDTO struct {
	Period              string              `json:"period"`
	OpeningBalanceCents int64               `json:"opening_balance_cents"`
	TotalIncomeCents    int64               `json:"total_income_cents"`
	TotalExpenseCents   int64               `json:"total_expense_cents"`
	NetCents            int64               `json:"net_cents"`
	LiquidBalanceCents  int64               `json:"liquid_balance_cents"`
	Relevance           []relevanceShareDTO `json:"relevance"`
	Categories          []categoryTotalDTO  `json:"categories"`
}

func toSummaryDTO(s kpi.Summary) summaryDTO {
	dto := summaryDTO{
		Period:              s.Period.String(),
		OpeningBalanceCents: s.OpeningBalance.Cents,
		TotalIncomeCents:    s.TotalIncome.Cents,
		TotalExpenseCents:   s.TotalExpense.Cents,
		NetCents:            s.Net.Cents,
		LiquidBalanceCents:  s.LiquidBalance.Cents,
	}
	for _, r := range s.Relevance {
		dto.Relevance = append(dto.Relevance, relevanceShareDTO{
			Code:        string(r.Code),
			AmountCents: r.Amount.Cents,
			ShareBP:     r.ShareBP,
		})
	}
	for _, c := range s.Categories {
		dto.Categories = append(dto.Categories, toCategoryTotalDTO(c))
	}
	return dto
}

func (s *Server) handlePeriodSummary(w http.ResponseWriter, r *http.Request) {
	key, ok := pathPeriod(w, r)
	if !ok {
		return
	}
	summary, err := s.kpi.Aggregate(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

type analysisDTO struct {
	Period   string `json:"period"`
	Analysis string `json:"analysis"`
}

func (s *Server) handlePeriodAnalysis(w http.ResponseWriter, r *http.Request) {
	key, ok := pathPeriod(w, r)
	if !ok {
		return
	}
	analysis, err := s.repo.Queries().GetAnalysis(r.Context(), worker.AnalysisPeriodMonth, key.String())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysisDTO{Period: key.String(), Analysis: analysis})
}

type monthTotalDTO struct {
	Period       string `json:"period"`
	IncomeCents  int64  `json:"income_cents"`
	ExpenseCents int64  `json:"expense_cents"`
	NetCents     int64  `json:"net_cents"`
	Entries      int    `json:"entries"`
}

type yearSummaryDTO struct {
	Year              int               `json:"year"`
	Months            []monthTotalDTO   `json:"months"`
	TotalIncomeCents  int64             `json:"total_income_cents"`
	TotalExpenseCents int64             `json:"total_expense_cents"`
	NetCents          int64             `json:"net_cents"`
	BestMonth         string            `json:"best_month,omitempty"`
	WorstMonth        string            `json:"worst_month,omitempty"`
	TopCategory       *categoryTotalDTO `json:"top_category,omitempty"`
}

func toYearSummaryDTO(s kpi.YearSummary) yearSummaryDTO {
	dto := yearSummaryDTO{
		Year:              s.Year,
		TotalIncomeCents:  s.TotalIncome.Cents,
		TotalExpenseCents: s.TotalExpense.Cents,
		NetCents:          s.Net.Cents,
	}
	for _, m := range s.Months {
		dto.Months = append(dto.Months, monthTotalDTO{
			Period:       m.Period.String(),
			IncomeCents:  m.Income.Cents,
			ExpenseCents: m.Expense.Cents,
			NetCents:     m.Net.Cents,
			Entries:      m.Entries,
		})
	}
	if s.BestMonth != nil {
		dto.BestMonth = s.BestMonth.String()
	}
	if s.WorstMonth != nil {
		dto.WorstMonth = s.WorstMonth.String()
	}
	if s.TopCategory != nil {
		top := toCategoryTotalDTO(*s.TopCategory)
		dto.TopCategory = &top
	}
	return dto
}

func (s *Server) handleYearSummary(w http.ResponseWriter, r *http.Request) {
	year, ok := pathYear(w, r)
	if !ok {
		return
	}
	summary, err := s.kpi.Year(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toYearSummaryDTO(summary))
}

type forecastPointDTO struct {
	Period     string `json:"period"`
	ValueCents int64  `json:"value_cents"`
}

type forecastDTO struct {
	Year     int                `json:"year"`
	Horizon  int                `json:"horizon"`
	Forecast []forecastPointDTO `json:"forecast"`
}

func (s *Server) handleYearForecast(w http.ResponseWriter, r *http.Request) {
	year, ok := pathYear(w, r)
	if !ok {
		return
	}
	horizon := 3
	if raw := r.URL.Query().Get("horizon"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h < 1 || h > 12 {
			badRequest(w, "horizon must be between 1 and 12")
			return
		}
		horizon = h
	}

	summary, err := s.kpi.Year(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var history []forecast.Point
	for i, m := range summary.Months {
		if m.Entries == 0 {
			continue
		}
		history = append(history, forecast.Point{
			Period: core.PeriodKey{Year: year, Month: time.Month(i + 1)},
			Value:  m.Net,
		})
	}

	points, err := s.forecaster.Forecast(history, horizon)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := forecastDTO{Year: year, Horizon: horizon}
	for _, p := range points {
		out.Forecast = append(out.Forecast, forecastPointDTO{
			Period:     p.Period.String(),
			ValueCents: p.Value.Cents,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func pathPeriod(w http.ResponseWriter, r *http.Request) (core.PeriodKey, bool) {
	key, err := core.ParsePeriodKey(chi.URLParam(r, "period"))
	if err != nil {
		badRequest(w, "period: "+err.Error())
		return core.PeriodKey{}, false
	}
	return key, true
}

func pathYear(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1970 || year > 9999 {
		badRequest(w, "year must be a four digit number")
		return 0, false
	}
	return year, true
}
