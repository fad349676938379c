package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"persacc/internal/closing"
	"persacc/internal/core"
	"persacc/internal/metrics"
)

type previewDTO struct {
	SurplusBaseCents     int64 `json:"surplus_base_cents"`
	SurplusRetainedCents int64 `json:"surplus_retained_cents"`
	SalaryRetainedCents  int64 `json:"salary_retained_cents"`
	ConsequencesCents    int64 `json:"consequences_cents"`
	ClosingBalanceCents  int64 `json:"closing_balance_cents"`
	Entries              int   `json:"entries"`
}

type draftDTO struct {
	ID        string      `json:"id"`
	Target    string      `json:"target"`
	State     string      `json:"state"`
	CreatedAt string      `json:"created_at"`
	Method    string      `json:"method"`
	Inputs    inputsDTO   `json:"inputs"`
	Preview   *previewDTO `json:"preview,omitempty"`
}

type inputsDTO struct {
	Captured     string `json:"captured"`
	NewSalary    string `json:"new_salary"`
	NextSalary   string `json:"next_salary,omitempty"`
	SurplusPctBP *int64 `json:"surplus_pct_bp,omitempty"`
	SalaryPctBP  *int64 `json:"salary_pct_bp,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

func toDraftDTO(d closing.Draft) draftDTO {
	dto := draftDTO{
		ID:        d.ID.String(),
		Target:    d.Target.String(),
		State:     string(d.State),
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
		Method:    string(d.Config.Method),
		Inputs: inputsDTO{
			Captured:     d.Inputs.Captured.String(),
			NewSalary:    d.Inputs.NewSalary.String(),
			SurplusPctBP: d.Inputs.SurplusPctBP,
			SalaryPctBP:  d.Inputs.SalaryPctBP,
			Notes:        d.Inputs.Notes,
		},
	}
	if d.Inputs.NextSalary != nil {
		dto.Inputs.NextSalary = d.Inputs.NextSalary.String()
	}
	if d.Preview != nil {
		dto.Preview = &previewDTO{
			SurplusBaseCents:     d.Preview.SurplusBase.Cents,
			SurplusRetainedCents: d.Preview.SurplusRetained.Cents,
			SalaryRetainedCents:  d.Preview.SalaryRetained.Cents,
			ConsequencesCents:    d.Preview.Consequences.Cents,
			ClosingBalanceCents:  d.Preview.ClosingBalance.Cents,
			Entries:              len(d.Preview.Entries),
		}
	}
	return dto
}

func (s *Server) handleNewDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.NewDraft(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDraftDTO(d))
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDraftID(w, r)
	if !ok {
		return
	}
	d, err := s.engine.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDraftDTO(d))
}

type draftInputsRequest struct {
	Captured     string `json:"captured"`
	NewSalary    string `json:"new_salary"`
	NextSalary   string `json:"next_salary,omitempty"`
	SurplusPctBP *int64 `json:"surplus_pct_bp,omitempty"`
	SalaryPctBP  *int64 `json:"salary_pct_bp,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

func (s *Server) handleDraftInputs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDraftID(w, r)
	if !ok {
		return
	}
	var req draftInputsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	captured, err := core.ParseMoney(req.Captured)
	if err != nil {
		badRequest(w, "captured: "+err.Error())
		return
	}
	salary, err := core.ParseMoney(req.NewSalary)
	if err != nil {
		badRequest(w, "new_salary: "+err.Error())
		return
	}
	in := closing.Inputs{
		Captured:     captured,
		NewSalary:    salary,
		SurplusPctBP: req.SurplusPctBP,
		SalaryPctBP:  req.SalaryPctBP,
		Notes:        req.Notes,
	}
	if req.NextSalary != "" {
		next, err := core.ParseMoney(req.NextSalary)
		if err != nil {
			badRequest(w, "next_salary: "+err.Error())
			return
		}
		in.NextSalary = &next
	}

	d, err := s.engine.SetInputs(id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDraftDTO(d))
}

func (s *Server) handleDraftValidate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDraftID(w, r)
	if !ok {
		return
	}
	d, err := s.engine.Validate(r.Context(), id)
	if err != nil {
		metrics.ClosingFailures.WithLabelValues("validate").Inc()
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDraftDTO(d))
}

func (s *Server) handleDraftCommit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDraftID(w, r)
	if !ok {
		return
	}
	snap, err := s.engine.Commit(r.Context(), id)
	if err != nil {
		metrics.ClosingFailures.WithLabelValues("commit").Inc()
		writeError(w, r, err)
		return
	}
	metrics.ClosingsCommitted.Inc()
	metrics.RetainedCents.WithLabelValues("surplus").Add(float64(snap.SurplusRetained.Cents))
	metrics.RetainedCents.WithLabelValues("salary").Add(float64(snap.SalaryRetained.Cents))
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

func (s *Server) handleDraftDiscard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDraftID(w, r)
	if !ok {
		return
	}
	if err := s.engine.Discard(id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathDraftID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "id must be a uuid")
		return uuid.UUID{}, false
	}
	return id, true
}
