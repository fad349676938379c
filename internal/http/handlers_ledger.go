package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"persacc/internal/core"
	"persacc/internal/ledger"
	"persacc/internal/metrics"
)

type transactionDTO struct {
	ID             int64  `json:"id"`
	RealDate       string `json:"real_date"`
	AccountingDate string `json:"accounting_date"`
	Period         string `json:"period"`
	Movement       string `json:"movement"`
	CategoryID     int64  `json:"category_id,omitempty"`
	Concept        string `json:"concept"`
	AmountCents    int64  `json:"amount_cents"`
	Amount         string `json:"amount"`
	Relevance      string `json:"relevance,omitempty"`
	Liquid         bool   `json:"liquid"`
	Origin         string `json:"origin,omitempty"`
}

func toTransactionDTO(t core.Transaction) transactionDTO {
	return transactionDTO{
		ID:             t.ID,
		RealDate:       t.RealDate.ISO(),
		AccountingDate: t.AccountingDate.ISO(),
		Period:         t.Period.String(),
		Movement:       string(t.Movement),
		CategoryID:     t.CategoryID,
		Concept:        t.Concept,
		AmountCents:    t.Amount.Cents,
		Amount:         t.Amount.String(),
		Relevance:      string(t.Relevance),
		Liquid:         t.Liquid,
		Origin:         t.Origin,
	}
}

type createTransactionRequest struct {
	RealDate       string `json:"real_date"`
	AccountingDate string `json:"accounting_date,omitempty"`
	Movement       string `json:"movement"`
	CategoryID     int64  `json:"category_id"`
	Concept        string `json:"concept"`
	Amount         string `json:"amount"` // decimal magnitude, e.g. "45.00"
	Relevance      string `json:"relevance,omitempty"`
	Liquid         *bool  `json:"liquid,omitempty"` // default true
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	realDate, err := core.ParseDate(req.RealDate)
	if err != nil {
		badRequest(w, "real_date: "+err.Error())
		return
	}
	var acctDate core.Date
	if req.AccountingDate != "" {
		if acctDate, err = core.ParseDate(req.AccountingDate); err != nil {
			badRequest(w, "accounting_date: "+err.Error())
			return
		}
	}
	amount, err := core.ParseCents(req.Amount)
	if err != nil {
		badRequest(w, "amount: "+err.Error())
		return
	}
	liquid := true
	if req.Liquid != nil {
		liquid = *req.Liquid
	}

	id, err := s.ledger.Create(r.Context(), ledger.Input{
		RealDate:       realDate,
		AccountingDate: acctDate,
		Movement:       core.MovementType(req.Movement),
		CategoryID:     req.CategoryID,
		Concept:        req.Concept,
		AmountCents:    amount,
		Relevance:      core.RelevanceCode(req.Relevance),
		Liquid:         liquid,
	})
	if err != nil {
		metrics.LedgerWrites.WithLabelValues("create", "error").Inc()
		writeError(w, r, err)
		return
	}
	metrics.LedgerWrites.WithLabelValues("create", "ok").Inc()

	t, err := s.ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(t))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	var filter ledger.Filter
	q := r.URL.Query()

	switch {
	case q.Get("period") != "":
		key, err := core.ParsePeriodKey(q.Get("period"))
		if err != nil {
			badRequest(w, "period: "+err.Error())
			return
		}
		filter.Period = &key
	case q.Get("from") != "" && q.Get("to") != "":
		from, err := core.ParseDate(q.Get("from"))
		if err != nil {
			badRequest(w, "from: "+err.Error())
			return
		}
		to, err := core.ParseDate(q.Get("to"))
		if err != nil {
			badRequest(w, "to: "+err.Error())
			return
		}
		filter.From, filter.To = &from, &to
	case q.Get("category") != "":
		id, err := strconv.ParseInt(q.Get("category"), 10, 64)
		if err != nil {
			badRequest(w, "category: not a number")
			return
		}
		filter.CategoryID = &id
	default:
		badRequest(w, "one of period, from+to or category is required")
		return
	}

	list, err := s.ledger.Query(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]transactionDTO, 0, len(list))
	for _, t := range list {
		out = append(out, toTransactionDTO(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := s.ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(t))
}

type updateTransactionRequest struct {
	RealDate       *string `json:"real_date,omitempty"`
	AccountingDate *string `json:"accounting_date,omitempty"`
	Movement       *string `json:"movement,omitempty"`
	CategoryID     *int64  `json:"category_id,omitempty"`
	Concept        *string `json:"concept,omitempty"`
	Amount         *string `json:"amount,omitempty"`
	Relevance      *string `json:"relevance,omitempty"`
	Liquid         *bool   `json:"liquid,omitempty"`
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var u ledger.Update
	var err error
	if req.RealDate != nil {
		var d core.Date
		if d, err = core.ParseDate(*req.RealDate); err != nil {
			badRequest(w, "real_date: "+err.Error())
			return
		}
		u.RealDate = &d
	}
	if req.AccountingDate != nil {
		var d core.Date
		if d, err = core.ParseDate(*req.AccountingDate); err != nil {
			badRequest(w, "accounting_date: "+err.Error())
			return
		}
		u.AccountingDate = &d
	}
	if req.Movement != nil {
		m := core.MovementType(*req.Movement)
		u.Movement = &m
	}
	if req.CategoryID != nil {
		u.CategoryID = req.CategoryID
	}
	if req.Concept != nil {
		u.Concept = req.Concept
	}
	if req.Amount != nil {
		var cents int64
		if cents, err = core.ParseCents(*req.Amount); err != nil {
			badRequest(w, "amount: "+err.Error())
			return
		}
		u.AmountCents = &cents
	}
	if req.Relevance != nil {
		rel := core.RelevanceCode(*req.Relevance)
		u.Relevance = &rel
	}
	u.Liquid = req.Liquid

	if err := s.ledger.Update(r.Context(), id, u); err != nil {
		metrics.LedgerWrites.WithLabelValues("update", "error").Inc()
		writeError(w, r, err)
		return
	}
	metrics.LedgerWrites.WithLabelValues("update", "ok").Inc()

	t, err := s.ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(t))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.Delete(r.Context(), id); err != nil {
		metrics.LedgerWrites.WithLabelValues("delete", "error").Inc()
		writeError(w, r, err)
		return
	}
	metrics.LedgerWrites.WithLabelValues("delete", "ok").Inc()
	w.WriteHeader(http.StatusNoContent)
}

type categoryDTO struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Movement         string `json:"movement"`
	Active           bool   `json:"active"`
	DefaultConcept   string `json:"default_concept,omitempty"`
	DefaultAmount    string `json:"default_amount,omitempty"`
	DefaultRelevance string `json:"default_relevance,omitempty"`
	UsageCount       int64  `json:"usage_count"`
	LastUsed         string `json:"last_used,omitempty"`
}

func toCategoryDTO(c core.Category) categoryDTO {
	dto := categoryDTO{
		ID:               c.ID,
		Name:             c.Name,
		Movement:         string(c.Movement),
		Active:           c.Active,
		DefaultConcept:   c.DefaultConcept,
		DefaultRelevance: string(c.DefaultRelevance),
		UsageCount:       c.UsageCount,
	}
	if !c.DefaultAmount.IsZero() {
		dto.DefaultAmount = c.DefaultAmount.String()
	}
	if !c.LastUsed.IsZero() {
		dto.LastUsed = c.LastUsed.ISO()
	}
	return dto
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	onlyActive := r.URL.Query().Get("active") == "true"
	list, err := s.ledger.Categories(r.Context(), onlyActive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]categoryDTO, 0, len(list))
	for _, c := range list {
		out = append(out, toCategoryDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

type createCategoryRequest struct {
	Name             string `json:"name"`
	Movement         string `json:"movement"`
	DefaultConcept   string `json:"default_concept,omitempty"`
	DefaultAmount    string `json:"default_amount,omitempty"`
	DefaultRelevance string `json:"default_relevance,omitempty"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c := core.Category{
		Name:             req.Name,
		Movement:         core.MovementType(req.Movement),
		DefaultConcept:   req.DefaultConcept,
		DefaultRelevance: core.RelevanceCode(req.DefaultRelevance),
	}
	if req.DefaultAmount != "" {
		amount, err := core.ParseMoney(req.DefaultAmount)
		if err != nil {
			badRequest(w, "default_amount: "+err.Error())
			return
		}
		c.DefaultAmount = amount
	}

	id, err := s.ledger.CreateCategory(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c.ID = id
	c.Active = true
	writeJSON(w, http.StatusCreated, toCategoryDTO(c))
}

func (s *Server) handleDeactivateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeactivateCategory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, "id must be a number")
		return 0, false
	}
	return id, true
}
