package http

import (
	"net/http"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

type createTransactionRequest struct {
	Amount      core.Money `json:"amount"`
	CategoryID  int64      `json:"category_id"`
	Date        core.Date  `json:"date"`
	Description string     `json:"description,omitempty"`
}

type updateTransactionRequest struct {
	Amount      *core.Money `json:"amount,omitempty"`
	CategoryID  *int64      `json:"category_id,omitempty"`
	Date        *core.Date  `json:"date,omitempty"`
	Description *string     `json:"description,omitempty"`
}

// handleListTransactions returns classified transactions for a period.
// Savings rows are included unless include_savings=false.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	period, err := analytics.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := queryDate(r, "start_date")
	if err != nil {
		respondError(w, r, err)
		return
	}
	end, err := queryDate(r, "end_date")
	if err != nil {
		respondError(w, r, err)
		return
	}
	includeSavings := queryBool(r, "include_savings", true)

	rng, err := analytics.Resolve(period, start, end, core.DateOf(time.Now()))
	if err != nil {
		respondError(w, r, err)
		return
	}

	rows, err := s.store.ListTransactions(r.Context(), rng.Start, rng.End, includeSavings)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if rows == nil {
		rows = []core.ClassifiedTransaction{}
	}

	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx := core.Transaction{
		Amount:      req.Amount,
		CategoryID:  req.CategoryID,
		Date:        req.Date,
		Description: sanitizeInput(req.Description),
	}
	if err := tx.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	id, err := s.store.CreateTransaction(r.Context(), tx)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateReports()
	s.notifyUpsert(r.Context(), id)
	applog.FromContext(r.Context()).InfoContext(r.Context(), "transaction created",
		applog.NewFields().WithTransaction(id, tx.Amount.Cents, tx.CategoryID).ToSlice()...)
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req updateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount == nil && req.CategoryID == nil && req.Date == nil && req.Description == nil {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	if req.Amount != nil && req.Amount.Cents <= 0 {
		respondError(w, r, core.ErrInvalidAmount)
		return
	}

	upd := storage.TransactionUpdate{
		Amount:      req.Amount,
		CategoryID:  req.CategoryID,
		Date:        req.Date,
		Description: req.Description,
	}
	if err := s.store.UpdateTransaction(r.Context(), id, upd); err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateReports()
	s.notifyUpsert(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	if err := s.store.DeleteTransaction(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateReports()
	s.notifyDelete(r.Context(), id)
	applog.FromContext(r.Context()).InfoContext(r.Context(), "transaction deleted",
		applog.FieldTransactionID, id)
	w.WriteHeader(http.StatusNoContent)
}
