package http

import (
	"errors"
	"net/http"
	"strconv"

	"bilancio/internal/core"
	"bilancio/internal/services"
)

type transactionResponse struct {
	ID              int64  `json:"id"`
	MerchantText    string `json:"merchant_text"`
	AmountCents     int64  `json:"amount_cents"`
	Date            string `json:"date"`
	Status          string `json:"status"`
	MatchedSourceID *int64 `json:"matched_source_id,omitempty"`
}

func transactionToResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:              t.ID,
		MerchantText:    t.MerchantText,
		AmountCents:     t.AmountCents,
		Date:            t.Date.ISO(),
		Status:          string(t.Status),
		MatchedSourceID: t.MatchedSourceID,
	}
}

func transactionsToResponse(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionToResponse(t))
	}
	return out
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	txs, err := s.transactions.ListRecent(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionsToResponse(txs))
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	txs, err := s.transactions.ListPending(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionsToResponse(txs))
}

type ingestRequest struct {
	MerchantText string `json:"merchant_text"`
	AmountCents  int64  `json:"amount_cents"`
	Date         string `json:"date"`
	// Enqueue hands the transaction to the broker instead of classifying
	// it in the request.
	Enqueue bool `json:"enqueue,omitempty"`
}

func (s *Server) handleIngestTransaction(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date")
		return
	}

	if req.Enqueue {
		if err := s.transactions.EnqueueIngest(r.Context(), req.MerchantText, req.AmountCents, date); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	tx, err := s.transactions.Ingest(r.Context(), req.MerchantText, req.AmountCents, date)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionToResponse(tx))
}

type confirmRequest struct {
	Answer string `json:"answer"`
}

func (s *Server) handleConfirmTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req confirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	answer := core.Confirmation(req.Answer)
	if answer != core.ConfirmYes && answer != core.ConfirmNo {
		writeError(w, http.StatusUnprocessableEntity, "answer must be yes or no")
		return
	}

	tx, err := s.transactions.Confirm(r.Context(), id, answer)
	if err != nil {
		if errors.Is(err, services.ErrNotPending) {
			writeError(w, http.StatusConflict, "transaction is not pending")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionToResponse(tx))
}
