package http

import (
	"net/http"

	"bilancio/internal/core"
	"bilancio/internal/engine"
)

type entryResponse struct {
	ID             int64  `json:"id"`
	SourceName     string `json:"source_name"`
	TotalCents     int64  `json:"total_cents"`
	PeriodCount    int    `json:"period_count"`
	StartDate      string `json:"start_date"`
	PerPeriodCents int64  `json:"per_period_cents"`
	PeriodsElapsed int    `json:"periods_elapsed"`
	IsComplete     bool   `json:"is_complete"`
}

func (s *Server) entryToResponse(e core.AmortizationEntry, asOf core.Date) entryResponse {
	resp := entryResponse{
		ID:             e.ID,
		SourceName:     e.SourceName,
		TotalCents:     e.TotalCents,
		PeriodCount:    e.PeriodCount,
		StartDate:      e.StartDate.ISO(),
		PerPeriodCents: e.PerPeriodCents,
	}
	if progress, err := s.budget.EntryProgress(e.ID, asOf); err == nil {
		resp.PeriodsElapsed = progress.PeriodsElapsed
		resp.IsComplete = progress.IsComplete
	}
	return resp
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of date")
		return
	}
	entries := s.budget.ListEntries()
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, s.entryToResponse(e, asOf))
	}
	writeJSON(w, http.StatusOK, out)
}

type createEntryRequest struct {
	SourceName  string `json:"source_name"`
	TotalCents  int64  `json:"total_cents"`
	PeriodCount int    `json:"period_count"`
	StartDate   string `json:"start_date"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	startDate, err := core.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid start_date")
		return
	}

	entry, err := s.budget.CreateEntry(r.Context(), req.SourceName, req.TotalCents, req.PeriodCount, startDate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.flushBudgetCache()
	writeJSON(w, http.StatusCreated, s.entryToResponse(entry, core.DateOf(entry.StartDate.Time)))
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of date")
		return
	}
	entry, err := s.budget.GetEntry(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.entryToResponse(entry, asOf))
}

type entryProgressResponse struct {
	EntryID        int64 `json:"entry_id"`
	PeriodsElapsed int   `json:"periods_elapsed"`
	PeriodCount    int   `json:"period_count"`
	IsComplete     bool  `json:"is_complete"`
}

func (s *Server) handleEntryProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of date")
		return
	}
	progress, err := s.budget.EntryProgress(id, asOf)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entryProgressResponse{
		EntryID:        id,
		PeriodsElapsed: progress.PeriodsElapsed,
		PeriodCount:    progress.PeriodCount,
		IsComplete:     progress.IsComplete,
	})
}

type editEntryRequest struct {
	SourceName  *string `json:"source_name"`
	TotalCents  *int64  `json:"total_cents"`
	PeriodCount *int    `json:"period_count"`
	StartDate   *string `json:"start_date"`
}

func (s *Server) handleEditEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req editEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	update := engine.EntryUpdate{
		SourceName:  req.SourceName,
		TotalCents:  req.TotalCents,
		PeriodCount: req.PeriodCount,
	}
	if req.StartDate != nil {
		startDate, err := core.ParseDate(*req.StartDate)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid start_date")
			return
		}
		update.StartDate = &startDate
	}

	entry, err := s.budget.EditEntry(r.Context(), id, update)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.flushBudgetCache()
	writeJSON(w, http.StatusOK, s.entryToResponse(entry, core.DateOf(entry.StartDate.Time)))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.budget.DeleteEntry(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.flushBudgetCache()
	w.WriteHeader(http.StatusNoContent)
}
