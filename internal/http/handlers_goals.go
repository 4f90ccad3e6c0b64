package http

import (
	"net/http"

	"bilancio/internal/core"
	"bilancio/internal/engine"
)

type goalResponse struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	TargetCents       int64  `json:"target_cents"`
	ContributionCents int64  `json:"contribution_cents"`
	SavedCents        int64  `json:"saved_cents"`
	Paused            bool   `json:"paused"`
	IsReached         bool   `json:"is_reached"`
}

func goalToResponse(g core.SavingsGoal) goalResponse {
	return goalResponse{
		ID:                g.ID,
		Name:              g.Name,
		TargetCents:       g.TargetCents,
		ContributionCents: g.ContributionCents,
		SavedCents:        g.SavedCents,
		Paused:            g.Paused,
		IsReached:         g.IsReached(),
	}
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals := s.budget.ListGoals()
	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, goalToResponse(g))
	}
	writeJSON(w, http.StatusOK, out)
}

type createGoalRequest struct {
	Name              string `json:"name"`
	TargetCents       int64  `json:"target_cents"`
	ContributionCents int64  `json:"contribution_cents"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	goal, err := s.budget.CreateGoal(r.Context(), req.Name, req.TargetCents, req.ContributionCents)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.flushBudgetCache()
	writeJSON(w, http.StatusCreated, goalToResponse(goal))
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	goal, err := s.budget.GetGoal(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goalToResponse(goal))
}

type editGoalRequest struct {
	Name              *string `json:"name"`
	TargetCents       *int64  `json:"target_cents"`
	ContributionCents *int64  `json:"contribution_cents"`
}

func (s *Server) handleEditGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req editGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	goal, err := s.budget.EditGoal(r.Context(), id, engine.GoalUpdate{
		Name:              req.Name,
		TargetCents:       req.TargetCents,
		ContributionCents: req.ContributionCents,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.flushBudgetCache()
	writeJSON(w, http.StatusOK, goalToResponse(goal))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.budget.DeleteGoal(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.flushBudgetCache()
	w.WriteHeader(http.StatusNoContent)
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

func (s *Server) handlePauseGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req pauseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.budget.PauseGoal(r.Context(), id, req.Paused); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.flushBudgetCache()
	goal, err := s.budget.GetGoal(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goalToResponse(goal))
}

func (s *Server) handlePauseAllGoals(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.budget.PauseAllGoals(r.Context(), req.Paused); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.flushBudgetCache()
	goals := s.budget.ListGoals()
	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, goalToResponse(g))
	}
	writeJSON(w, http.StatusOK, out)
}
