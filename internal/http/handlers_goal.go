package http

import (
	"net/http"
	"strings"

	"expensa/internal/core"
)

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.deps.Goals.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]goalDTO, 0, len(goals))
	for _, g := range goals {
		out = append(out, toGoalDTO(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var in goalInput
	if err := decodeJSON(r, maxBodyBytes, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	g, err := in.goal(userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.deps.Goals.Create(r.Context(), g)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalDTO(saved))
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.deps.Goals.Get(r.Context(), userID(r), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(g))
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var in goalInput
	if err := decodeJSON(r, maxBodyBytes, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	g, err := in.goal(userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	g.ID = pathID(r, "id")
	updated, err := s.deps.Goals.Update(r.Context(), g)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(updated))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Goals.Delete(r.Context(), userID(r), pathID(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListContributions(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Goals.Contributions(r.Context(), userID(r), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]contributionDTO, 0, len(list))
	for _, c := range list {
		out = append(out, toContributionDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

type goalChangeDTO struct {
	Contribution *contributionDTO `json:"contribution,omitempty"`
	Goal         goalDTO          `json:"goal"`
}

// handleContribute adds a positive amount to a goal. Withdrawals are made by
// removing contributions. The date defaults to today.
func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	var in contributionInput
	if err := decodeJSON(r, maxBodyBytes, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	amount, err := in.money()
	if err != nil {
		writeError(w, r, err)
		return
	}
	date := core.DateOf(s.now().UTC())
	if strings.TrimSpace(in.Date) != "" {
		if date, err = core.ParseDate(in.Date); err != nil {
			writeError(w, r, err)
			return
		}
	}

	c, g, err := s.deps.Goals.Contribute(r.Context(), core.Contribution{
		GoalID: pathID(r, "id"),
		UserID: userID(r),
		Amount: amount,
		Date:   date,
		Note:   sanitizeInput(in.Note),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	cd := toContributionDTO(c)
	writeJSON(w, http.StatusCreated, goalChangeDTO{Contribution: &cd, Goal: toGoalDTO(g)})
}

func (s *Server) handleRemoveContribution(w http.ResponseWriter, r *http.Request) {
	g, err := s.deps.Goals.RemoveContribution(r.Context(), userID(r), pathID(r, "id"), pathID(r, "cid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goalChangeDTO{Goal: toGoalDTO(g)})
}
