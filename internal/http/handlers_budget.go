package http

import (
	"net/http"
	"strings"

	"expensa/internal/core"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	month, err := ParseOptionalMonth(r.URL.Query(), "month")
	if err != nil {
		writeError(w, r, err)
		return
	}
	budgets, err := s.deps.Budgets.List(r.Context(), userID(r), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]budgetDTO, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, toBudgetDTO(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (in budgetInput) budget(userID string) (core.Budget, error) {
	amount, err := in.money()
	if err != nil {
		return core.Budget{}, err
	}
	return core.Budget{
		UserID:     userID,
		CategoryID: strings.TrimSpace(in.CategoryID),
		Month:      in.Month,
		Amount:     amount,
	}, nil
}

// handleSetBudget creates a budget; one per category and month, a second
// one answers 409.
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var in budgetInput
	if err := decodeJSON(r, maxBodyBytes, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	b, err := in.budget(userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.deps.Budgets.Set(r.Context(), b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetDTO(saved))
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Budgets.Get(r.Context(), userID(r), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(b))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var in budgetInput
	if err := decodeJSON(r, maxBodyBytes, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	b, err := in.budget(userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	b.ID = pathID(r, "id")
	if err := s.deps.Budgets.Update(r.Context(), b); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(b))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Budgets.Delete(r.Context(), userID(r), pathID(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleBudgetProgress(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthParam(r.URL.Query(), "month", s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	progress, err := s.deps.Stats.BudgetProgress(r.Context(), userID(r), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]budgetStatusDTO, 0, len(progress))
	for _, p := range progress {
		out = append(out, toBudgetStatusDTO(p))
	}
	writeJSON(w, http.StatusOK, struct {
		Month      core.Month        `json:"month"`
		Categories []budgetStatusDTO `json:"categories"`
	}{month, out})
}
