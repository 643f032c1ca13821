package http

import (
	"net/http"

	"expensa/internal/core"
	"expensa/internal/services"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	v, err := s.deps.Settings.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(v))
}

// handleUpdateSettings applies a partial update. Omitted fields are kept; an
// empty splitwise_api_key removes the stored key.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in settingsInput
	if err := decodeJSON(r, maxBodyBytes, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	v, err := s.deps.Settings.Update(r.Context(), userID(r), services.SettingsPatch{
		SplitwiseAPIKey:      in.SplitwiseAPIKey,
		SplitwiseUserID:      in.SplitwiseUserID,
		DefaultCategoryID:    in.DefaultCategoryID,
		DefaultSubcategoryID: in.DefaultSubcategoryID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(v))
}

func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthParam(r.URL.Query(), "month", s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.deps.Stats.Monthly(r.Context(), userID(r), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatisticsDTO(st))
}

func (s *Server) handleRangeStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := ParseDateParam(q, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := ParseDateParam(q, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.deps.Stats.Range(r.Context(), userID(r), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatisticsDTO(st))
}

// handleTrend returns monthly totals. to defaults to the current month and
// from to the eleven months before it.
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	to, err := ParseMonthParam(q, "to", s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, err := ParseOptionalMonth(q, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if from.IsZero() {
		from = to.AddMonths(-11)
	}
	totals, err := s.deps.Stats.Trend(r.Context(), userID(r), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]monthTotalDTO, 0, len(totals))
	for _, t := range totals {
		out = append(out, monthTotalDTO{Month: t.Month, TotalCents: t.Total.Cents, Count: t.Count})
	}
	writeJSON(w, http.StatusOK, struct {
		From   core.Month      `json:"from"`
		To     core.Month      `json:"to"`
		Months []monthTotalDTO `json:"months"`
	}{from, to, out})
}
