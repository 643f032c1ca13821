package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"expensa/internal/log"
	"expensa/internal/splitwise"
)

func (s *Server) handleSplitwiseCurrentUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.Splitwise.CurrentUser(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		User splitwise.User `json:"user"`
	}{u})
}

func (s *Server) handleSplitwiseGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.deps.Splitwise.Groups(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleSplitwiseGroupInfo(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("group_id"))
	if raw == "" {
		BadRequestError("Group ID is required").Write(w)
		return
	}
	groupID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		BadRequestError(fmt.Sprintf("invalid group_id %q", raw)).Write(w)
		return
	}
	users, err := s.deps.Splitwise.GroupMembers(r.Context(), userID(r), groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Users []splitwise.User `json:"users"`
	}{users})
}

// parseAfterDate accepts RFC 3339 timestamps or plain dates.
func parseAfterDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

// handleSplitwiseExpenses lists expenses after after_date in which user_id
// owes a share. user_id defaults to the Splitwise user in the settings.
func (s *Server) handleSplitwiseExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var after time.Time
	if v := strings.TrimSpace(q.Get("after_date")); v != "" {
		t, err := parseAfterDate(v)
		if err != nil {
			BadRequestError(fmt.Sprintf("invalid after_date %q", v)).Write(w)
			return
		}
		after = t
	}

	var swUser int64
	if v := strings.TrimSpace(q.Get("user_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			BadRequestError(fmt.Sprintf("invalid user_id %q", v)).Write(w)
			return
		}
		swUser = id
	} else {
		st, err := s.deps.Settings.Get(r.Context(), userID(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		swUser = st.SplitwiseUserID
	}
	if swUser == 0 {
		BadRequestError("user_id is required").Write(w)
		return
	}

	expenses, err := s.deps.Splitwise.OwedExpenses(r.Context(), userID(r), after, swUser)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if expenses == nil {
		expenses = []splitwise.Expense{}
	}
	writeJSON(w, http.StatusOK, struct {
		Expenses []splitwise.Expense `json:"expenses"`
	}{expenses})
}

// handleSplitwiseCreateExpense forwards a flat create_expense body and
// returns Splitwise's answer untouched.
func (s *Server) handleSplitwiseCreateExpense(w http.ResponseWriter, r *http.Request) {
	groupID := strings.TrimSpace(r.URL.Query().Get("group_id"))
	if groupID == "" {
		BadRequestError("Group ID is required").Write(w)
		return
	}
	body, err := decodeJSONMap(r, maxBodyBytes)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	resp, err := s.deps.Splitwise.CreateExpense(r.Context(), userID(r), groupID, body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

// handleSplitwiseImport runs an import for the caller right away instead of
// waiting for the scheduler.
func (s *Server) handleSplitwiseImport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Importer == nil {
		ErrorResponse(http.StatusServiceUnavailable, "splitwise import is disabled").Write(w)
		return
	}
	n, err := s.deps.Importer.Import(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.importsRun, 1)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Splitwise import requested",
		log.FieldOperation, log.OpImport, log.FieldCount, n)
	writeJSON(w, http.StatusOK, struct {
		Imported int `json:"imported"`
	}{n})
}
