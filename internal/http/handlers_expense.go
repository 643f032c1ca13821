package http

import (
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"expensa/internal/core"
	"expensa/internal/log"
	"expensa/internal/storage"
)

const maxListLimit = 1000

// expenseFilter reads from, to, category_id, subcategory_id, group_id,
// recurring and limit from the query string.
func expenseFilter(r *http.Request) (storage.ExpenseFilter, error) {
	q := r.URL.Query()
	var f storage.ExpenseFilter
	var err error
	if f.From, err = ParseOptionalDate(q, "from"); err != nil {
		return f, err
	}
	if f.To, err = ParseOptionalDate(q, "to"); err != nil {
		return f, err
	}
	if m, err := ParseOptionalMonth(q, "month"); err != nil {
		return f, err
	} else if !m.IsZero() {
		f.From, f.To = m.FirstDay(), m.LastDay()
	}
	f.CategoryID = sanitizeInput(q.Get("category_id"))
	f.SubcategoryID = sanitizeInput(q.Get("subcategory_id"))
	f.GroupID = sanitizeInput(q.Get("group_id"))
	f.OnlyRecurring = strings.EqualFold(q.Get("recurring"), "true")
	if f.Limit, err = ParseIntParam(q, "limit", 0); err != nil {
		return f, err
	}
	if f.Limit < 0 || f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	return f, nil
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := expenseFilter(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	expenses, err := s.deps.Expenses.List(r.Context(), userID(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseDTOs(expenses))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var in expenseInput
	if err := decodeJSON(r, maxBodyBytes, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	e, err := in.expense(userID(r), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.deps.Expenses.Create(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.expensesCreated, 1)
	writeJSON(w, http.StatusCreated, toExpenseDTO(saved))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.Expenses.Get(r.Context(), userID(r), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseDTO(e))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var in expenseInput
	if err := decodeJSON(r, maxBodyBytes, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	e, err := in.expense(userID(r), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	e.ID = pathID(r, "id")
	updated, err := s.deps.Expenses.Update(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseDTO(updated))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Expenses.Delete(r.Context(), userID(r), pathID(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var in bulkInput
	if err := decodeJSON(r, maxBodyBytes, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ids, err := requireIDs(in.IDs)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	n, err := s.deps.Expenses.BulkDelete(r.Context(), userID(r), ids)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countDTO{Count: n})
}

func (s *Server) handleBulkRecategorize(w http.ResponseWriter, r *http.Request) {
	var in bulkInput
	if err := decodeJSON(r, maxBodyBytes, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ids, err := requireIDs(in.IDs)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	n, err := s.deps.Expenses.BulkRecategorize(r.Context(), userID(r), ids,
		sanitizeInput(in.CategoryID), sanitizeInput(in.SubcategoryID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countDTO{Count: n})
}

func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	series, err := s.deps.Recurring.ListSeries(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]seriesDTO, 0, len(series))
	for _, ss := range series {
		out = append(out, toSeriesDTO(ss))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateSeries starts a monthly series. months 0 means indefinite.
func (s *Server) handleCreateSeries(w http.ResponseWriter, r *http.Request) {
	var in seriesInput
	if err := decodeJSON(r, maxBodyBytes, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	template, err := in.expense(userID(r), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	written, err := s.deps.Recurring.CreateSeries(r.Context(), template, in.Months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.seriesCreated, 1)

	resp := struct {
		GroupID  string       `json:"group_id"`
		Expenses []expenseDTO `json:"expenses"`
	}{Expenses: toExpenseDTOs(written)}
	if len(written) > 0 && written[0].Recurring != nil {
		resp.GroupID = written[0].Recurring.GroupID
	}
	writeJSON(w, http.StatusCreated, resp)
}

type catchUpInput struct {
	Through core.Month `json:"through"`
}

// handleCatchUp fills missing occurrences through the given month, or the
// current one. The body is optional.
func (s *Server) handleCatchUp(w http.ResponseWriter, r *http.Request) {
	var in catchUpInput
	if r.ContentLength != 0 {
		if err := decodeJSON(r, maxBodyBytes, &in); err != nil && !errors.Is(err, ErrEmptyBody) {
			BadRequestError(err.Error()).Write(w)
			return
		}
	}
	if in.Through.IsZero() {
		m, err := ParseMonthParam(r.URL.Query(), "through", s.now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		in.Through = m
	}
	n, err := s.deps.Recurring.CatchUp(r.Context(), userID(r), in.Through)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Catch-up requested",
		log.FieldOperation, log.OpCatchUp, log.FieldMonth, in.Through.String(), log.FieldCount, n)
	writeJSON(w, http.StatusOK, struct {
		Through core.Month `json:"through"`
		Created int        `json:"created"`
	}{in.Through, n})
}

type stopInput struct {
	From core.Month `json:"from"`
}

// handleStopSeries deletes occurrences from the given month on (default:
// the current month) and ends the series there.
func (s *Server) handleStopSeries(w http.ResponseWriter, r *http.Request) {
	var in stopInput
	if r.ContentLength != 0 {
		if err := decodeJSON(r, maxBodyBytes, &in); err != nil && !errors.Is(err, ErrEmptyBody) {
			BadRequestError(err.Error()).Write(w)
			return
		}
	}
	if in.From.IsZero() {
		in.From = core.CurrentMonth(s.now())
	}
	n, err := s.deps.Recurring.StopSeries(r.Context(), userID(r), pathID(r, "group"), in.From)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		From    core.Month `json:"from"`
		Deleted int        `json:"deleted"`
	}{in.From, n})
}
