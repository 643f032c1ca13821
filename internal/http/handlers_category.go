package http

import (
	"net/http"

	"expensa/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Categories.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]categoryDTO, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryInput
	if err := decodeJSON(r, maxBodyBytes, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	c, err := s.deps.Categories.Create(r.Context(), core.Category{
		UserID: userID(r),
		Name:   sanitizeInput(in.Name),
		Type:   core.CategoryType(in.Type),
		Icon:   in.Icon,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(c))
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Categories.Get(r.Context(), userID(r), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(c))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryInput
	if err := decodeJSON(r, maxBodyBytes, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	c := core.Category{
		ID:     pathID(r, "id"),
		UserID: userID(r),
		Name:   sanitizeInput(in.Name),
		Type:   core.CategoryType(in.Type),
		Icon:   in.Icon,
	}
	if err := s.deps.Categories.Update(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.deps.Categories.Get(r.Context(), c.UserID, c.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(updated))
}

// handleDeleteCategory cascades to subcategories, expenses and budgets and
// reports how many expenses went with it.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Categories.Delete(r.Context(), userID(r), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted_expenses": n})
}

// handleListSubcategories serves both /categories/{id}/subcategories and
// /subcategories?category_id=. Without a category every subcategory is listed.
func (s *Server) handleListSubcategories(w http.ResponseWriter, r *http.Request) {
	categoryID := pathID(r, "id")
	if categoryID == "" {
		categoryID = sanitizeInput(r.URL.Query().Get("category_id"))
	}
	subs, err := s.deps.Categories.ListSubcategories(r.Context(), userID(r), categoryID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]subcategoryDTO, 0, len(subs))
	for _, sc := range subs {
		out = append(out, toSubcategoryDTO(sc))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSubcategory(w http.ResponseWriter, r *http.Request) {
	var in subcategoryInput
	if err := decodeJSON(r, maxBodyBytes, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	sc, err := s.deps.Categories.CreateSubcategory(r.Context(), core.Subcategory{
		UserID:     userID(r),
		CategoryID: sanitizeInput(in.CategoryID),
		Name:       sanitizeInput(in.Name),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubcategoryDTO(sc))
}

func (s *Server) handleUpdateSubcategory(w http.ResponseWriter, r *http.Request) {
	var in subcategoryInput
	if err := decodeJSON(r, maxBodyBytes, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	sc := core.Subcategory{
		ID:         pathID(r, "id"),
		UserID:     userID(r),
		CategoryID: sanitizeInput(in.CategoryID),
		Name:       sanitizeInput(in.Name),
	}
	if err := s.deps.Categories.UpdateSubcategory(r.Context(), sc); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubcategoryDTO(sc))
}

func (s *Server) handleDeleteSubcategory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Categories.DeleteSubcategory(r.Context(), userID(r), pathID(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
