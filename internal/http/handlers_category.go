package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

type createCategoryRequest struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color,omitempty"`
}

type updateCategoryRequest struct {
	Color string `json:"color"`
}

type idResponse struct {
	ID int64 `json:"id"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	typ := core.CategoryType(strings.TrimSpace(r.URL.Query().Get("type")))
	if typ != "" && !typ.Valid() {
		writeError(w, http.StatusBadRequest, "unknown category type: "+string(typ))
		return
	}

	// include_inactive serves clients that classify historical windows
	// locally; deactivated categories still own their old transactions.
	var (
		cats []core.Category
		err  error
	)
	if queryBool(r, "include_inactive", false) {
		cats, err = s.store.AllCategories(r.Context())
		if typ != "" {
			filtered := cats[:0]
			for _, c := range cats {
				if c.Type == typ {
					filtered = append(filtered, c)
				}
			}
			cats = filtered
		}
	} else {
		cats, err = s.store.ListCategories(r.Context(), typ)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}

	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cat := core.Category{
		Name:  sanitizeInput(req.Name),
		Type:  core.CategoryType(strings.TrimSpace(req.Type)),
		Color: strings.TrimSpace(req.Color),
	}
	if err := cat.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	id, err := s.store.CreateCategory(r.Context(), cat)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateReports()
	applog.FromContext(r.Context()).InfoContext(r.Context(), "category created",
		applog.FieldCategoryID, id, applog.FieldCategoryType, string(cat.Type))
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

// handleUpdateCategory changes the color, the only mutable field.
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var req updateCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	color := strings.TrimSpace(req.Color)
	if color == "" {
		writeError(w, http.StatusUnprocessableEntity, "color is required")
		return
	}

	if err := s.store.UpdateCategoryColor(r.Context(), id, color); err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateReports()
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteCategory deactivates a category. Its transactions keep the
// reference; history is never rewritten.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	if err := s.store.DeactivateCategory(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateReports()
	applog.FromContext(r.Context()).InfoContext(r.Context(), "category deactivated",
		applog.FieldCategoryID, id)
	w.WriteHeader(http.StatusNoContent)
}
