package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/vnclub/internal/domain/model"
)

type addTitleRequest struct {
	ID          string `json:"id"`
	StartPeriod string `json:"start_period"`
	EndPeriod   string `json:"end_period"`
	Points      int    `json:"points,omitempty"`
}

func (s *Server) handleListTitles(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Titles(r.Context())
	if err != nil {
		fail(w, "api.list_titles", err)
		return
	}
	writeJSON(w, http.StatusOK, toTitles(entries))
}

func (s *Server) handleCurrentTitles(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.CurrentTitles(r.Context())
	if err != nil {
		fail(w, "api.current_titles", err)
		return
	}
	writeJSON(w, http.StatusOK, toTitles(entries))
}

// handleAddTitle handles POST /titles. A missing end period makes a
// single-month promotion.
func (s *Server) handleAddTitle(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_title"
	var req addTitleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.EndPeriod == "" {
		req.EndPeriod = req.StartPeriod
	}
	entry, err := s.deps.AddTitle(r.Context(), model.TitleEntry{
		ID:          req.ID,
		StartPeriod: model.Period(req.StartPeriod),
		EndPeriod:   model.Period(req.EndPeriod),
		Points:      req.Points,
	})
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTitle(entry))
}

func (s *Server) handleGetTitle(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Title(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, "api.get_title", err)
		return
	}
	writeJSON(w, http.StatusOK, toTitleDetails(d))
}

func (s *Server) handleRemoveTitle(w http.ResponseWriter, r *http.Request) {
	entry, err := s.deps.RemoveTitle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, "api.remove_title", err)
		return
	}
	writeJSON(w, http.StatusOK, toTitle(entry))
}

func (s *Server) handleTitleRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := s.deps.TitleRatings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, "api.title_ratings", err)
		return
	}
	writeJSON(w, http.StatusOK, ratings)
}
