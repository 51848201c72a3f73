package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type totalResponse struct {
	UserID      string `json:"user_id"`
	Period      string `json:"period,omitempty"`
	CommunityID string `json:"community_id,omitempty"`
	Total       int    `json:"total"`
}

// handleLeaderboard handles GET /leaderboard?period=&community=&limit=.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	f, err := filterFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	rows, err := s.deps.Leaderboard(r.Context(), f, limit)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleCommunityLeaderboards handles GET /leaderboard/communities.
func (s *Server) handleCommunityLeaderboards(w http.ResponseWriter, r *http.Request) {
	boards, err := s.deps.CommunityLeaderboards(r.Context())
	if err != nil {
		fail(w, "api.community_leaderboards", err)
		return
	}
	writeJSON(w, http.StatusOK, boards)
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := s.deps.Periods(r.Context())
	if err != nil {
		fail(w, "api.periods", err)
		return
	}
	out := make([]string, 0, len(periods))
	for _, p := range periods {
		out = append(out, p.String())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCommunities(w http.ResponseWriter, r *http.Request) {
	ids, err := s.deps.Communities(r.Context())
	if err != nil {
		fail(w, "api.communities", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// handleUserTotal handles GET /users/{id}/total?period=&community=.
func (s *Server) handleUserTotal(w http.ResponseWriter, r *http.Request) {
	const op = "api.user_total"
	f, err := filterFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	userID := chi.URLParam(r, "id")
	total, err := s.deps.UserTotal(r.Context(), userID, f)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, totalResponse{
		UserID:      userID,
		Period:      f.Period.String(),
		CommunityID: f.CommunityID,
		Total:       total,
	})
}

func (s *Server) handleUserCompletions(w http.ResponseWriter, r *http.Request) {
	events, err := s.deps.UserCompletions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, "api.user_completions", err)
		return
	}
	writeJSON(w, http.StatusOK, toCompletions(events))
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, "api.profile", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
