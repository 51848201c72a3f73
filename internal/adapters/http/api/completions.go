package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/vnclub/internal/app"
	"github.com/okian/vnclub/internal/domain/model"
)

type finishRequest struct {
	UserID      string `json:"user_id"`
	TitleID     string `json:"title_id"`
	Rating      *int   `json:"rating,omitempty"`
	Comment     string `json:"comment,omitempty"`
	CommunityID string `json:"community_id,omitempty"`
}

type grantRequest struct {
	UserID      string `json:"user_id"`
	Points      int    `json:"points"`
	Reason      string `json:"reason,omitempty"`
	Comment     string `json:"comment,omitempty"`
	CommunityID string `json:"community_id,omitempty"`
}

type reviewRequest struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

type rewardResponse struct {
	TitleID string `json:"title_id"`
	Period  string `json:"period"`
	Points  int    `json:"points"`
	Reason  string `json:"reason"`
}

// handleFinish handles POST /completions.
func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	const op = "api.finish_title"
	var req finishRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := s.deps.FinishTitle(r.Context(), service.FinishInput{
		UserID:      req.UserID,
		TitleID:     req.TitleID,
		Rating:      req.Rating,
		Comment:     req.Comment,
		CommunityID: req.CommunityID,
	})
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCompletion(ev))
}

// handleGrant handles POST /grants.
func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	const op = "api.grant"
	var req grantRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := s.deps.Grant(r.Context(), service.GrantInput{
		UserID:      req.UserID,
		Points:      req.Points,
		Reason:      req.Reason,
		Comment:     req.Comment,
		CommunityID: req.CommunityID,
	})
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCompletion(ev))
}

func (s *Server) handleGetCompletion(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_completion"
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := s.deps.Completion(r.Context(), id)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompletion(ev))
}

// handleDeleteCompletion handles DELETE /completions/{id} and returns the
// removed entry.
func (s *Server) handleDeleteCompletion(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_completion"
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := s.deps.DeleteCompletion(r.Context(), id)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompletion(ev))
}

// handleReviewCompletion handles PATCH /completions/{id}.
func (s *Server) handleReviewCompletion(w http.ResponseWriter, r *http.Request) {
	const op = "api.review_completion"
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	var req reviewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := s.deps.ReviewCompletion(r.Context(), id, model.ReviewPatch{Rating: req.Rating, Comment: req.Comment})
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompletion(ev))
}

// handlePreviewReward handles GET /rewards/{titleID}.
func (s *Server) handlePreviewReward(w http.ResponseWriter, r *http.Request) {
	const op = "api.preview_reward"
	titleID := model.NormalizeTitleID(chi.URLParam(r, "titleID"))
	award, err := s.deps.PreviewReward(r.Context(), titleID)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rewardResponse{
		TitleID: titleID,
		Period:  s.deps.CurrentPeriod().String(),
		Points:  award.Points,
		Reason:  award.Reason,
	})
}
