package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/vnclub/internal/app"
	"github.com/okian/vnclub/internal/domain/model"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail writes err with the status its kind maps to.
func fail(w http.ResponseWriter, op string, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, Wrap(op, err))
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// filterFrom reads the period and community query parameters.
func filterFrom(r *http.Request) (model.Filter, error) {
	q := r.URL.Query()
	f := model.Filter{CommunityID: q.Get("community")}
	if p := q.Get("period"); p != "" {
		period, err := model.ParsePeriod(p)
		if err != nil {
			return model.Filter{}, err
		}
		f.Period = period
	}
	return f, nil
}

type completionJSON struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	TitleID     *string   `json:"title_id,omitempty"`
	Rating      *int      `json:"rating,omitempty"`
	Reason      string    `json:"reason"`
	Period      string    `json:"period"`
	Points      int       `json:"points"`
	Comment     string    `json:"comment,omitempty"`
	CommunityID *string   `json:"community_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCompletion(e model.CompletionEvent) completionJSON {
	return completionJSON{
		ID:          e.ID,
		UserID:      e.UserID,
		TitleID:     e.TitleID,
		Rating:      e.Rating,
		Reason:      e.Reason,
		Period:      e.Period.String(),
		Points:      e.Points,
		Comment:     e.Comment,
		CommunityID: e.CommunityID,
		CreatedAt:   e.CreatedAt,
	}
}

func toCompletions(events []model.CompletionEvent) []completionJSON {
	out := make([]completionJSON, 0, len(events))
	for _, e := range events {
		out = append(out, toCompletion(e))
	}
	return out
}

type titleJSON struct {
	ID          string    `json:"id"`
	StartPeriod string    `json:"start_period"`
	EndPeriod   string    `json:"end_period"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTitle(e model.TitleEntry) titleJSON {
	return titleJSON{
		ID:          e.ID,
		StartPeriod: e.StartPeriod.String(),
		EndPeriod:   e.EndPeriod.String(),
		Points:      e.Points,
		CreatedAt:   e.CreatedAt,
	}
}

func toTitles(entries []model.TitleEntry) []titleJSON {
	out := make([]titleJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, toTitle(e))
	}
	return out
}

type metadataJSON struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	TitleEN       string    `json:"title_en,omitempty"`
	TitleJA       string    `json:"title_ja,omitempty"`
	ThumbnailURL  string    `json:"thumbnail_url,omitempty"`
	ThumbnailNSFW bool      `json:"thumbnail_nsfw"`
	LengthMinutes *int      `json:"length_minutes,omitempty"`
	LengthClass   *int      `json:"length_class,omitempty"`
	Description   string    `json:"description,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}

func toMetadata(m model.MetadataEntry) metadataJSON {
	return metadataJSON{
		ID:            m.ID,
		Name:          m.DisplayName(),
		TitleEN:       m.TitleEN,
		TitleJA:       m.TitleJA,
		ThumbnailURL:  m.ThumbnailURL,
		ThumbnailNSFW: m.ThumbnailNSFW,
		LengthMinutes: m.LengthMinutes,
		LengthClass:   m.LengthClass,
		Description:   m.Description,
		FetchedAt:     m.FetchedAt,
	}
}

type titleDetailsJSON struct {
	Catalog  *titleJSON    `json:"catalog,omitempty"`
	Metadata *metadataJSON `json:"metadata,omitempty"`
}

func toTitleDetails(d service.TitleDetails) titleDetailsJSON {
	var out titleDetailsJSON
	if d.Entry != nil {
		t := toTitle(*d.Entry)
		out.Catalog = &t
	}
	if d.Metadata != nil {
		m := toMetadata(*d.Metadata)
		out.Metadata = &m
	}
	return out
}
