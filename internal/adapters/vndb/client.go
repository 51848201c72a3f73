// Package vndb fetches visual novel metadata from the VNDB Kana API.
package vndb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/okian/vnclub/internal/domain/model"
)

// Defaults for the public API.
const (
	DefaultBaseURL = "https://api.vndb.org/kana"
	DefaultTimeout = 5 * time.Second

	requestFields = "title, image.url, image.sexual, titles.title, titles.official, titles.lang, length, length_minutes, description"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client implements metadata.Fetcher against VNDB.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *resty.Client
}

// New creates a VNDB client with configuration options.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http = resty.New().
		SetBaseURL(c.baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(c.timeout)
	return c
}

type vnRequest struct {
	Filters []string `json:"filters"`
	Fields  string   `json:"fields"`
}

type vnTitle struct {
	Title    string `json:"title"`
	Official bool   `json:"official"`
	Lang     string `json:"lang"`
}

type vnImage struct {
	URL    string  `json:"url"`
	Sexual float64 `json:"sexual"`
}

type vnResult struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Image         *vnImage  `json:"image"`
	Titles        []vnTitle `json:"titles"`
	Length        *int      `json:"length"`
	LengthMinutes *int      `json:"length_minutes"`
	Description   *string   `json:"description"`
}

type vnResponse struct {
	Results []vnResult `json:"results"`
	More    bool       `json:"more"`
}

// Fetch retrieves metadata for id. It returns model.ErrNotFound when VNDB
// has no such title and model.ErrUpstreamUnavailable on transport or
// status failures.
func (c *Client) Fetch(ctx context.Context, id string) (model.MetadataEntry, error) {
	id = model.NormalizeTitleID(id)
	body := vnRequest{
		Filters: []string{"id", "=", id},
		Fields:  requestFields,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&body).
		Post("/vn")
	if err != nil {
		return model.MetadataEntry{}, fmt.Errorf("%w: vndb request: %w", model.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return model.MetadataEntry{}, fmt.Errorf("%w: vndb status %d: %s", model.ErrUpstreamUnavailable, resp.StatusCode(), resp.String())
	}

	var vr vnResponse
	if err := json.Unmarshal(resp.Body(), &vr); err != nil {
		return model.MetadataEntry{}, fmt.Errorf("%w: decode vndb response: %w", model.ErrUpstreamUnavailable, err)
	}
	if len(vr.Results) == 0 {
		return model.MetadataEntry{}, fmt.Errorf("vndb %s: %w", id, model.ErrNotFound)
	}
	return toEntry(id, vr.Results[0]), nil
}

func toEntry(id string, r vnResult) model.MetadataEntry {
	e := model.MetadataEntry{
		ID:            id,
		TitleEN:       r.Title,
		LengthMinutes: r.LengthMinutes,
		LengthClass:   r.Length,
	}
	for _, t := range r.Titles {
		if !t.Official {
			continue
		}
		switch t.Lang {
		case "en":
			e.TitleEN = t.Title
		case "ja":
			e.TitleJA = t.Title
		}
	}
	if r.Image != nil {
		e.ThumbnailURL = r.Image.URL
		e.ThumbnailNSFW = r.Image.Sexual > 0
	}
	if r.Description != nil {
		e.Description = *r.Description
	}
	return e
}
