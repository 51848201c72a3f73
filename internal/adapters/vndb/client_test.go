package vndb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/vnclub/internal/domain/model"
)

const ever17 = `{
  "results": [{
    "id": "v17",
    "title": "Ever17 -the out of infinity-",
    "image": {"url": "https://t.vndb.org/cv/88/28888.jpg", "sexual": 0},
    "titles": [
      {"title": "Ever17 -the out of infinity-", "official": true, "lang": "en"},
      {"title": "Ever17 -the out of infinity-", "official": true, "lang": "ja"},
      {"title": "Fan translation", "official": false, "lang": "de"}
    ],
    "length": 4,
    "length_minutes": 1965,
    "description": "A theme park under the sea."
  }],
  "more": false
}`

func TestFetch(t *testing.T) {
	var got vnRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/vn", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ever17))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithTimeout(time.Second))
	e, err := c.Fetch(context.Background(), "17")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "=", "v17"}, got.Filters)
	assert.Equal(t, requestFields, got.Fields)

	assert.Equal(t, "v17", e.ID)
	assert.Equal(t, "Ever17 -the out of infinity-", e.TitleEN)
	assert.Equal(t, "Ever17 -the out of infinity-", e.TitleJA)
	assert.Equal(t, "https://t.vndb.org/cv/88/28888.jpg", e.ThumbnailURL)
	assert.False(t, e.ThumbnailNSFW)
	require.NotNil(t, e.LengthMinutes)
	assert.Equal(t, 1965, *e.LengthMinutes)
	require.NotNil(t, e.LengthClass)
	assert.Equal(t, 4, *e.LengthClass)
	assert.Equal(t, "A theme park under the sea.", e.Description)
}

func TestFetchFallbacks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"id":"v9","title":"Main Title","image":{"url":"u","sexual":1.5},"titles":[{"title":"非公式","official":false,"lang":"ja"}],"length":null,"length_minutes":null,"description":null}]}`))
	}))
	defer srv.Close()

	e, err := New(WithBaseURL(srv.URL)).Fetch(context.Background(), "v9")
	require.NoError(t, err)
	assert.Equal(t, "Main Title", e.TitleEN)
	assert.Empty(t, e.TitleJA)
	assert.True(t, e.ThumbnailNSFW)
	assert.Nil(t, e.LengthMinutes)
	assert.Nil(t, e.LengthClass)
	assert.Empty(t, e.Description)
}

func TestFetchErrors(t *testing.T) {
	t.Run("empty results", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":[],"more":false}`))
		}))
		defer srv.Close()

		_, err := New(WithBaseURL(srv.URL)).Fetch(context.Background(), "v404")
		assert.True(t, errors.Is(err, model.ErrNotFound), "got %v", err)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := New(WithBaseURL(srv.URL)).Fetch(context.Background(), "v1")
		assert.True(t, errors.Is(err, model.ErrUpstreamUnavailable), "got %v", err)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		_, err := New(WithBaseURL(srv.URL)).Fetch(context.Background(), "v1")
		assert.True(t, errors.Is(err, model.ErrUpstreamUnavailable), "got %v", err)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := srv.URL
		srv.Close()

		_, err := New(WithBaseURL(url), WithTimeout(200*time.Millisecond)).Fetch(context.Background(), "v1")
		assert.True(t, errors.Is(err, model.ErrUpstreamUnavailable), "got %v", err)
	})
}
