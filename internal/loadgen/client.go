package loadgen

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

type client struct {
	http *resty.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

func (c *client) health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode())
	}
	return nil
}

func (c *client) grant(ctx context.Context, g Grant) error {
	resp, err := c.http.R().SetContext(ctx).SetBody(g).Post("/grants")
	if err != nil {
		return fmt.Errorf("post grant: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return fmt.Errorf("post grant: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func (c *client) total(ctx context.Context, userID string) (int, error) {
	var out struct {
		Total int `json:"total"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/users/" + userID + "/total")
	if err != nil {
		return 0, fmt.Errorf("get total %s: %w", userID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("get total %s: status %d", userID, resp.StatusCode())
	}
	return out.Total, nil
}

func (c *client) leaderboard(ctx context.Context, limit int) ([]Standing, error) {
	var out []Standing
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out).
		Get("/leaderboard")
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get leaderboard: status %d", resp.StatusCode())
	}
	return out, nil
}
