// Package membership reads and changes members' community roles.
package membership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/okian/vnclub/internal/domain/model"
)

// Discord REST defaults.
const (
	DefaultDiscordURL = "https://discord.com/api/v10"
	defaultTimeout    = 10 * time.Second
	auditLogReason    = "tier reconciliation"
)

// ErrMissingToken is returned when a Discord client is built without a bot token.
var ErrMissingToken = errors.New("discord bot token is required")

// DiscordOption applies a configuration option to the Discord client.
type DiscordOption func(*Discord)

// WithDiscordURL points the client at a different API root.
func WithDiscordURL(u string) DiscordOption {
	return func(d *Discord) {
		if u != "" {
			d.baseURL = u
		}
	}
}

// WithDiscordTimeout sets the per-request timeout.
func WithDiscordTimeout(t time.Duration) DiscordOption {
	return func(d *Discord) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// Discord manages guild roles through the Discord REST API.
type Discord struct {
	baseURL string
	timeout time.Duration
	http    *resty.Client
}

// NewDiscord creates a Discord client authenticated with a bot token.
func NewDiscord(token string, opts ...DiscordOption) (*Discord, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	d := &Discord{
		baseURL: DefaultDiscordURL,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.http = resty.New().
		SetBaseURL(d.baseURL).
		SetHeader("Authorization", "Bot "+token).
		SetHeader("Content-Type", "application/json").
		SetTimeout(d.timeout)
	return d, nil
}

type guildMember struct {
	Roles []string `json:"roles"`
}

// Roles returns the role IDs the member holds in the guild.
// A member who is not in the guild yields model.ErrMemberNotFound.
func (d *Discord) Roles(ctx context.Context, communityID, memberID string) ([]string, error) {
	resp, err := d.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"guild": communityID, "member": memberID}).
		Get("/guilds/{guild}/members/{member}")
	if err != nil {
		return nil, fmt.Errorf("discord get member: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("guild %s member %s: %w", communityID, memberID, model.ErrMemberNotFound)
	default:
		return nil, fmt.Errorf("discord get member: status %d: %s", resp.StatusCode(), resp.String())
	}

	var m guildMember
	if err := json.Unmarshal(resp.Body(), &m); err != nil {
		return nil, fmt.Errorf("decode discord member: %w", err)
	}
	return m.Roles, nil
}

// Grant adds a role to the member.
func (d *Discord) Grant(ctx context.Context, communityID, memberID, roleID string) error {
	return d.roleRequest(ctx, http.MethodPut, communityID, memberID, roleID)
}

// Revoke removes a role from the member.
func (d *Discord) Revoke(ctx context.Context, communityID, memberID, roleID string) error {
	return d.roleRequest(ctx, http.MethodDelete, communityID, memberID, roleID)
}

func (d *Discord) roleRequest(ctx context.Context, method, communityID, memberID, roleID string) error {
	resp, err := d.http.R().
		SetContext(ctx).
		SetHeader("X-Audit-Log-Reason", auditLogReason).
		SetPathParams(map[string]string{"guild": communityID, "member": memberID, "role": roleID}).
		Execute(method, "/guilds/{guild}/members/{member}/roles/{role}")
	if err != nil {
		return fmt.Errorf("discord %s role: %w", method, err)
	}
	switch resp.StatusCode() {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("guild %s member %s role %s: %w", communityID, memberID, roleID, model.ErrMemberNotFound)
	default:
		return fmt.Errorf("discord %s role: status %d: %s", method, resp.StatusCode(), resp.String())
	}
}
