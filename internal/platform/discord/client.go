package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"giveaway-engine/internal/features/giveaway/models"
)

const defaultAPIBase = "https://discord.com/api/v10"

// Client is a minimal Discord REST client covering the surface the giveaway
// engine needs. Snowflake ids travel as strings on the wire and as int64 in
// the domain.
type Client struct {
	httpClient *http.Client
	token      string
	apiBase    string
}

func NewClient(token, apiBase string) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		token:      token,
		apiBase:    apiBase,
	}
}

type snowflake int64

func (s *snowflake) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed snowflake %q: %w", raw, err)
	}
	*s = snowflake(v)
	return nil
}

type wireMessage struct {
	ID        snowflake `json:"id"`
	ChannelID snowflake `json:"channel_id"`
	Content   string    `json:"content"`
}

func (m *wireMessage) model() *models.Message {
	return &models.Message{
		ID:        int64(m.ID),
		ChannelID: int64(m.ChannelID),
		Content:   m.Content,
	}
}

type wireUser struct {
	ID       snowflake `json:"id"`
	Username string    `json:"username"`
}

type wireMember struct {
	User  wireUser    `json:"user"`
	Roles []snowflake `json:"roles"`
}

type wireChannel struct {
	ID snowflake `json:"id"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, reqBody)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("discord request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read discord response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return resp.StatusCode, fmt.Errorf("discord api error %d: %s (code %d)", resp.StatusCode, apiErr.Message, apiErr.Code)
		}
		return resp.StatusCode, fmt.Errorf("discord api error %d", resp.StatusCode)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode discord response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) SendMessage(ctx context.Context, channelID int64, content string) (*models.Message, error) {
	var msg wireMessage
	path := fmt.Sprintf("/channels/%d/messages", channelID)
	status, err := c.do(ctx, http.MethodPost, path, map[string]string{"content": content}, &msg)
	if status == http.StatusNotFound {
		return nil, models.ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	return msg.model(), nil
}

func (c *Client) FetchMessage(ctx context.Context, channelID, messageID int64) (*models.Message, error) {
	var msg wireMessage
	path := fmt.Sprintf("/channels/%d/messages/%d", channelID, messageID)
	status, err := c.do(ctx, http.MethodGet, path, nil, &msg)
	if status == http.StatusNotFound {
		return nil, models.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return msg.model(), nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID int64, content string) error {
	path := fmt.Sprintf("/channels/%d/messages/%d", channelID, messageID)
	status, err := c.do(ctx, http.MethodPatch, path, map[string]string{"content": content}, nil)
	if status == http.StatusNotFound {
		return models.ErrMessageNotFound
	}
	return err
}

func (c *Client) AddReaction(ctx context.Context, channelID, messageID int64, emoji string) error {
	path := fmt.Sprintf("/channels/%d/messages/%d/reactions/%s/@me",
		channelID, messageID, url.PathEscape(emoji))
	_, err := c.do(ctx, http.MethodPut, path, nil, nil)
	return err
}

// SendDM opens (or reuses) the DM channel with the user and posts content
// into it.
func (c *Client) SendDM(ctx context.Context, userID int64, content string) error {
	var channel wireChannel
	_, err := c.do(ctx, http.MethodPost, "/users/@me/channels",
		map[string]string{"recipient_id": strconv.FormatInt(userID, 10)}, &channel)
	if err != nil {
		return fmt.Errorf("failed to open dm channel: %w", err)
	}

	_, err = c.SendMessage(ctx, int64(channel.ID), content)
	return err
}

func (c *Client) GuildMember(ctx context.Context, guildID, userID int64) (*models.Member, error) {
	var member wireMember
	path := fmt.Sprintf("/guilds/%d/members/%d", guildID, userID)
	status, err := c.do(ctx, http.MethodGet, path, nil, &member)
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("member %d not found in guild %d", userID, guildID)
	}
	if err != nil {
		return nil, err
	}

	roles := make([]int64, 0, len(member.Roles))
	for _, r := range member.Roles {
		roles = append(roles, int64(r))
	}
	return &models.Member{
		ID:       int64(member.User.ID),
		Username: member.User.Username,
		RoleIDs:  roles,
	}, nil
}

func (c *Client) ResolveChannel(ctx context.Context, channelID int64) error {
	var channel wireChannel
	status, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/channels/%d", channelID), nil, &channel)
	if status == http.StatusNotFound {
		return models.ErrChannelNotFound
	}
	return err
}
