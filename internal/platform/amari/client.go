package amari

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"giveaway-engine/internal/features/giveaway/models"
)

const defaultAPIBase = "https://amaribot.com/api/v1"

// Client fetches reputation scores from the AmariBot leveling API.
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

// Score returns the member's level and weekly exp in the guild. An unknown
// member is a zero score, not an error.
func (c *Client) Score(ctx context.Context, guildID, userID int64) (*models.Score, error) {
	path := fmt.Sprintf("%s/guild/%d/member/%d", c.apiBase, guildID, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("amari request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &models.Score{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("amari api error %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read amari response: %w", err)
	}

	var score models.Score
	if err := json.Unmarshal(data, &score); err != nil {
		return nil, fmt.Errorf("failed to decode amari response: %w", err)
	}
	return &score, nil
}
