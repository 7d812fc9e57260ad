package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/voxhire/interviewd/internal/httpc"
)

const (
	elevenLabsAPIBaseURL = "https://api.elevenlabs.io/v1"
)

// apiClient handles REST API calls to ElevenLabs.
type apiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// newAPIClient creates a new API client. An empty baseURL selects the
// production endpoint.
func newAPIClient(apiKey, baseURL string) *apiClient {
	if baseURL == "" {
		baseURL = elevenLabsAPIBaseURL
	}
	return &apiClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpc.Client,
	}
}

// signedURLResponse is the response from the get-signed-url endpoint.
type signedURLResponse struct {
	SignedURL string `json:"signed_url"`
}

// GetSignedURL fetches an authenticated WebSocket URL for a private agent.
func (c *apiClient) GetSignedURL(ctx context.Context, agentID string) (string, error) {
	endpoint := fmt.Sprintf("%s/convai/conversation/get-signed-url?agent_id=%s",
		c.baseURL, url.QueryEscape(agentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request signed URL: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", NewAPIError(resp.StatusCode, "", string(body))
	}

	var parsed signedURLResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if parsed.SignedURL == "" {
		return "", fmt.Errorf("%w: empty signed_url", ErrInvalidMessage)
	}
	return parsed.SignedURL, nil
}
