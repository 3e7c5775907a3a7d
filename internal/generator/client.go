package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/storypress/storypress/internal/crypto"
	"github.com/storypress/storypress/internal/models"
)

// Client generates a story from article content.
type Client interface {
	GenerateStory(ctx context.Context, req Request) (*StoryPayload, error)
}

// HTTPClient calls the rewriting service over HTTP. In stub mode it returns
// deterministic slides derived from the article body, for development
// without a provider.
type HTTPClient struct {
	baseURL    string
	signer     *crypto.RequestSigner
	httpClient *http.Client
	stubMode   bool
}

// NewHTTPClient creates a generation client. signer may be nil when no
// secret is configured.
func NewHTTPClient(baseURL string, signer *crypto.RequestSigner, stubMode bool) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		signer:     signer,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		stubMode:   stubMode,
	}
}

// GenerateStory requests a rewritten story for the article.
func (c *HTTPClient) GenerateStory(ctx context.Context, req Request) (*StoryPayload, error) {
	if c.stubMode {
		return stubPayload(req), nil
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.signer != nil {
		httpReq.Header.Set("X-Storypress-Signature", c.signer.Sign(body))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("generator returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var payload StoryPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &payload, nil
}

// stubPayload slices the body into up to three sentence slides.
func stubPayload(req Request) *StoryPayload {
	sentences := strings.SplitAfter(req.Body, ". ")
	slides := make([]models.Slide, 0, 3)
	for i, s := range sentences {
		if i == 3 {
			break
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		slides = append(slides, models.Slide{Position: i + 1, Kind: "text", Text: s})
	}
	return &StoryPayload{
		Title:    req.Title,
		Slides:   slides,
		Metadata: map[string]interface{}{"provider": "stub", "tone": req.Tone},
	}
}
