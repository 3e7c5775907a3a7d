package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/storypress/storypress/internal/crypto"
)

// Notifier delivers story lifecycle notifications to the external
// notification collaborator. Delivery is best effort; the pipeline never
// blocks a state transition on a notification.
type Notifier struct {
	baseURL    string
	signer     *crypto.RequestSigner
	httpClient *http.Client
}

// NewNotifier creates a Notifier. signer may be nil when no secret is
// configured, in which case requests go out unsigned.
func NewNotifier(baseURL string, signer *crypto.RequestSigner) *Notifier {
	return &Notifier{
		baseURL:    baseURL,
		signer:     signer,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Notify posts an event payload to the collaborator.
func (n *Notifier) Notify(ctx context.Context, event string, payload interface{}) error {
	if n.baseURL == "" {
		return nil // notifications not configured
	}

	body, err := json.Marshal(map[string]interface{}{
		"event":   event,
		"payload": payload,
		"sent_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.signer != nil {
		req.Header.Set("X-Storypress-Signature", n.signer.Sign(body))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notifier returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
