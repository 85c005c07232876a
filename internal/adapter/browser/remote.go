package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sumgit/sumgit/internal/port"
)

// RemoteCapturer implements port.ScreenshotCapturer against a
// browserless-style remote screenshot API. Each session targets one URL;
// Initialize records it and Screenshot performs the actual capture call.
type RemoteCapturer struct {
	baseURL    string
	token      string
	httpClient *http.Client

	targetURL string
}

// NewRemoteCapturer creates a capturer for the given capture endpoint.
func NewRemoteCapturer(baseURL, token string) *RemoteCapturer {
	return &RemoteCapturer{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{},
	}
}

// Initialize points the session at the given URL.
func (r *RemoteCapturer) Initialize(ctx context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("browser: empty target URL")
	}
	r.targetURL = url
	return nil
}

// Screenshot captures the target page as PNG bytes.
func (r *RemoteCapturer) Screenshot(ctx context.Context) ([]byte, error) {
	if r.targetURL == "" {
		return nil, fmt.Errorf("browser: session not initialized")
	}

	payload := map[string]interface{}{
		"url": r.targetURL,
		"options": map[string]interface{}{
			"type":     "png",
			"fullPage": false,
		},
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("browser: marshal payload: %w", err)
	}

	endpoint := r.baseURL + "/screenshot"
	if r.token != "" {
		endpoint += "?token=" + r.token
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("browser: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &port.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// Cleanup releases the session.
func (r *RemoteCapturer) Cleanup(ctx context.Context) error {
	r.targetURL = ""
	return nil
}
