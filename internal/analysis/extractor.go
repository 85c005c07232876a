package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sumgit/sumgit/internal/port"
)

// ExtractedMilestone is one milestone as parsed from the model's output.
type ExtractedMilestone struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	CommitSHA       string `json:"commit_sha"`
	MilestoneDate   string `json:"milestone_date"` // YYYY-MM-DD, may be empty
	XPostSuggestion string `json:"x_post_suggestion"`
}

// Date parses the milestone date, falling back to the given default when
// the model omitted or mangled it. The fallback is a known approximation.
func (m ExtractedMilestone) Date(fallback time.Time) time.Time {
	if t, err := time.Parse("2006-01-02", m.MilestoneDate); err == nil {
		return t
	}
	return fallback
}

// Extractor performs exactly one structured completion call per
// invocation. All retry and backoff policy lives in its callers, keeping
// this contract deterministic.
type Extractor struct {
	llm     port.LLMClient
	timeout time.Duration
}

// NewExtractor creates an extractor over the given LLM client.
func NewExtractor(llm port.LLMClient, timeout time.Duration) *Extractor {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Extractor{llm: llm, timeout: timeout}
}

// Extract asks the model for milestones over the prepared payload.
// Failures come back classified as *port.PipelineError.
func (e *Extractor) Extract(ctx context.Context, repoName, payload string) ([]ExtractedMilestone, error) {
	content, err := e.llm.Complete(ctx, port.CompletionRequest{
		SystemPrompt: milestoneSystemPrompt,
		UserMessage:  milestoneUserMessage(repoName, payload),
		JSONResponse: true,
		Timeout:      e.timeout,
	})
	if err != nil {
		return nil, Classify(err)
	}

	// An empty response carries no milestones but is not an error.
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	var parsed struct {
		Milestones []ExtractedMilestone `json:"milestones"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		// Shape mismatch means model drift, not an empty result.
		return nil, port.NewPipelineError(port.KindClientError,
			"model returned malformed milestone JSON", err)
	}

	return parsed.Milestones, nil
}

// Classify maps an upstream failure to a retry/fatal decision. Priority:
// network, timeout, payload-too-large, other 4xx, 5xx, unknown.
func Classify(err error) *port.PipelineError {
	var pe *port.PipelineError
	if errors.As(err, &pe) {
		return pe
	}

	msg := strings.ToLower(err.Error())

	// Network and connection failures retry as-is.
	var netErr net.Error
	if errors.As(err, &netErr) && !netErr.Timeout() {
		return port.NewPipelineError(port.KindRetryable, "network failure", err)
	}
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "broken pipe") {
		return port.NewPipelineError(port.KindRetryable, "network failure", err)
	}

	// Timeouts are retryable but classified distinctly.
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) ||
		strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") {
		return port.NewPipelineError(port.KindTimeout, "completion call timed out", err)
	}

	var statusErr *port.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestEntityTooLarge || mentionsSize(statusErr.Body):
			// Fatal — the caller must shrink the input, not retry as-is.
			return port.NewPipelineError(port.KindPayloadTooLarge, "payload exceeds model limits", err)
		case statusErr.StatusCode >= 400 && statusErr.StatusCode < 500:
			return port.NewPipelineError(port.KindClientError,
				fmt.Sprintf("upstream rejected request (%d)", statusErr.StatusCode), err)
		case statusErr.StatusCode >= 500:
			return port.NewPipelineError(port.KindServerError,
				fmt.Sprintf("upstream unavailable (%d)", statusErr.StatusCode), err)
		}
	}

	if mentionsSize(msg) {
		return port.NewPipelineError(port.KindPayloadTooLarge, "payload exceeds model limits", err)
	}

	return port.NewPipelineError(port.KindUnknown, "unclassified failure", err)
}

func mentionsSize(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "too large") ||
		strings.Contains(s, "maximum context length") ||
		strings.Contains(s, "request entity too large")
}
