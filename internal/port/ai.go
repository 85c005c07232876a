package port

import (
	"context"
	"time"
)

// CompletionRequest describes one chat-completion call.
type CompletionRequest struct {
	SystemPrompt string
	UserMessage  string
	JSONResponse bool          // request a single JSON object as output
	Timeout      time.Duration // hard wall-clock limit on the call, zero = client default
}

// LLMClient abstracts the language-model backend. Implementations can
// target OpenAI or any compatible chat-completions API.
type LLMClient interface {
	// ModelName returns the identifier of the model being used.
	ModelName() string

	// Complete sends one completion request and returns the raw response
	// content. An empty string with a nil error means the model returned
	// no content. Failures surface the HTTP status via StatusError.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
