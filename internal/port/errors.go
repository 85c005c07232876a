package port

import (
	"errors"
	"fmt"
)

// Sentinel errors used across ports.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrTokenExpired = errors.New("token expired")
	ErrUserNotFound = errors.New("user not found")
	ErrRepoNotFound = errors.New("repository not found")
	ErrRateLimited  = errors.New("host rate limit exceeded")
)

// ErrorKind classifies a pipeline failure for retry decisions.
type ErrorKind string

const (
	KindRetryable           ErrorKind = "retryable"         // network/connection failures
	KindTimeout             ErrorKind = "timeout"           // call exceeded its wall-clock limit
	KindPayloadTooLarge     ErrorKind = "payload_too_large" // fatal, caller must shrink input
	KindClientError         ErrorKind = "client_error"      // 4xx other than 413, fatal
	KindServerError         ErrorKind = "server_error"      // upstream 5xx, retryable
	KindInsufficientCredits ErrorKind = "insufficient_credits"
	KindUnknown             ErrorKind = "unknown" // fatal
)

// Retryable reports whether the orchestrator may retry an error of this kind.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRetryable, KindTimeout, KindServerError:
		return true
	}
	return false
}

// PipelineError is a classified failure raised by the analysis pipeline.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError builds a classified error wrapping err.
func NewPipelineError(kind ErrorKind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the classification from err, or KindUnknown if err
// carries none.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err carries a retryable classification.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}

// StatusError surfaces an upstream HTTP failure with its status code so
// callers can classify it.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream API error (%d): %s", e.StatusCode, e.Body)
}
