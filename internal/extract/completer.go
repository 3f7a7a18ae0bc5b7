package extract

import (
	"context"
	"fmt"
)

// SystemInstruction is sent with every extraction prompt.
const SystemInstruction = "You are a helpful assistant. Only respond with valid JSON."

// Completer sends one system instruction and one user prompt to a language
// model and returns the text of its reply.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
