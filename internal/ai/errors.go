package ai

import (
	"errors"
	"fmt"
)

// TransientError marks a backend failure worth retrying: rate limiting
// (429) or a server-side 5xx. Everything else is treated as fatal.
type TransientError struct {
	StatusCode int
	Body       string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("llm transient failure: status %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether err (or anything it wraps) is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func statusError(status int, body []byte) error {
	if status == 429 || status >= 500 {
		return &TransientError{StatusCode: status, Body: string(body)}
	}
	return fmt.Errorf("llm response status %d: %s", status, body)
}
