package llm

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownModel   = errors.New("unknown model")
	ErrDuplicateModel = errors.New("model already registered")
	ErrNeedsKey       = errors.New("missing required key")
)

// NeedsKeyError reports a setting that must be configured before a plugin
// can register its models.
type NeedsKeyError struct {
	Key     string
	Message string
}

func (e *NeedsKeyError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s is not configured", e.Key)
	}
	return e.Message
}

func (e *NeedsKeyError) Is(target error) bool {
	return target == ErrNeedsKey
}

// APIError is returned for non-2xx responses from an OpenAI-compatible endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Message)
}
