package soda

import "fmt"

// bodySnippetLen caps how much of an error body travels in a StatusError.
const bodySnippetLen = 200

// StatusError is returned when the backend responds with a non-2xx status.
// The body snippet carries the backend's own error message, which for SODA
// includes malformed-SoQL details.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("soda: backend returned %d", e.Code)
	}
	return fmt.Sprintf("soda: backend returned %d: %s", e.Code, e.Body)
}

func newStatusError(code int, body []byte) *StatusError {
	snippet := string(body)
	if len(snippet) > bodySnippetLen {
		snippet = snippet[:bodySnippetLen]
	}
	return &StatusError{Code: code, Body: snippet}
}
