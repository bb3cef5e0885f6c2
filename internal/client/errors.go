package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ServerError is a non-2xx console response.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error (status %d): %s", e.Status, http.StatusText(e.Status))
}

// UserMessage is the server-supplied message, empty when there is none.
func (e *ServerError) UserMessage() string { return e.Message }

// parseErrorMessage reads error.message, falling back to a top-level
// message or title as sent by quickjump and form validation.
func parseErrorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Title   string          `json:"title"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if len(env.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Error, &nested); err == nil && strings.TrimSpace(nested.Message) != "" {
			return strings.TrimSpace(nested.Message)
		}
		var flat string
		if err := json.Unmarshal(env.Error, &flat); err == nil && strings.TrimSpace(flat) != "" {
			return strings.TrimSpace(flat)
		}
	}
	if m := strings.TrimSpace(env.Message); m != "" {
		return m
	}
	return strings.TrimSpace(env.Title)
}
