package platform

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Detail)
}

// TransportError is returned when no response was received.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// errorResponse covers the error bodies the backend produces.
type errorResponse struct {
	Detail  json.RawMessage `json:"detail"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (r errorResponse) text() string {
	if len(r.Detail) > 0 {
		var s string
		if err := json.Unmarshal(r.Detail, &s); err == nil {
			return s
		}
		// validation errors arrive as a list of objects
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(r.Detail, &items); err == nil && len(items) > 0 {
			return items[0].Msg
		}
	}
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}

// parseResponse parses the response body into the target struct
func parseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

		detail := ""
		var errResp errorResponse
		if err := json.Unmarshal(body, &errResp); err == nil {
			detail = errResp.text()
		}
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return &StatusError{Status: resp.StatusCode, Detail: detail}
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
