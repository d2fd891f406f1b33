package model

import "time"

// Response is the standard envelope returned by most endpoints.
type Response struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// NewResponse builds a success envelope with a UTC timestamp.
func NewResponse(message string, data map[string]any) Response {
	return Response{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// NewErrorResponse builds a failure envelope with a UTC timestamp.
func NewErrorResponse(message string) Response {
	return Response{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
