package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds pagination metadata for list endpoints.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListOptions configures list queries.
type ListOptions struct {
	Limit  int
	Offset int
	Owner  string // Optional owner filter
	State  string // Optional state filter (commands) or result filter (rounds)
}

// DefaultListOptions returns sensible defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 50}
}

// Clamp enforces limits (max 500, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 500 {
		o.Limit = 500
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// EnterResponse is returned after a command was admitted.
type EnterResponse struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	Queue       QueueKind `json:"queue"`
	EffectiveAt Timestamp `json:"effective_at"`
}

// RemoveResponse reports how many queued commands were removed.
type RemoveResponse struct {
	Owner   string `json:"owner"`
	Handle  string `json:"handle,omitempty"`
	Removed int    `json:"removed"`
}
