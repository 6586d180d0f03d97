package model

import (
	"net/url"
	"strconv"
	"time"
)

// Response is the envelope of every REST reply.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// OK wraps data in a success envelope.
func OK(reqID string, data any) Response {
	return Response{Status: "ok", RequestID: reqID, Timestamp: time.Now().UTC(), Data: data}
}

// Failed wraps err in an error envelope.
func Failed(reqID string, err *APIError) Response {
	return Response{Status: "error", RequestID: reqID, Timestamp: time.Now().UTC(), Error: err}
}

// Pagination describes one page of journal entries.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListOptions selects a page of the event journal.
type ListOptions struct {
	Limit  int
	Offset int
	Type   string // empty means every type
}

// DefaultListOptions returns the first page of every event type.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: DefaultPageSize}
}

// ParseListOptions reads limit, offset and type from a query string. Out of
// range numbers are clamped; non-numeric values and event types that are
// never journaled are reported as field errors.
func ParseListOptions(q url.Values) (ListOptions, []FieldError) {
	opts := DefaultListOptions()
	var errs []FieldError
	for _, f := range []struct {
		name string
		dst  *int
	}{{"limit", &opts.Limit}, {"offset", &opts.Offset}} {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, FieldError{Field: f.name, Message: "must be an integer"})
			continue
		}
		*f.dst = n
	}
	if t := q.Get("type"); t != "" {
		if !EventType(t).Broadcast() {
			errs = append(errs, FieldError{Field: "type", Message: "not a broadcast event type"})
		}
		opts.Type = t
	}
	opts.Clamp()
	return opts, errs
}

// Clamp keeps Limit within 1..MaxPageSize and Offset non-negative.
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = DefaultPageSize
	}
	o.Limit = min(o.Limit, MaxPageSize)
	o.Offset = max(o.Offset, 0)
}

// NewPagination describes the page opts selects out of total entries.
func NewPagination(total int, opts ListOptions) *Pagination {
	return &Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	}
}
