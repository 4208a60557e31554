// Package insight holds the data model shared by the aggregation engine:
// requests, typed provider outcomes, category resolutions and the unified
// report handed back to callers.
package insight

import (
	"fmt"
	"strings"
)

// Reason explains why a provider produced no data. It is carried as data in
// a Result, never raised.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonTimeout
	ReasonTransport
	ReasonNonStructured
	ReasonMalformed
	ReasonNotConfigured
	// ReasonEmpty marks a provider that answered successfully with nothing.
	ReasonEmpty
)

func (r Reason) String() string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonTransport:
		return "transport_error"
	case ReasonNonStructured:
		return "non_structured_payload"
	case ReasonMalformed:
		return "malformed_payload"
	case ReasonNotConfigured:
		return "not_configured"
	case ReasonEmpty:
		return "empty"
	default:
		return "none"
	}
}

// Result is the outcome of one provider call: either a value or the reason
// it is unavailable.
type Result[T any] struct {
	value  T
	reason Reason
	ok     bool
}

// Ok wraps a successfully fetched value.
func Ok[T any](v T) Result[T] { return Result[T]{value: v, ok: true} }

// Unavailable records a typed absence.
func Unavailable[T any](reason Reason) Result[T] {
	if reason == ReasonNone {
		reason = ReasonTransport
	}
	return Result[T]{reason: reason}
}

// Get returns the value and whether the result is Ok.
func (r Result[T]) Get() (T, bool) { return r.value, r.ok }

// OK reports whether the provider supplied data.
func (r Result[T]) OK() bool { return r.ok }

// Reason is ReasonNone for Ok results.
func (r Result[T]) Reason() Reason { return r.reason }

// Erase drops the static type so heterogeneous results can share a record.
func Erase[T any](r Result[T]) Result[any] {
	if !r.ok {
		return Result[any]{reason: r.reason}
	}
	return Result[any]{value: r.value, ok: true}
}

func (r Result[T]) String() string {
	if r.ok {
		return fmt.Sprintf("Ok(%v)", r.value)
	}
	return "Unavailable(" + r.reason.String() + ")"
}

// Request is one inbound aggregation call.
type Request struct {
	Brand  string `json:"brand" validate:"required"`
	Domain string `json:"domain" validate:"required"`
}

// NewRequest trims both identifiers and validates them.
func NewRequest(brand, domain string) (Request, error) {
	req := Request{Brand: strings.TrimSpace(brand), Domain: strings.TrimSpace(domain)}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}
