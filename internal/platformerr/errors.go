// Package platformerr defines the closed error taxonomy every adapter
// classifies its failures into, and the five surface kinds callers above
// the Resilience Kernel actually see. It replaces the original
// implementation's PlatformError exception hierarchy with a single tagged
// struct, since Go has no exception hierarchy and the spec calls for
// sum-types over inheritance.
package platformerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Category is the closed set used for classification and retry decisions.
type Category int

const (
	Network Category = iota
	Timeout
	RateLimit
	Server5xx
	Auth
	NotFound
	BadRequest
	CircuitOpen
	Unknown
)

func (c Category) String() string {
	switch c {
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case RateLimit:
		return "rate_limit"
	case Server5xx:
		return "server_5xx"
	case Auth:
		return "auth"
	case NotFound:
		return "not_found"
	case BadRequest:
		return "bad_request"
	case CircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Retryable reports whether the Resilience Kernel is allowed to retry a
// failure of this category. Auth, BadRequest, CircuitOpen, and NotFound are
// never retried; Unknown is conservatively not retried either.
func (c Category) Retryable() bool {
	switch c {
	case Network, Timeout, Server5xx, RateLimit:
		return true
	default:
		return false
	}
}

// Surface is the reduced set higher layers (Registry and above) observe.
type Surface int

const (
	Unavailable Surface = iota
	RateLimited
	AuthRequired
	NotFoundSurface
	ApiError
)

func (s Surface) String() string {
	switch s {
	case Unavailable:
		return "unavailable"
	case RateLimited:
		return "rate_limited"
	case AuthRequired:
		return "auth_required"
	case NotFoundSurface:
		return "not_found"
	default:
		return "api_error"
	}
}

// prefix mirrors the original implementation's emoji convention, kept so
// callers can render a stable, recognizable prefix without re-deriving one
// from the surface kind.
func (s Surface) prefix() string {
	switch s {
	case Unavailable:
		return "⚠️"
	case RateLimited:
		return "⏳"
	case AuthRequired:
		return "🔒"
	case NotFoundSurface:
		return "⚠️"
	default:
		return "❌"
	}
}

func surfaceFor(cat Category) Surface {
	switch cat {
	case RateLimit:
		return RateLimited
	case Auth:
		return AuthRequired
	case NotFound:
		return NotFoundSurface
	case Network, Timeout, Server5xx, CircuitOpen:
		return Unavailable
	default:
		return ApiError
	}
}

// Error is a classified platform failure. It carries enough context for
// the Fallback Engine and the federated source's transparency requirement
// without needing a subclass per category.
type Error struct {
	Category Category
	Surface  Surface
	Platform string
	Message  string
	Cause    error

	// Federated-source transparency (spec §7): populated only by the
	// peertube adapter when every instance fails.
	FailedInstanceCount int
	TotalInstanceCount  int
}

func New(cat Category, platform, message string, cause error) *Error {
	return &Error{
		Category: cat,
		Surface:  surfaceFor(cat),
		Platform: platform,
		Message:  message,
		Cause:    cause,
	}
}

func (e *Error) Error() string {
	prefix := e.Surface.prefix()
	if e.Platform != "" {
		return fmt.Sprintf("%s %s: %s", prefix, e.Platform, e.Message)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// As reports whether err (or something it wraps) is a *Error, mirroring the
// stdlib errors.As convention so callers don't need to remember the target
// type's exact shape.
func As(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// FromHTTPStatus builds a classified Error from an HTTP response, the Go
// equivalent of the original implementation's from_http_status factory.
func FromHTTPStatus(status int, platform string, body string) *Error {
	switch {
	case status == http.StatusUnauthorized:
		return New(Auth, platform, orDefault(body, "invalid or expired credentials"), nil)
	case status == http.StatusForbidden:
		return New(Auth, platform, orDefault(body, "access denied to resource"), nil)
	case status == http.StatusTooManyRequests:
		return New(RateLimit, platform, orDefault(body, "too many requests"), nil)
	case status == http.StatusNotFound || status == http.StatusGone:
		return New(NotFound, platform, orDefault(body, "resource not found"), nil)
	case status >= 500:
		return New(Server5xx, platform, orDefault(body, fmt.Sprintf("server error (%d)", status)), nil)
	case status >= 400:
		return New(BadRequest, platform, orDefault(body, fmt.Sprintf("request failed (%d)", status)), nil)
	default:
		return New(Unknown, platform, orDefault(body, fmt.Sprintf("unexpected status %d", status)), nil)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
