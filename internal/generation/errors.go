// SPDX-License-Identifier: Apache-2.0

package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies generation failures for the retry policy.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindTooLarge
	KindNotFound
	KindRateLimited
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindTooLarge:
		return "too-large"
	case KindNotFound:
		return "not-found"
	case KindRateLimited:
		return "rate-limited"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt may succeed. Authentication,
// oversized requests and unknown models never do.
func (k Kind) Retryable() bool {
	switch k {
	case KindAuth, KindTooLarge, KindNotFound:
		return false
	default:
		return true
	}
}

// Error is returned by backends for every failed call.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind of err. Deadline and network errors are transient.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	return KindUnknown
}

// KindFromStatus maps an HTTP status code onto a Kind.
func KindFromStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusBadRequest, code == http.StatusRequestEntityTooLarge, code == http.StatusUnprocessableEntity:
		return KindTooLarge
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout, code >= 500:
		return KindTransient
	default:
		return KindUnknown
	}
}
