// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package entitlement

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrForbidden     = errors.New("exposure: access forbidden")
	ErrNotFound      = errors.New("exposure: resource not found")
	ErrRejected      = errors.New("exposure: request rejected")
	ErrUnavailable   = errors.New("exposure: host unreachable or transport failure")
	ErrUpstreamError = errors.New("exposure: internal error (5xx)")
	ErrBadResponse   = errors.New("exposure: invalid response format or malformed data")
	ErrTimeout       = errors.New("exposure: request timed out")

	// ErrRateLimited means the client's own limiter could not admit the
	// request before the context deadline. It says nothing about the backend.
	ErrRateLimited = errors.New("exposure: client rate limit exceeds deadline")
)

// ReasonNoMediaForProgram is the rejection that triggers the unencrypted retry.
const ReasonNoMediaForProgram = "NO_MEDIA_FOR_PROGRAM"

// Error wraps a sentinel with the exposure response that produced it.
type Error struct {
	Sentinel  error
	Operation string
	HTTPCode  int
	// Reason is the machine readable code from the response body, if any.
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("exposure: %s: %v", e.Operation, e.Sentinel)
	if e.HTTPCode > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.HTTPCode)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Message != "" && e.Message != e.Reason {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// IsNoMediaForProgram reports the 403 NO_MEDIA_FOR_PROGRAM rejection.
func IsNoMediaForProgram(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.HTTPCode == http.StatusForbidden && e.Reason == ReasonNoMediaForProgram
}

// HTTPCode extracts the exposure status code, or 0.
func HTTPCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPCode
	}
	return 0
}

// isBackendFault reports errors that say something about backend health.
// Rejections of a particular request do not.
func isBackendFault(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrUpstreamError) || errors.Is(err, ErrTimeout)
}

func sentinelForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= http.StatusInternalServerError:
		return ErrUpstreamError
	default:
		return ErrRejected
	}
}
