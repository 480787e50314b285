// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package services

import (
	"errors"
	"fmt"
)

// ErrServiceUnavailable indicates a requested integration is not configured
// or disabled. Callers with optional features check availability first and
// degrade instead of failing the whole request.
var ErrServiceUnavailable = errors.New("service is not configured")

// AuthError indicates a login failure or a session the upstream rejected
// twice in a row. It is terminal for the call that produced it: the session
// client retries a rejected session exactly once before surfacing this.
type AuthError struct {
	Service string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Service, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamError indicates a non-auth failure from an external service:
// timeout, 5xx, connection refused, malformed response. Retry policy belongs
// to the caller.
type UpstreamError struct {
	Service    string
	StatusCode int // 0 when the failure happened before a response
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream returned %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: upstream request failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is an AuthError anywhere in its chain.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
