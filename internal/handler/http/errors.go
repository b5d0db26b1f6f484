// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import "errors"

// Sentinel errors produced while parsing the "Authorization" header on the
// state routes. Callers can match against them with [errors.Is].
var (
	// ErrEmptyAuthorizationHeader is returned when the incoming request does
	// not include an "Authorization" header at all.
	ErrEmptyAuthorizationHeader = errors.New("empty `Authorization` header")

	// ErrInvalidAuthorizationHeader is returned when the header cannot be
	// split into a scheme and a token value.
	ErrInvalidAuthorizationHeader = errors.New("invalid `Authorization` header")

	// ErrEmptyToken is returned when the scheme prefix is present but the
	// token value itself is an empty string.
	ErrEmptyToken = errors.New("empty token in `Authorization` header")
)
