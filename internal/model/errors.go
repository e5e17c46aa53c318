package model

import "errors"

// Validation and conflict errors.
var (
	ErrValidation      = errors.New("validation failed")
	ErrWeakCredential  = errors.New("password does not meet strength policy")
	ErrDuplicateUser   = errors.New("user already exists")
	ErrNotFound        = errors.New("not found")
	ErrUnknownCategory = errors.New("unknown category")
	ErrTooLarge        = errors.New("request body too large")
)

// Authentication errors. ErrInvalidCredential is returned for both unknown
// users and wrong passwords.
var (
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenRevoked      = errors.New("token revoked")
	ErrUnauthorized      = errors.New("unauthorized")
)

// Admission errors.
var (
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrTooManyConcurrent = errors.New("too many concurrent requests")
)

// Infrastructure errors.
var (
	ErrStorage         = errors.New("storage failure")
	ErrUpstream        = errors.New("upstream failure")
	ErrUpstreamTimeout = errors.New("upstream timeout")
)
