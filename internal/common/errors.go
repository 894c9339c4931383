// Package common defines shared constants and sentinel errors used across
// the TaskFlow server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("invalid credentials or token")
	ErrorValidation   = errors.New("validation error")
	ErrorForbidden    = errors.New("forbidden")

	// Token decode categories. These drive control flow inside the auth
	// core and are never returned to end callers.
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenWrongType        = errors.New("token has wrong type")
)
