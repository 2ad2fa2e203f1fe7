package auth

import "errors"

// Sentinel errors returned by credential and token validation. Callers
// match with errors.Is:
//
//	if errors.Is(err, auth.ErrTokenInvalid) { ... }
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenInvalid       = errors.New("auth: invalid token")
)
