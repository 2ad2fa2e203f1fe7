// Package auth issues and validates the operator credentials guarding
// the mutating API surface.
//
// There is no user database. Operators are declared statically in the
// configuration file, each with an Argon2id password hash, and receive
// short-lived HS256 access tokens from the login endpoint. Token
// validation is signature-only, so request handling never touches
// storage.
package auth
