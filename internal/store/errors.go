package store

import "errors"

// Domain errors for the store package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, store.ErrKeyNotFound) {
//	    // treat as a cache miss or a logged no-op, per caller
//	}
var (
	// ErrKeyNotFound is returned when a key is absent from a namespace.
	ErrKeyNotFound = errors.New("store: key not found")
)
