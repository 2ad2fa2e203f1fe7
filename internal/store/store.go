// Package store provides the namespaced key-value state container backing
// plan variables.
//
// Namespaces ("dbs" in plan definitions) partition unrelated state: stored
// scene ids, cached geocoding results, and the per-day astronomical anchors
// all live in separate namespaces of one store. Namespaces come into
// existence on first write and are emptied, not removed, by Flush.
//
// Two backends are provided: Memory for tests and ephemeral deployments,
// and SQLiteStore for durable state that survives restarts. The Computed
// wrapper adds cache-or-compute semantics on top of either.
package store

import "context"

// Store is the namespaced key-value contract consumed by plan actions and
// triggers. Values are opaque strings; callers own any encoding.
type Store interface {
	// Get returns the value for key in namespace ns.
	// Returns ErrKeyNotFound if the key is absent.
	Get(ctx context.Context, ns, key string) (string, error)

	// Set writes the value for key in namespace ns, creating the namespace
	// if this is its first write.
	Set(ctx context.Context, ns, key, value string) error

	// Flush removes every key in namespace ns. Other namespaces are
	// untouched. Flushing an unknown namespace is a no-op.
	Flush(ctx context.Context, ns string) error

	// Keys lists the keys present in namespace ns, in unspecified order.
	Keys(ctx context.Context, ns string) ([]string, error)
}
