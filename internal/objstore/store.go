// Package objstore provides the object-store contract the benchmark core
// writes its durable artifacts through, plus the fixed key layout. Two
// backends exist: S3 for production and a local directory for TEST runs
// and tests. Every write is a whole-object atomic replace; partial
// artifacts never become visible.
package objstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("objstore: object not found")

// Store is the object-store contract. Implementations must make Put
// atomic at whole-object granularity and List return keys in lexical
// order.
type Store interface {
	// Get downloads the full object.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put uploads the full object, replacing any previous version.
	Put(ctx context.Context, key string, data []byte) error
	// List returns all keys under the prefix, lexically sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// Exists reports whether the object is present.
	Exists(ctx context.Context, key string) (bool, error)
}
