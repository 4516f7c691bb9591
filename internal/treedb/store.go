// Package treedb provides a hierarchical key/value store keyed by
// slash-separated paths, with JSON document values.
package treedb

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned when no document exists at the given path.
	ErrNotFound = errors.New("node not found")
)

// Store is a path-addressed document store. Paths look like
// "/doctors/d1" or "/bookedSlots/d1/2025-09-23/09:00"; values are
// JSON-serialized.
type Store interface {
	// Get unmarshals the document at path into out. Returns ErrNotFound
	// when the path has no document.
	Get(ctx context.Context, path string, out any) error

	// Set writes the document at path, creating or replacing it.
	Set(ctx context.Context, path string, value any) error

	// SetIfAbsent writes the document only if the path is vacant. It
	// reports whether the write won; false means another document
	// already occupies the path.
	SetIfAbsent(ctx context.Context, path string, value any) (bool, error)

	// Update replaces an existing document. Returns ErrNotFound when
	// the path is vacant.
	Update(ctx context.Context, path string, value any) error

	// Remove deletes the document at path. Removing a vacant path is
	// not an error.
	Remove(ctx context.Context, path string) error

	// Push stores the document under a freshly generated key beneath
	// dir and returns that key.
	Push(ctx context.Context, dir string, value any) (string, error)

	// Children returns the direct children of dir, keyed by the final
	// path segment. A vacant dir yields an empty map.
	Children(ctx context.Context, dir string) (map[string]json.RawMessage, error)

	// Close releases underlying resources.
	Close() error
}
