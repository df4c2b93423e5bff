// Package store provides the document store used to persist version
// records and migration plans. Records are JSON documents addressed by
// string keys; backends implement put/get/delete plus prefix listing.
package store

import (
	"context"
	"errors"
)

// Sentinel errors for store operations.
var (
	// ErrKeyNotFound is returned by Get and Delete for absent keys.
	ErrKeyNotFound = errors.New("key not found")
)

// KV is a single key/document pair returned by List.
type KV struct {
	Key   string
	Value []byte
}

// Store persists JSON documents under string keys. Writes replace the
// whole document (last writer wins); there is no optimistic-concurrency
// token, so concurrent writers to the same key can overwrite each other.
type Store interface {
	// Put stores value under key, replacing any existing document.
	Put(ctx context.Context, key string, value []byte) error
	// Get returns the document stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the document under key, or returns ErrKeyNotFound.
	Delete(ctx context.Context, key string) error
	// List returns all documents whose key starts with prefix, sorted
	// by key ascending.
	List(ctx context.Context, prefix string) ([]KV, error)
}
