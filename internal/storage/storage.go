// Package storage is the object-store layer behind every persisted
// artifact: config, runs index, agent envelopes, episodes, and the feed.
// Keys are forward-slash paths relative to the store root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrNotFound is returned by Get when no object exists at the key.
var ErrNotFound = errors.New("object not found")

// Storage is the minimal object-store contract the pipeline needs.
// Put must be effectively atomic: readers see either the old object or
// the new one, never a partial write.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
}

// FromEnv builds the backend selected by STORAGE_BACKEND (default s3).
// "fs" keeps everything under STORAGE_DIR for local development and tests.
func FromEnv(ctx context.Context) (Storage, error) {
	backend := os.Getenv("STORAGE_BACKEND")
	switch backend {
	case "", "s3":
		return NewS3FromEnv(ctx)
	case "fs":
		dir := os.Getenv("STORAGE_DIR")
		if dir == "" {
			dir = "newscast-data"
		}
		return NewFS(dir, os.Getenv("PODCAST_BASE_URL"))
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q (want s3 or fs)", backend)
	}
}
