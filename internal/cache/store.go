package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session has no cached source or it expired
var ErrNotFound = errors.New("cache: source not found")

// Entry is the original upload of a print session, kept so options can be
// re-applied to the untouched source.
type Entry struct {
	FileName    string    `json:"file_name"`
	Data        []byte    `json:"data,omitempty"`
	SourcePaths []string  `json:"source_paths,omitempty"`
	Pages       int       `json:"pages"`
	CreatedAt   time.Time `json:"created_at"`
}

// SourceStore keeps session sources between requests
type SourceStore interface {
	Put(ctx context.Context, id string, entry *Entry, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Entry, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
