// Package blob abstracts object storage for export artifacts.
package blob

import (
	"context"
	"time"
)

// Store is the object-storage contract the table builder's export step needs.
type Store interface {
	// Upload writes content at the given path, overwriting any prior object.
	Upload(ctx context.Context, path string, content []byte, contentType string) error
	// SignedURL returns a time-limited URL for downloading the object.
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}
