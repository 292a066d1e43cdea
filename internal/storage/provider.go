// Package storage defines the durable blob store that holds encoded
// content snapshots, with file-system, in-memory and S3 backends.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// BlobInfo is a lightweight description returned by list operations.
type BlobInfo struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for durable snapshot storage. Keys are
// slash-separated relative paths. Read and Delete of a missing key return
// an error wrapping apperr.ErrNotFound.
type Provider interface {
	// List returns every blob whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	// Read returns the bytes stored under key.
	Read(ctx context.Context, key string) ([]byte, error)
	// Write atomically replaces the bytes stored under key.
	Write(ctx context.Context, key string, content []byte) error
	// Delete removes key.
	Delete(ctx context.Context, key string) error
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
