package storage

import (
	"context"
	"errors"
)

// Keys under which planner snapshots are stored.
const (
	KeyTasks    = "tasks"
	KeyThoughts = "thoughts"
)

// ErrNotFound is returned by Get when a key has never been written.
var ErrNotFound = errors.New("blob not found")

// BlobStore persists opaque values by key. Every Set is a full overwrite.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}
