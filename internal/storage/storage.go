package storage

import "context"

// KV persists opaque documents by key. Get returns (nil, nil) when the key has
// never been written.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, val []byte) error
}

// Backend is a KV that can report its health.
type Backend interface {
	KV
	Ping(ctx context.Context) error
}

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendFile     = "file"
)
