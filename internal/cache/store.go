package cache

import (
	"context"
	"errors"
	"fmt"
)

// Store drivers
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

// ErrNotFound is returned by Store.Get for programs without a wrapper
var ErrNotFound = errors.New("wrapper not found")

// Store holds prebuilt wrapper binaries keyed by program name
type Store interface {
	Get(ctx context.Context, program string) ([]byte, error)
	Put(ctx context.Context, program string, blob []byte) error
	Delete(ctx context.Context, program string) error
	List(ctx context.Context) ([]Entry, error)
	Clear() error
	// Stats returns the number of wrappers and their total size in bytes
	Stats() (int, int64, error)
	Close() error
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*BoltStore)(nil)
)

// Open opens the store for driver at path
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", DriverSQLite:
		return OpenSQLite(path)
	case DriverBolt:
		return New(path)
	}

	return nil, fmt.Errorf("unknown wrapper store driver: %s", driver)
}
