// Package cache resolves the wrapper binaries that time a compiled
// program.
//
// A wrapper is looked up in three places, in order:
//
//  1. An existing <program>_wrapper binary in the working directory
//  2. A <program>_wrapper.c or .cpp source in the working directory,
//     compiled against the program's shared library
//  3. A Store, either the SQLite wrappers table or a BoltDB index with
//     the binaries kept on the filesystem
//
// This lets a server fleet share wrappers built once without carrying
// sources for every program.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DefaultCacheDir is the default cache directory name
	DefaultCacheDir = ".polysched-cache"

	// bucketName is the BoltDB bucket name for wrapper entries
	bucketName = "wrappers"
)

// BoltStore keeps wrapper metadata in BoltDB and the binaries under
// <root>/artifacts/<hash>
type BoltStore struct {
	db   *bbolt.DB
	root string // Root directory for cache (.polysched-cache/)
}

// New creates a new bolt store
// If cacheDir is empty, uses DefaultCacheDir in current working directory
func New(cacheDir string) (*BoltStore, error) {
	if cacheDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}

		cacheDir = filepath.Join(cwd, DefaultCacheDir)
	}

	// Ensure cache directory exists
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Open BoltDB
	dbPath := filepath.Join(cacheDir, "cache.db")
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Create bucket if it doesn't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &BoltStore{
		db:   db,
		root: cacheDir,
	}, nil
}

// Close closes the cache database
func (c *BoltStore) Close() error {
	if c.db != nil {
		return c.db.Close()
	}

	return nil
}

// Lookup returns the entry for program, or nil on a miss
func (c *BoltStore) Lookup(program string) (*Entry, error) {
	var entry Entry
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		data := b.Get([]byte(program))
		if data == nil {
			return nil // Cache miss
		}

		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}

	if entry.Hash == "" {
		return nil, nil // Cache miss
	}

	return &entry, nil
}

// Get returns the wrapper binary for program
func (c *BoltStore) Get(ctx context.Context, program string) ([]byte, error) {
	entry, err := c.Lookup(program)
	if err != nil {
		return nil, err
	}

	if entry == nil {
		return nil, fmt.Errorf("%s: %w", program, ErrNotFound)
	}

	data, err := ReadArtifact(c.artifactPath(entry.Hash))
	if err != nil {
		return nil, err
	}

	if HashBytes(data) != entry.Hash {
		return nil, fmt.Errorf("artifact for %s is corrupt", program)
	}

	return data, nil
}

// Put saves the wrapper binary for program, replacing any previous one
func (c *BoltStore) Put(ctx context.Context, program string, blob []byte) error {
	entry := Entry{
		Program:   program,
		Hash:      HashBytes(blob),
		Size:      int64(len(blob)),
		Timestamp: time.Now(),
	}

	// Artifacts are content addressed so identical wrappers share a file
	if err := WriteArtifact(c.artifactPath(entry.Hash), blob); err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}

	// Store metadata in BoltDB
	var stale string
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		if prev := b.Get([]byte(program)); prev != nil {
			var old Entry
			if err := json.Unmarshal(prev, &old); err == nil && old.Hash != entry.Hash {
				stale = old.Hash
			}
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		if err := b.Put([]byte(program), data); err != nil {
			return err
		}

		if stale == "" {
			return nil
		}

		shared, err := hashShared(b, stale)
		if err != nil {
			return err
		}
		if shared {
			stale = ""
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	if stale != "" {
		if err := os.Remove(c.artifactPath(stale)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove replaced artifact: %w", err)
		}
	}

	return nil
}

// Delete removes the entry for program. The artifact is removed when no
// other entry shares it.
func (c *BoltStore) Delete(ctx context.Context, program string) error {
	entry, err := c.Lookup(program)
	if err != nil {
		return err
	}

	if entry == nil {
		return fmt.Errorf("%s: %w", program, ErrNotFound)
	}

	shared := false
	err = c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if err := b.Delete([]byte(program)); err != nil {
			return err
		}

		var err error
		shared, err = hashShared(b, entry.Hash)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	if !shared {
		if err := os.Remove(c.artifactPath(entry.Hash)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove artifact: %w", err)
		}
	}

	return nil
}

// hashShared reports whether any entry in b references the artifact hash
func hashShared(b *bbolt.Bucket, hash string) (bool, error) {
	shared := false
	err := b.ForEach(func(k, v []byte) error {
		var other Entry
		if err := json.Unmarshal(v, &other); err != nil {
			return fmt.Errorf("corrupt entry %s: %w", k, err)
		}

		if other.Hash == hash {
			shared = true
		}

		return nil
	})

	return shared, err
}

// List returns every entry sorted by program name
func (c *BoltStore) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		return b.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("corrupt entry %s: %w", k, err)
			}

			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Program < entries[j].Program })
	return entries, nil
}

// Clear removes all cache entries and artifacts
func (c *BoltStore) Clear() error {
	// Clear BoltDB
	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket([]byte(bucketName))
	})
	if err != nil {
		return err
	}

	// Recreate bucket
	err = c.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
	if err != nil {
		return err
	}

	// Remove artifacts directory
	artifactsDir := filepath.Join(c.root, "artifacts")
	if err := os.RemoveAll(artifactsDir); err != nil {
		return fmt.Errorf("failed to remove artifacts: %w", err)
	}

	return nil
}

// Stats returns cache statistics
func (c *BoltStore) Stats() (int, int64, error) {
	var count int
	var totalSize int64

	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		count = b.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	// Calculate total artifact size
	artifactsDir := filepath.Join(c.root, "artifacts")
	err = filepath.Walk(artifactsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Clear removes the directory until the next Put
			if path == artifactsDir && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}

		if !info.IsDir() {
			totalSize += info.Size()
		}

		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to size artifacts: %w", err)
	}

	return count, totalSize, nil
}

// artifactPath returns the file path for a given wrapper hash
func (c *BoltStore) artifactPath(hash string) string {
	return filepath.Join(c.root, "artifacts", hash)
}
