package cache

import "time"

// Entry describes a wrapper binary held by a Store
type Entry struct {
	// Program is the name of the program the wrapper measures
	Program string `json:"program"`

	// Hash is the sha256 of the wrapper binary
	Hash string `json:"hash"`

	// Size of the wrapper binary in bytes
	Size int64 `json:"size"`

	// Timestamp when this entry was created. Zero when the store does not
	// record it.
	Timestamp time.Time `json:"timestamp"`
}
