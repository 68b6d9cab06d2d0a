package util

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// NewID returns prefix_ followed by 16 random bytes in hex.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewRunID returns an id that sorts by the time the run started, e.g.
// run_20250106T090000Z_1a2b3c4d.
func NewRunID(started time.Time) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return "run_" + started.UTC().Format("20060102T150405Z") + "_" + hex.EncodeToString(suffix)
}
