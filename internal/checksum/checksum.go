// Package checksum tracks content digests of workspace files.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Tracker remembers the digest last recorded per path. It is not safe for
// concurrent use.
type Tracker struct {
	sums map[string]string
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{sums: make(map[string]string)}
}

// Unchanged reports whether data hashes to the digest recorded for path,
// and returns the digest so the caller can Record it once the content has
// been persisted.
func (t *Tracker) Unchanged(path string, data []byte) (string, bool) {
	sum := Sum(data)
	prev, ok := t.sums[path]
	return sum, ok && prev == sum
}

// Record stores sum as the current digest of path.
func (t *Tracker) Record(path, sum string) {
	t.sums[path] = sum
}

// Forget drops the digest of path.
func (t *Tracker) Forget(path string) {
	delete(t.sums, path)
}
