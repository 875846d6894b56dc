package state

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrCorrupt indicates the backing data exists but is structurally invalid.
// Callers must surface it instead of resetting state: a silent reset erases
// dedup history and every price baseline at once.
var ErrCorrupt = errors.New("state: backing data is corrupt")

// SeenSet holds the identifiers of items already delivered. Membership only
// ever grows within a run.
type SeenSet map[string]struct{}

// NewSeenSet builds an empty seen set.
func NewSeenSet() SeenSet {
	return make(SeenSet)
}

// Contains reports whether id is a member.
func (s SeenSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id. Adding a present id is a no-op.
func (s SeenSet) Add(id string) {
	s[id] = struct{}{}
}

// Len returns the member count.
func (s SeenSet) Len() int {
	return len(s)
}

// Sorted returns the members in lexical order.
func (s SeenSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Store persists the seen set, the per-asset price records, and the
// observation history used by show/export.
type Store interface {
	// Load returns empty structures, not an error, when no backing data
	// exists yet. Structural corruption is reported as a wrapped ErrCorrupt.
	Load(ctx context.Context) (SeenSet, map[string]PriceRecord, error)
	// Save replaces the stored state. The write is atomic relative to a
	// crash: previously committed state is never lost to a partial write.
	Save(ctx context.Context, seen SeenSet, prices map[string]PriceRecord) error
	AppendHistory(ctx context.Context, points []PricePoint) error
	ListHistory(ctx context.Context, assetID string, from, to time.Time) ([]PricePoint, error)
	Close()
}
