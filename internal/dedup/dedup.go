// Package dedup partitions candidate news items against the durable seen set
// so each distinct link is delivered at most once across runs.
package dedup

import "coinsentry/internal/state"

// Item is a candidate news article. The link doubles as the dedup identifier.
// Items with an empty link or title are dropped by the source adapter before
// they reach this package.
type Item struct {
	Title string
	Link  string
}

// FilterNew returns the subsequence of items whose link is not in seen,
// preserving input order. The seen set is not modified, so calling twice with
// the same set yields the same result.
func FilterNew(items []Item, seen state.SeenSet) []Item {
	fresh := make([]Item, 0, len(items))
	for _, item := range items {
		if seen.Contains(item.Link) {
			continue
		}
		fresh = append(fresh, item)
	}
	return fresh
}

// Commit marks id as delivered. Committing a present id is a no-op.
// The orchestrator calls this after the delivery attempt completes,
// successfully or not; persistence of the set is its responsibility.
func Commit(id string, seen state.SeenSet) {
	seen.Add(id)
}
