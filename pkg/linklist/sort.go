package linklist

import (
	"sort"
	"strings"
)

// SortOption selects the ordering rule applied within the pinned and
// unpinned groups. Pinned items always render before unpinned items
// regardless of the option.
type SortOption string

const (
	// SortManual orders by the integer position key, falling back to
	// CreatedAt descending for ties (items that predate position keys
	// all carry position zero).
	SortManual SortOption = "manual"

	// SortTitle orders alphabetically by title, case-insensitive.
	SortTitle SortOption = "title"

	// SortNewest orders by CreatedAt descending.
	SortNewest SortOption = "newest"

	// SortClicks orders by ClickCount descending, ties by CreatedAt
	// descending.
	SortClicks SortOption = "clicks"
)

// SortItems returns a new slice holding the items in canonical render
// order: all pinned items first, then all unpinned items, each group
// internally ordered by the given option. The input is not modified.
func SortItems(items []Item, opt SortOption) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		return lessByOption(a, b, opt)
	})
	return out
}

func lessByOption(a, b Item, opt SortOption) bool {
	switch opt {
	case SortTitle:
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	case SortNewest:
		return a.CreatedAt.After(b.CreatedAt)
	case SortClicks:
		if a.ClickCount != b.ClickCount {
			return a.ClickCount > b.ClickCount
		}
		return a.CreatedAt.After(b.CreatedAt)
	default: // SortManual
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.CreatedAt.After(b.CreatedAt)
	}
}

// Renumber assigns positions 0..n-1 to the items in their current slice
// order, in place. Used after a reorder commit so the position keys and
// the slice order agree exactly.
func Renumber(items []Item) {
	for i := range items {
		items[i].Position = i
	}
}

// ApplyMove returns a new id slice with the element at src moved to dst.
// Items strictly between the two indexes shift by one toward the vacated
// slot; everything else keeps its relative order. Returns the input
// unchanged (same backing array) when the move is a no-op or an index is
// out of range.
func ApplyMove(ids []string, src, dst int) []string {
	n := len(ids)
	if src == dst || src < 0 || dst < 0 || src >= n || dst >= n {
		return ids
	}
	out := make([]string, 0, n)
	out = append(out, ids[:src]...)
	out = append(out, ids[src+1:]...)
	out = append(out[:dst], append([]string{ids[src]}, out[dst:]...)...)
	return out
}

// OrderByIDs returns the items rearranged to match the given id order.
// Ids with no matching item are ignored; items missing from the id list
// are appended at the end in their prior relative order. The returned
// slice is renumbered 0..n-1.
func OrderByIDs(items []Item, ids []string) []Item {
	index := make(map[string]int, len(items))
	for i := range items {
		index[items[i].ID] = i
	}
	out := make([]Item, 0, len(items))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if i, ok := index[id]; ok && !seen[id] {
			out = append(out, items[i])
			seen[id] = true
		}
	}
	for i := range items {
		if !seen[items[i].ID] {
			out = append(out, items[i])
		}
	}
	Renumber(out)
	return out
}

// SameIDSet reports whether the two id slices contain exactly the same
// set of ids, ignoring order. Used to decide whether a cached order is
// still valid for the current snapshot.
func SameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, id := range a {
		set[id]++
	}
	for _, id := range b {
		set[id]--
		if set[id] < 0 {
			return false
		}
	}
	return true
}
