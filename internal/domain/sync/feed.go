package sync

import (
	"encoding/json"
	"sort"
	"time"
)

// Item is one entry in a merged feed.
type Item struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Feed is the client-visible ordered list for one scope. All writes go
// through Apply, which dedupes on the entity id and keeps the list totally
// ordered by created_at with id as the tiebreak. Arrival order is never
// trusted. Feed is not safe for concurrent use; the owning subscription
// serializes access.
type Feed struct {
	items []Item
	byID  map[string]int
}

func NewFeed() *Feed {
	return &Feed{byID: make(map[string]int)}
}

// Apply merges one event into the feed and reports whether anything changed.
// Inserts with a known id are discarded. Updates replace the payload of the
// existing entry in place, or append when the entry was never seen (an update
// arriving before its insert under jitter).
func (f *Feed) Apply(op Op, item Item) bool {
	idx, exists := f.byID[item.ID]
	switch {
	case exists && op == OpInsert:
		return false
	case exists:
		if string(f.items[idx].Payload) == string(item.Payload) {
			return false
		}
		f.items[idx].Payload = item.Payload
		return true
	default:
		f.items = append(f.items, item)
		f.resort()
		return true
	}
}

// Replace swaps in a full snapshot, discarding all previous state.
func (f *Feed) Replace(items []Item) {
	f.items = make([]Item, 0, len(items))
	f.byID = make(map[string]int, len(items))
	for _, item := range items {
		if _, dup := f.byID[item.ID]; dup {
			continue
		}
		f.items = append(f.items, item)
		f.byID[item.ID] = 0 // fixed up by resort
	}
	f.resort()
}

// Items returns a copy of the ordered list.
func (f *Feed) Items() []Item {
	out := make([]Item, len(f.items))
	copy(out, f.items)
	return out
}

func (f *Feed) Len() int { return len(f.items) }

func (f *Feed) resort() {
	sort.SliceStable(f.items, func(i, j int) bool {
		if f.items[i].CreatedAt.Equal(f.items[j].CreatedAt) {
			return f.items[i].ID < f.items[j].ID
		}
		return f.items[i].CreatedAt.Before(f.items[j].CreatedAt)
	})
	for i := range f.items {
		f.byID[f.items[i].ID] = i
	}
}
