package sync

import (
	"encoding/json"
	"testing"
	"time"
)

func feedItem(id string, at time.Time, payload string) Item {
	return Item{ID: id, CreatedAt: at, Payload: json.RawMessage(payload)}
}

func feedIDs(f *Feed) []string {
	items := f.Items()
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

func TestFeedApplyDedupesInserts(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := NewFeed()

	if !f.Apply(OpInsert, feedItem("a", base, `{"v":1}`)) {
		t.Fatal("first insert should apply")
	}
	before := feedIDs(f)

	if f.Apply(OpInsert, feedItem("a", base.Add(time.Minute), `{"v":2}`)) {
		t.Error("duplicate insert should be discarded")
	}

	after := feedIDs(f)
	if len(after) != len(before) {
		t.Errorf("duplicate insert changed length: %d -> %d", len(before), len(after))
	}
	if string(f.Items()[0].Payload) != `{"v":1}` {
		t.Errorf("duplicate insert changed payload: %s", f.Items()[0].Payload)
	}
}

func TestFeedApplyOrdersByCreatedAtThenID(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		arrival []Item
		want    []string
	}{
		{
			name: "out of order arrival",
			arrival: []Item{
				feedItem("c", base.Add(2*time.Second), `{}`),
				feedItem("a", base, `{}`),
				feedItem("b", base.Add(time.Second), `{}`),
			},
			want: []string{"a", "b", "c"},
		},
		{
			name: "timestamp ties break on id",
			arrival: []Item{
				feedItem("z", base, `{}`),
				feedItem("m", base, `{}`),
				feedItem("a", base, `{}`),
			},
			want: []string{"a", "m", "z"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFeed()
			for _, item := range tc.arrival {
				f.Apply(OpInsert, item)
			}
			got := feedIDs(f)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d items, want %d", len(got), len(tc.want))
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("position %d: got %s, want %s", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestFeedApplyUpdateReplacesInPlace(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := NewFeed()
	f.Apply(OpInsert, feedItem("a", base, `{"read":false}`))
	f.Apply(OpInsert, feedItem("b", base.Add(time.Second), `{}`))

	if !f.Apply(OpUpdate, feedItem("a", base, `{"read":true}`)) {
		t.Fatal("update with new payload should apply")
	}
	if got := feedIDs(f); got[0] != "a" || got[1] != "b" {
		t.Errorf("update changed ordering: %v", got)
	}
	if string(f.Items()[0].Payload) != `{"read":true}` {
		t.Errorf("update did not replace payload: %s", f.Items()[0].Payload)
	}

	if f.Apply(OpUpdate, feedItem("a", base, `{"read":true}`)) {
		t.Error("identical update should be a no-op")
	}
}

func TestFeedApplyUpdateBeforeInsertAppends(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := NewFeed()

	// Under jitter an update can outrun its insert.
	if !f.Apply(OpUpdate, feedItem("a", base, `{"read":true}`)) {
		t.Fatal("update for unseen id should append")
	}
	if f.Len() != 1 {
		t.Fatalf("got %d items, want 1", f.Len())
	}
	if f.Apply(OpInsert, feedItem("a", base, `{"read":false}`)) {
		t.Error("late insert for already-merged id should be discarded")
	}
}

func TestFeedReplaceDropsPreviousState(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := NewFeed()
	f.Apply(OpInsert, feedItem("stale", base, `{}`))

	f.Replace([]Item{
		feedItem("b", base.Add(time.Second), `{}`),
		feedItem("a", base, `{}`),
	})

	got := feedIDs(f)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("replace produced %v, want [a b]", got)
	}
	if !f.Apply(OpInsert, feedItem("stale", base, `{}`)) {
		t.Error("id from before replace should be insertable again")
	}
}
