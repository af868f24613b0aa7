package memes

import (
	"testing"

	"memebot/internal/domain"
)

func ids(memes []domain.Meme) []domain.MemeID {
	out := make([]domain.MemeID, len(memes))
	for i, m := range memes {
		out[i] = m.ID
	}
	return out
}

func TestMerge_DedupKeepsFirst(t *testing.T) {
	personal := []domain.Meme{{ID: "1", URL: "a"}, {ID: "2", URL: "b"}}
	public := []domain.Meme{{ID: "2", URL: "b-public"}, {ID: "3", URL: "c"}}

	got := Merge(personal, public)
	if len(got) != 3 {
		t.Fatalf("expected 3 memes, got %d: %v", len(got), ids(got))
	}
	want := []domain.MemeID{"1", "2", "3"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected id %s, got %s", i, id, got[i].ID)
		}
	}
	if got[1].URL != "b" {
		t.Errorf("duplicate should keep first occurrence, got url %q", got[1].URL)
	}
}

func TestMerge_DuplicatesWithinOneList(t *testing.T) {
	got := Merge([]domain.Meme{{ID: "1"}, {ID: "1"}, {ID: "2"}})
	if len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
}

func TestMerge_Empty(t *testing.T) {
	if got := Merge(); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
	if got := Merge(nil, nil); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}

func TestMerge_PreservesOrder(t *testing.T) {
	got := Merge([]domain.Meme{{ID: "9"}, {ID: "3"}}, []domain.Meme{{ID: "5"}, {ID: "9"}, {ID: "1"}})
	want := []domain.MemeID{"9", "3", "5", "1"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("expected %v, got %v", want, ids(got))
		}
	}
}
