package dedup

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/elonfeng/signalfeed/pkg/source"
)

type memorySeen struct {
	hashes map[string]bool
	marked []string
	keep   int
}

func (m *memorySeen) SeenHashes(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool, len(m.hashes))
	for h := range m.hashes {
		out[h] = true
	}
	return out, nil
}

func (m *memorySeen) MarkSeen(ctx context.Context, hashes []string, keep int) error {
	m.marked = append(m.marked, hashes...)
	m.keep = keep
	return nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestTitleSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"", "", 1, 1},
		{"abcd", "abcd", 1, 1},
		{"abcd", "bcde", 0.75, 0.75},
		{"Apple unveils new iPhone", "apple unveils new iphone", 1, 1},
		{"OpenAI ships GPT-5 to everyone", "OpenAI ships GPT-5 to everyone!", 0.95, 1},
		{"Rust 2.0 released", "Fed raises interest rates", 0, 0.5},
	}

	for _, tt := range tests {
		got := TitleSimilarity(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("TitleSimilarity(%q, %q) = %v, want in [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}

func TestDeduplicate(t *testing.T) {
	t.Parallel()

	store := &memorySeen{hashes: map[string]bool{"old": true}}
	d, err := New(context.Background(), store, quietLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	in := []source.Article{
		{Hash: "old", Title: "Seen in a previous build"},
		{Hash: "a", Title: "OpenAI ships GPT-5 to everyone"},
		{Hash: "a", Title: "Same link, different title"},
		{Hash: "b", Title: "OpenAI ships GPT-5 to everyone!"},
		{Hash: "c", Title: "Rust 2.0 released"},
	}

	out := d.Deduplicate(in)
	if len(out) != 2 || out[0].Hash != "a" || out[1].Hash != "c" {
		t.Fatalf("unexpected result: %+v", out)
	}

	if err := d.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(store.marked) != 2 || store.keep != MaxSeenEntries {
		t.Fatalf("expected 2 hashes marked with cap %d, got %v / %d", MaxSeenEntries, store.marked, store.keep)
	}

	// A second batch in the same process sees the first batch's hashes.
	if again := d.Deduplicate([]source.Article{{Hash: "c", Title: "Rust 2.0 released"}}); len(again) != 0 {
		t.Fatalf("expected repeat to be dropped, got %+v", again)
	}
}

func TestDeduplicateEmptyTitlesNotCompared(t *testing.T) {
	t.Parallel()

	d, _ := New(context.Background(), nil, quietLogger())
	out := d.Deduplicate([]source.Article{{Hash: "x"}, {Hash: "y"}})
	if len(out) != 2 {
		t.Fatalf("articles with empty titles should both survive, got %d", len(out))
	}
	if err := d.Save(context.Background()); err != nil {
		t.Fatalf("save without store: %v", err)
	}
}
