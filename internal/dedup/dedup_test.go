package dedup

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips tracking params",
			in:   "https://news.example.com/story?utm_source=feed&utm_medium=rss&id=42",
			want: "https://news.example.com/story?id=42",
		},
		{
			name: "strips fbclid and fragment",
			in:   "https://news.example.com/story?fbclid=abc123#comments",
			want: "https://news.example.com/story",
		},
		{
			name: "lowercases scheme and host",
			in:   "HTTPS://News.Example.COM/Story",
			want: "https://news.example.com/Story",
		},
		{
			name: "drops trailing slash",
			in:   "https://news.example.com/story/",
			want: "https://news.example.com/story",
		},
		{
			name: "root path kept",
			in:   "https://news.example.com/",
			want: "https://news.example.com/",
		},
		{
			name: "unparseable input returned trimmed",
			in:   "  ://not a url  ",
			want: "://not a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeURL(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NormalizeURL(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestNormalizeURLStable(t *testing.T) {
	once := NormalizeURL("https://News.example.com/story/?utm_campaign=x")
	twice := NormalizeURL(once)
	if once != twice {
		t.Errorf("normalization not idempotent: %q then %q", once, twice)
	}
}

func TestChecksum(t *testing.T) {
	a := Checksum("Council Approves Budget", "The council voted on Tuesday.")
	b := Checksum("  council approves   BUDGET ", "The council voted on Tuesday.")
	if a != b {
		t.Errorf("checksum should ignore title casing and spacing: %q vs %q", a, b)
	}

	c := Checksum("Council Approves Budget", "The council voted on Wednesday.")
	if a == c {
		t.Error("different bodies must produce different checksums")
	}

	if len(a) != 64 {
		t.Errorf("expected hex sha256, got length %d", len(a))
	}
}

func TestSimilarity(t *testing.T) {
	body := "The city council approved the new transport budget after a long debate over cycle lanes."

	if got := Similarity(body, body); got != 1.0 {
		t.Errorf("identical texts: got %v, want 1.0", got)
	}

	other := "Local bakery wins national award for sourdough loaves baked in a wood fired oven."
	if got := Similarity(body, other); got != 0.0 {
		t.Errorf("disjoint texts: got %v, want 0.0", got)
	}

	// A near-copy with one changed word should score high but below 1.
	edited := "The city council approved the new transport budget after a long debate over bus lanes."
	got := Similarity(body, edited)
	if got <= 0.5 || got >= 1.0 {
		t.Errorf("near-duplicate: got %v, want in (0.5, 1.0)", got)
	}
}

func TestSimilarityShortTexts(t *testing.T) {
	// Too short for shingles; falls back to exact comparison.
	if got := Similarity("two words", "two words"); got != 1.0 {
		t.Errorf("short identical: got %v, want 1.0", got)
	}
	if got := Similarity("two words", "other words"); got != 0.0 {
		t.Errorf("short different: got %v, want 0.0", got)
	}
}

func TestSourceDomain(t *testing.T) {
	if got := SourceDomain("https://www.example.com/a/b"); got != "example.com" {
		t.Errorf("got %q, want example.com", got)
	}
	if got := SourceDomain("not a url"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("  one two\nthree  "); got != 3 {
		t.Errorf("got %d, want 3", got)
	}
	if got := WordCount(""); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}
