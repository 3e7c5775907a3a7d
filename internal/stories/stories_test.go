package stories

import (
	"strings"
	"testing"

	"github.com/storypress/storypress/internal/models"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Council Approves Budget", "council-approves-budget"},
		{"  Spaced   out!  title  ", "spaced-out-title"},
		{"Ampersands & Symbols / Galore", "ampersands-symbols-galore"},
		{"already-slugged-title", "already-slugged-title"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlugifyCapsLength(t *testing.T) {
	got := Slugify(strings.Repeat("verylongword ", 20))
	if len(got) > 80 {
		t.Errorf("slug length = %d, want <= 80", len(got))
	}
	if strings.HasSuffix(got, "-") || strings.HasPrefix(got, "-") {
		t.Errorf("slug has dangling hyphen: %q", got)
	}
}

func TestValidateReady(t *testing.T) {
	ok := &models.Story{Title: "A story", SlideCount: 3}
	if err := ValidateReady(ok); err != nil {
		t.Errorf("valid story rejected: %v", err)
	}

	noTitle := &models.Story{SlideCount: 3}
	if err := ValidateReady(noTitle); err != ErrNotReady {
		t.Errorf("untitled story: got %v, want ErrNotReady", err)
	}

	noSlides := &models.Story{Title: "A story"}
	if err := ValidateReady(noSlides); err != ErrNotReady {
		t.Errorf("zero-slide story: got %v, want ErrNotReady", err)
	}
}
