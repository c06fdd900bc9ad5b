package pipeline

import (
	"strings"
	"testing"
)

func TestComposePromptOrder(t *testing.T) {
	got := ComposePrompt(ReferenceContext(1), "kodak-portra-400", "a quiet street at dawn", true)

	parts := []string{
		"Using the provided image as the visual reference",
		"shot on Kodak Portra 400",
		"a quiet street at dawn",
		realismLockPhrase,
	}

	last := -1
	for _, p := range parts {
		idx := strings.Index(got, p)
		if idx < 0 {
			t.Fatalf("composed prompt missing %q: %s", p, got)
		}
		if idx <= last {
			t.Fatalf("part %q out of order in %q", p, got)
		}
		last = idx
	}
}

func TestComposePromptSkipsEmptyParts(t *testing.T) {
	got := ComposePrompt("", "", "a quiet street at dawn", false)
	if got != "a quiet street at dawn" {
		t.Errorf("got %q", got)
	}

	got = ComposePrompt("", "", "base", true)
	want := "base, " + realismLockPhrase
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFilmStockPhrase(t *testing.T) {
	tests := []struct {
		preset string
		want   string
	}{
		{"", ""},
		{"cinestill-800t", "shot on CineStill 800T, glowing neon halation, cool night tones"},
		{"polaroid-600", "shot on polaroid 600 film stock"},
	}

	for _, tt := range tests {
		if got := FilmStockPhrase(tt.preset); got != tt.want {
			t.Errorf("FilmStockPhrase(%q) = %q, want %q", tt.preset, got, tt.want)
		}
	}
}

func TestReferenceContext(t *testing.T) {
	if got := ReferenceContext(0); got != "" {
		t.Errorf("ReferenceContext(0) = %q, want empty", got)
	}
	if got := ReferenceContext(1); !strings.Contains(got, "provided image") {
		t.Errorf("ReferenceContext(1) = %q", got)
	}
	if got := ReferenceContext(3); !strings.Contains(got, "3 provided images") {
		t.Errorf("ReferenceContext(3) = %q", got)
	}
}
