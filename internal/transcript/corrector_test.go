package transcript_test

import (
	"strings"
	"testing"

	"github.com/hfyydd/Open-AutoGLM/internal/transcript"
)

// stubMatcher maps exact lowercase phrases to entities, so tests control
// matching behavior independent of phonetic scoring.
type stubMatcher struct {
	matches map[string]string
}

func (s *stubMatcher) Match(word string, _ []string) (string, float64, bool) {
	if entity, ok := s.matches[strings.ToLower(word)]; ok {
		return entity, 0.9, true
	}
	return word, 0, false
}

func TestCorrectorSubstitutesEntities(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(
		[]string{"WeChat", "Google Maps"},
		transcript.WithMatcher(&stubMatcher{matches: map[string]string{
			"way chat": "WeChat",
		}}),
	)

	got, corrections := c.Correct("open way chat and send hi")
	if want := "open WeChat and send hi"; got != want {
		t.Errorf("Correct() = %q, want %q", got, want)
	}
	if len(corrections) != 1 {
		t.Fatalf("corrections = %d, want 1", len(corrections))
	}
	if corrections[0].Heard != "way chat" || corrections[0].Applied != "WeChat" {
		t.Errorf("correction = %+v", corrections[0])
	}
}

func TestCorrectorLongestWindowWins(t *testing.T) {
	t.Parallel()

	// "google" alone and "google mapps" both match; the two-word window
	// must be preferred.
	c := transcript.NewCorrector(
		[]string{"Google Maps", "Google"},
		transcript.WithMatcher(&stubMatcher{matches: map[string]string{
			"google":       "Google",
			"google mapps": "Google Maps",
		}}),
	)

	got, corrections := c.Correct("navigate with google mapps")
	if want := "navigate with Google Maps"; got != want {
		t.Errorf("Correct() = %q, want %q", got, want)
	}
	if len(corrections) != 1 {
		t.Fatalf("corrections = %d, want 1", len(corrections))
	}
}

func TestCorrectorCanonicalCasingNotReported(t *testing.T) {
	t.Parallel()

	// A case-only normalisation is applied to the text but not reported
	// as a correction.
	c := transcript.NewCorrector(
		[]string{"Taobao"},
		transcript.WithMatcher(&stubMatcher{matches: map[string]string{
			"taobao": "Taobao",
		}}),
	)

	got, corrections := c.Correct("open taobao")
	if want := "open Taobao"; got != want {
		t.Errorf("Correct() = %q, want %q", got, want)
	}
	if len(corrections) != 0 {
		t.Errorf("corrections = %v, want none for case-only change", corrections)
	}
}

func TestCorrectorNoEntities(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(nil)
	got, corrections := c.Correct("open way chat")
	if got != "open way chat" {
		t.Errorf("Correct() = %q, want input unchanged", got)
	}
	if corrections != nil {
		t.Errorf("corrections = %v, want nil", corrections)
	}
}

func TestCorrectorEmptyText(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector([]string{"WeChat"})
	if got, _ := c.Correct(""); got != "" {
		t.Errorf("Correct(\"\") = %q, want empty", got)
	}
	if got, _ := c.Correct("   "); got != "   " {
		t.Errorf("Correct(blank) = %q, want input unchanged", got)
	}
}

func TestCorrectorDefaultPhoneticMatcher(t *testing.T) {
	t.Parallel()

	// End-to-end with the real phonetic matcher.
	c := transcript.NewCorrector([]string{"WeChat", "Taobao"})
	got, corrections := c.Correct("open way chat")
	if want := "open WeChat"; got != want {
		t.Errorf("Correct() = %q, want %q", got, want)
	}
	if len(corrections) != 1 {
		t.Fatalf("corrections = %d, want 1", len(corrections))
	}
	if corrections[0].Confidence <= 0 {
		t.Errorf("Confidence = %f, want > 0", corrections[0].Confidence)
	}
}
