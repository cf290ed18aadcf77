package phonetic_test

import (
	"testing"

	"github.com/hfyydd/Open-AutoGLM/internal/transcript/phonetic"
)

func TestMatcher_SingleWordMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	// "way chat" is a two-word n-gram that should phonetically match
	// "WeChat": the space-stripped forms are a close Jaro-Winkler pair
	// and the leading phoneme clusters overlap.
	entities := []string{"WeChat", "Taobao", "Google Maps"}

	corrected, conf, matched := m.Match("way chat", entities)
	if !matched {
		t.Fatalf("Match(%q, entities): matched=false, want true", "way chat")
	}
	if corrected != "WeChat" {
		t.Errorf("Match(%q): corrected=%q, want %q", "way chat", corrected, "WeChat")
	}
	if conf < 0.7 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.7", "way chat", conf)
	}
}

func TestMatcher_MultiWordEntityMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	entities := []string{"Google Maps", "WeChat", "Taobao"}

	corrected, conf, matched := m.Match("google mapps", entities)
	if !matched {
		t.Fatalf("Match(%q, entities): matched=false, want true", "google mapps")
	}
	if corrected != "Google Maps" {
		t.Errorf("Match(%q): corrected=%q, want %q", "google mapps", corrected, "Google Maps")
	}
	if conf < 0.7 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.7", "google mapps", conf)
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	entities := []string{"WeChat", "Taobao"}

	corrected, conf, matched := m.Match("hello", entities)
	if matched {
		t.Fatalf("Match(%q, entities): matched=true, want false", "hello")
	}
	if corrected != "hello" {
		t.Errorf("Match(%q): corrected=%q, want original word %q", "hello", corrected, "hello")
	}
	if conf != 0 {
		t.Errorf("Match(%q): confidence=%f, want 0", "hello", conf)
	}
}

func TestMatcher_CaseInsensitivity(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	entities := []string{"Taobao"}

	corrected, _, matched := m.Match("TAOBAO", entities)
	if !matched {
		t.Fatalf("Match(%q, entities): matched=false, want true", "TAOBAO")
	}
	// Should return the original entity casing.
	if corrected != "Taobao" {
		t.Errorf("Match(%q): corrected=%q, want %q", "TAOBAO", corrected, "Taobao")
	}
}

func TestMatcher_ExactMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	entities := []string{"Taobao", "WeChat"}

	corrected, conf, matched := m.Match("taobao", entities)
	if !matched {
		t.Fatalf("Match(%q, entities): matched=false, want true", "taobao")
	}
	if corrected != "Taobao" {
		t.Errorf("Match(%q): corrected=%q, want %q", "taobao", corrected, "Taobao")
	}
	if conf < 0.9 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.9 for near-exact match", "taobao", conf)
	}
}

func TestMatcher_PhoneticThresholdFiltering(t *testing.T) {
	t.Parallel()

	// Set a very high threshold so near-matches are rejected.
	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.99),
		phonetic.WithFuzzyThreshold(0.99),
	)
	entities := []string{"WeChat"}

	_, _, matched := m.Match("way chat", entities)
	if matched {
		t.Fatal("Match with threshold=0.99 should reject near-matches, got matched=true")
	}
}

func TestMatcher_EmptyEntities(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, conf, matched := m.Match("wechat", nil)
	if matched {
		t.Fatal("Match with nil entities should return matched=false")
	}
	if corrected != "wechat" {
		t.Errorf("corrected=%q, want original", corrected)
	}
	if conf != 0 {
		t.Errorf("conf=%f, want 0", conf)
	}
}

func TestMatcher_EmptyWord(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, conf, matched := m.Match("", []string{"WeChat"})
	if matched {
		t.Fatal("Match with empty word should return matched=false")
	}
	if corrected != "" {
		t.Errorf("corrected=%q, want empty string", corrected)
	}
	if conf != 0 {
		t.Errorf("conf=%f, want 0", conf)
	}
}

func TestWithOptions(t *testing.T) {
	t.Parallel()

	// Verify that options are applied without panicking.
	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.75),
		phonetic.WithFuzzyThreshold(0.90),
	)
	if m == nil {
		t.Fatal("New returned nil")
	}
}
