// Package transcript corrects recognition errors in transcribed task text
// before it is handed to the agent.
//
// Speech recognition frequently mangles the proper nouns voice tasks revolve
// around: app names, contact names, and place names. The [Corrector] aligns
// whitespace-separated n-grams of the transcript against a configured entity
// vocabulary using the phonetic matcher, replacing close mishearings with
// the canonical entity spelling. Each substitution is reported as a
// [Correction] so callers can log or display what changed.
package transcript

import (
	"strings"

	"github.com/hfyydd/Open-AutoGLM/internal/transcript/phonetic"
)

// Correction captures a single substitution made by the corrector.
type Correction struct {
	// Heard is the phrase as produced by the transcription provider.
	Heard string

	// Applied is the canonical entity name that replaced it.
	Applied string

	// Confidence is the matcher's similarity score in [0.0, 1.0].
	Confidence float64
}

// Matcher resolves a word or phrase to a known entity name. Implemented by
// [phonetic.Matcher].
type Matcher interface {
	Match(word string, entities []string) (corrected string, confidence float64, matched bool)
}

// Compile-time check against the concrete matcher.
var _ Matcher = (*phonetic.Matcher)(nil)

// Corrector applies entity-vocabulary corrections to transcript text.
// It is read-only after construction and safe for concurrent use.
type Corrector struct {
	matcher  Matcher
	entities []string
	maxWords int
}

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithMatcher replaces the default phonetic matcher.
func WithMatcher(m Matcher) Option {
	return func(c *Corrector) {
		if m != nil {
			c.matcher = m
		}
	}
}

// NewCorrector constructs a Corrector over the given entity vocabulary.
// An empty vocabulary yields a corrector that passes text through unchanged.
func NewCorrector(entities []string, opts ...Option) *Corrector {
	// A single-word name is often transcribed as two words ("way chat"
	// for "WeChat"), so the window never shrinks below two tokens.
	maxWords := maxWordCount(entities)
	if maxWords < 2 {
		maxWords = 2
	}
	c := &Corrector{
		matcher:  phonetic.New(),
		entities: entities,
		maxWords: maxWords,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct aligns text against the entity vocabulary and returns the
// corrected text plus the list of substitutions applied. When nothing
// matches, the text is returned unchanged and the slice is empty.
//
// The algorithm:
//  1. Tokenise the text into whitespace-separated words.
//  2. At each token position, try n-gram windows from the longest entity
//     word count down to 1. The longest matching window wins so multi-word
//     entities take precedence over partial single-word matches.
//  3. Emit matched entity tokens (or the unmatched token) and advance the
//     cursor by the number of tokens consumed.
func (c *Corrector) Correct(text string) (string, []Correction) {
	if len(c.entities) == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	var output []string
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		// Clamp window size to remaining tokens.
		maxN := c.maxWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			entity, conf, ok := c.matcher.Match(window, c.entities)
			if !ok {
				continue
			}

			output = append(output, strings.Fields(entity)...)
			if !strings.EqualFold(entity, window) {
				corrections = append(corrections, Correction{
					Heard:      window,
					Applied:    entity,
					Confidence: conf,
				})
			}
			i += n
			matched = true
			break
		}

		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	return strings.Join(output, " "), corrections
}

// maxWordCount returns the maximum number of whitespace-separated words in
// any entity string. Returns 1 when entities is empty.
func maxWordCount(entities []string) int {
	max := 1
	for _, e := range entities {
		if n := len(strings.Fields(e)); n > max {
			max = n
		}
	}
	return max
}
