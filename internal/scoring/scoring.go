// Package scoring computes deterministic content metrics over regulation
// text: word count, content fingerprint, and the regulatory complexity score.
package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Metrics is the scored form of one agency's concatenated regulation text.
type Metrics struct {
	WordCount   int
	Fingerprint string
	Complexity  float64
}

// Engine scores text against a compiled lexicon. Engines are immutable after
// construction and safe for concurrent use.
type Engine struct {
	lex compiledLexicon
}

// NewEngine compiles the lexicon into an Engine.
func NewEngine(lex Lexicon) (*Engine, error) {
	compiled, err := compileLexicon(lex)
	if err != nil {
		return nil, fmt.Errorf("compile lexicon %s: %w", lex.Version, err)
	}
	return &Engine{lex: compiled}, nil
}

// LexiconVersion reports the version of the lexicon this engine scores with.
func (e *Engine) LexiconVersion() string {
	return e.lex.version
}

// Score computes all metrics for the given plain text. It is a pure
// function: identical text always yields bit-identical Metrics.
func (e *Engine) Score(text string) Metrics {
	return Metrics{
		WordCount:   len(strings.Fields(text)),
		Fingerprint: Fingerprint(text),
		Complexity:  e.Complexity(text),
	}
}

// Complexity computes the regulatory complexity score.
//
// Each term class is counted, normalized to occurrences per 1000 words, and
// the four normalized frequencies are combined with fixed weights
// (obligation 0.40, cross-reference 0.25, enforcement 0.20, conditional
// 0.15). Empty text scores 0. The result is rounded to two decimals so
// stored scores compare exactly across runs.
func (e *Engine) Complexity(text string) float64 {
	totalWords := len(strings.Fields(text))
	if totalWords == 0 {
		return 0.0
	}
	lower := strings.ToLower(text)

	obligation := len(e.lex.obligation.FindAllStringIndex(lower, -1))
	crossRefs := len(e.lex.crossRef.FindAllStringIndex(text, -1))
	enforcement := len(e.lex.enforcement.FindAllStringIndex(lower, -1))
	conditional := len(e.lex.conditional.FindAllStringIndex(lower, -1))

	perThousand := 1000.0 / float64(totalWords)
	score := float64(obligation)*perThousand*weightObligation +
		float64(crossRefs)*perThousand*weightCrossRef +
		float64(enforcement)*perThousand*weightEnforcement +
		float64(conditional)*perThousand*weightConditional

	return math.Round(score*100) / 100
}

// Fingerprint returns the SHA-256 hex digest of the text. It is used solely
// for equality comparison between snapshots.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// AggregateFingerprint combines per-title checksums into one agency-level
// fingerprint: the checksums are sorted, concatenated, hashed, and truncated
// to 16 hex characters. Sorting makes the result independent of title fetch
// completion order.
func AggregateFingerprint(checksums []string) string {
	sorted := append([]string(nil), checksums...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "")))
	return hex.EncodeToString(sum[:])[:16]
}
