package scoring

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultLexicon())
	require.NoError(t, err)
	return engine
}

// plainWords builds n filler tokens, none of which belong to any lexicon
// class.
func plainWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("token%d", i)
	}
	return strings.Join(words, " ")
}

func TestScoreDeterministic(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)

	text := "The Administrator shall assess a penalty under § 19.4 unless waived."
	first := engine.Score(text)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, engine.Score(text))
	}
}

func TestScorePlainTextHasZeroComplexity(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)

	metrics := engine.Score(plainWords(200))
	require.Equal(t, 200, metrics.WordCount)
	require.Equal(t, 0.0, metrics.Complexity)
	require.Len(t, metrics.Fingerprint, 64)
}

func TestScoreEmptyText(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)

	metrics := engine.Score("")
	require.Equal(t, 0, metrics.WordCount)
	require.Equal(t, 0.0, metrics.Complexity)
}

func TestComplexityWeightedCombination(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)

	// 10 tokens: 3 obligation, 1 cross-reference, 1 enforcement,
	// 1 conditional. Frequencies are per 1000 words:
	// 300*0.40 + 100*0.25 + 100*0.20 + 100*0.15 = 180.
	text := "shall must may unless penalty § one two three four"
	require.Equal(t, 180.0, engine.Complexity(text))
}

func TestComplexityCaseInsensitiveForWordClasses(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)

	lower := "shall " + plainWords(9)
	upper := "SHALL " + plainWords(9)
	require.Equal(t, engine.Complexity(lower), engine.Complexity(upper))
}

func TestComplexityCrossRefWordBoundary(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)

	// "cfrlike" must not count as a CFR citation.
	require.Equal(t, 0.0, engine.Complexity("cfrlike "+plainWords(9)))
	require.Greater(t, engine.Complexity("cfr "+plainWords(9)), 0.0)
}

func TestFingerprintEqualityTracksText(t *testing.T) {
	t.Parallel()

	require.Equal(t, Fingerprint("same text"), Fingerprint("same text"))
	require.NotEqual(t, Fingerprint("same text"), Fingerprint("same  text"))
}

func TestAggregateFingerprintOrderInsensitive(t *testing.T) {
	t.Parallel()

	a := Fingerprint("title one")
	b := Fingerprint("title two")
	forward := AggregateFingerprint([]string{a, b})
	reversed := AggregateFingerprint([]string{b, a})
	require.Equal(t, forward, reversed)
	require.Len(t, forward, 16)
}

func TestAggregateFingerprintDiffersOnContent(t *testing.T) {
	t.Parallel()

	first := AggregateFingerprint([]string{Fingerprint("title one")})
	second := AggregateFingerprint([]string{Fingerprint("title one changed")})
	require.NotEqual(t, first, second)
}

func TestNewEngineRejectsEmptyClass(t *testing.T) {
	t.Parallel()

	lex := DefaultLexicon()
	lex.Enforcement = nil
	_, err := NewEngine(lex)
	require.Error(t, err)
}

func TestLexiconVersionExposed(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	require.Equal(t, "v1", engine.LexiconVersion())
}
