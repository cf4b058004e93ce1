package scoring

import (
	"fmt"
	"regexp"
	"strings"
)

// Lexicon defines the term classes behind the complexity score. The lexicon
// is versioned configuration data: scores are only comparable across runs
// that used the same lexicon version, so any change to class membership must
// bump Version and is a breaking change to the metric.
type Lexicon struct {
	Version string

	// Obligation holds modal/obligation terms, matched as whole words.
	Obligation []string
	// CrossRef holds cross-reference markers, matched literally except for
	// bare "cfr" which is matched as a whole word.
	CrossRef []string
	// Enforcement holds enforcement/legal terms, matched as whole words.
	Enforcement []string
	// Conditional holds conditional/exception terms, matched as whole words.
	Conditional []string
}

// Class weights of the composite score. Fixed: changing them, like changing
// the lexicon, invalidates historical comparability.
const (
	weightObligation  = 0.40
	weightCrossRef    = 0.25
	weightEnforcement = 0.20
	weightConditional = 0.15
)

// DefaultLexicon returns lexicon v1, the original class membership the
// stored snapshot history was scored with.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Version:     "v1",
		Obligation:  []string{"shall", "must", "may", "should", "required"},
		CrossRef:    []string{"§", "CFR", "cfr"},
		Enforcement: []string{"penalty", "violation", "compliance", "fine", "sanction"},
		Conditional: []string{"except", "unless", "provided that", "notwithstanding"},
	}
}

// compiledLexicon holds the per-class matchers built once per Engine.
type compiledLexicon struct {
	version     string
	obligation  *regexp.Regexp
	crossRef    *regexp.Regexp
	enforcement *regexp.Regexp
	conditional *regexp.Regexp
}

func compileLexicon(lex Lexicon) (compiledLexicon, error) {
	obligation, err := compileWordClass(lex.Obligation)
	if err != nil {
		return compiledLexicon{}, fmt.Errorf("obligation class: %w", err)
	}
	crossRef, err := compileCrossRefClass(lex.CrossRef)
	if err != nil {
		return compiledLexicon{}, fmt.Errorf("cross-reference class: %w", err)
	}
	enforcement, err := compileWordClass(lex.Enforcement)
	if err != nil {
		return compiledLexicon{}, fmt.Errorf("enforcement class: %w", err)
	}
	conditional, err := compileWordClass(lex.Conditional)
	if err != nil {
		return compiledLexicon{}, fmt.Errorf("conditional class: %w", err)
	}
	return compiledLexicon{
		version:     lex.Version,
		obligation:  obligation,
		crossRef:    crossRef,
		enforcement: enforcement,
		conditional: conditional,
	}, nil
}

// compileWordClass builds a whole-word, lowercase matcher for the terms.
func compileWordClass(terms []string) (*regexp.Regexp, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("empty term list")
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(t))
	}
	pattern := `\b(` + strings.Join(quoted, "|") + `)\b`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", pattern, err)
	}
	return re, nil
}

// compileCrossRefClass builds a matcher over the original, case-preserving
// text. Symbol markers match anywhere; the lowercase "cfr" alias matches only
// as a whole word so ordinary prose does not count.
func compileCrossRefClass(terms []string) (*regexp.Regexp, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("empty term list")
	}
	alts := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted := regexp.QuoteMeta(t)
		if t == strings.ToLower(t) && isWordTerm(t) {
			quoted = `\b` + quoted + `\b`
		}
		alts = append(alts, quoted)
	}
	pattern := `(` + strings.Join(alts, "|") + `)`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", pattern, err)
	}
	return re, nil
}

func isWordTerm(t string) bool {
	for _, r := range t {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return t != ""
}
