// Package document converts raw eCFR title XML into plain text plus
// chapter-level structure.
//
// Parsing is strictly deterministic: the same input bytes always produce the
// same text, because downstream fingerprints and complexity scores compare
// exact text across runs to detect change.
package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Document is the parsed form of one CFR title.
type Document struct {
	Text      string
	WordCount int
	Chapters  map[string]Chapter
}

// Chapter is one CHAPTER/DIV3 element extracted from a title.
type Chapter struct {
	Text      string
	WordCount int
}

// ParseError reports malformed title XML. The ingestion pipeline treats it as
// a per-title failure, never a run failure.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse title xml: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse extracts plain text and chapter boundaries from raw title XML.
func Parse(raw []byte) (Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return Document{}, &ParseError{Err: err}
	}

	text := collapseText(root)
	doc := Document{
		Text:      text,
		WordCount: countWords(text),
		Chapters:  map[string]Chapter{},
	}

	// eCFR titles mark chapters as CHAPTER in older schemas and DIV3 with
	// TYPE="CHAPTER" in the current one; accept both element names.
	for _, node := range xmlquery.Find(root, "//CHAPTER | //DIV3") {
		id := node.SelectAttr("N")
		if id == "" {
			id = "UNKNOWN"
		}
		chapterText := collapseText(node)
		doc.Chapters[id] = Chapter{
			Text:      chapterText,
			WordCount: countWords(chapterText),
		}
	}

	return doc, nil
}

// collapseText concatenates the character data under node with single-space
// separators, mirroring a strip-and-join of each text segment.
func collapseText(node *xmlquery.Node) string {
	var parts []string
	var walk func(n *xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		if n.Type == xmlquery.TextNode || n.Type == xmlquery.CharDataNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				parts = append(parts, strings.Join(strings.Fields(trimmed), " "))
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return strings.Join(parts, " ")
}

func countWords(text string) int {
	return len(strings.Fields(text))
}
