// Package extract reads the structured result of worksheet OCR.
//
// The OCR model answers with a JSON object, often wrapped in a Markdown code
// fence:
//
//	```json
//	{"language": "en", "vocabulary": ["cat", "dog"], "passage": "I see a cat."}
//	```
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultLanguage is assumed when the extraction names none.
const DefaultLanguage = "en"

// Extraction is a well-formed OCR result. Its content is not checked beyond
// its shape.
type Extraction struct {
	Language   string   `json:"language" yaml:"language"`
	Vocabulary []string `json:"vocabulary" yaml:"vocabulary"`
	Passage    string   `json:"passage" yaml:"passage"`
}

// PartKind names the two parts of a worksheet.
type PartKind string

const (
	PartVocabulary PartKind = "vocabulary"
	PartPassage    PartKind = "passage"
)

// Part is one piece of an extraction that becomes its own track.
type Part struct {
	Kind     PartKind
	Language string
	Words    []string
	Passage  string
}

// Parse decodes raw OCR output.
func Parse(raw []byte) (Extraction, error) {
	body := bytes.TrimSpace(unfence(raw))
	if len(body) == 0 {
		return Extraction{}, &dtypes.MalformedExtractionError{Reason: "empty result"}
	}
	if body[0] != '{' {
		return Extraction{}, &dtypes.MalformedExtractionError{Reason: "result is not a JSON object"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Extraction{}, &dtypes.MalformedExtractionError{Reason: "invalid JSON", Err: err}
	}

	var ex Extraction
	if err := decodeField(fields, "language", &ex.Language); err != nil {
		return Extraction{}, err
	}
	if err := decodeField(fields, "vocabulary", &ex.Vocabulary); err != nil {
		return Extraction{}, err
	}
	if err := decodeField(fields, "passage", &ex.Passage); err != nil {
		return Extraction{}, err
	}

	ex.Language = strings.TrimSpace(ex.Language)
	if ex.Language == "" {
		ex.Language = DefaultLanguage
	}
	if err := ex.Validate(); err != nil {
		return Extraction{}, err
	}
	return ex, nil
}

func decodeField(fields map[string]json.RawMessage, name string, v any) error {
	raw, ok := fields[name]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &dtypes.MalformedExtractionError{Reason: fmt.Sprintf("field %q has the wrong type", name), Err: err}
	}
	return nil
}

// Validate checks that there is something to dictate.
func (e Extraction) Validate() error {
	if len(e.words()) == 0 && strings.TrimSpace(e.Passage) == "" {
		return &dtypes.MalformedExtractionError{Reason: "vocabulary and passage are both empty"}
	}
	return nil
}

// Parts returns the vocabulary part, the passage part, or both, in that
// order.
func (e Extraction) Parts() []Part {
	var parts []Part
	if words := e.words(); len(words) > 0 {
		parts = append(parts, Part{Kind: PartVocabulary, Language: e.Language, Words: words})
	}
	if p := strings.TrimSpace(e.Passage); p != "" {
		parts = append(parts, Part{Kind: PartPassage, Language: e.Language, Passage: p})
	}
	return parts
}

func (e Extraction) words() []string {
	var out []string
	for _, w := range e.Vocabulary {
		if strings.TrimSpace(w) != "" {
			out = append(out, w)
		}
	}
	return out
}

// unfence returns the contents of the first fenced code block in src, or
// src itself when there is none.
func unfence(src []byte) []byte {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var body []byte
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := block.Lines()
		var buf bytes.Buffer
		for i := range lines.Len() {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		body = buf.Bytes()
		return ast.WalkStop, nil
	})
	if body == nil {
		return src
	}
	return body
}
