// Package normalize turns extracted text into dictation units and the
// spoken tokens sent to synthesis.
package normalize

import (
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"golang.org/x/text/language"
)

// Result is the output of a normalization run. Units and Tokens are
// parallel: Tokens[i] is the spoken form of Units[i].
type Result struct {
	Lang   dtypes.Lang
	Units  []dtypes.TextUnit
	Tokens []dtypes.SpokenToken
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithTable installs a punctuation table for lang, replacing any built-in
// table. Entries map single characters to spoken words.
func WithTable(lang dtypes.Lang, t Table) Option {
	return func(n *Normalizer) {
		n.tables[lang] = t
	}
}

// WithLiteralWords sends vocabulary entries to synthesis verbatim instead of
// reading their punctuation aloud.
func WithLiteralWords(literal bool) Option {
	return func(n *Normalizer) {
		n.literalWords = literal
	}
}

// Normalizer converts words and passages into TextUnits. It holds no
// mutable state after construction and is safe for concurrent use.
type Normalizer struct {
	tables       map[dtypes.Lang]Table
	literalWords bool

	tags    []language.Tag
	matcher language.Matcher
}

// New returns a Normalizer with the built-in English and Traditional
// Chinese tables plus any overrides.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{tables: builtinTables()}
	for _, opt := range opts {
		opt(n)
	}

	langs := slices.Sorted(maps.Keys(n.tables))
	n.tags = make([]language.Tag, 0, len(langs))
	for _, l := range langs {
		n.tags = append(n.tags, language.Make(string(l)))
	}
	n.matcher = language.NewMatcher(n.tags)
	return n
}

// ResolveLang maps a detected language code ("en", "en-US", "zh-tw") onto a
// language with a punctuation table.
func (n *Normalizer) ResolveLang(code string) (dtypes.Lang, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return "", &dtypes.UnsupportedLanguageError{Lang: code}
	}
	if _, ok := n.tables[dtypes.Lang(tag.String())]; ok {
		return dtypes.Lang(tag.String()), nil
	}

	_, idx, conf := n.matcher.Match(tag)
	if conf < language.High {
		return "", &dtypes.UnsupportedLanguageError{Lang: code}
	}
	return dtypes.Lang(n.tags[idx].String()), nil
}

// Languages returns the languages this normalizer can read, sorted.
func (n *Normalizer) Languages() []dtypes.Lang {
	return slices.Sorted(maps.Keys(n.tables))
}

// Words creates one word unit per non-blank vocabulary entry.
func (n *Normalizer) Words(words []string, code string) (Result, error) {
	lang, err := n.ResolveLang(code)
	if err != nil {
		return Result{}, err
	}
	table := n.tables[lang]

	res := Result{Lang: lang}
	for _, w := range words {
		text := collapse(w)
		if text == "" {
			continue
		}
		token := text
		if !n.literalWords {
			token = speak(text, table)
		}
		res.add(dtypes.KindWord, text, token)
	}
	if len(res.Units) == 0 {
		return Result{}, dtypes.ErrNoUnits
	}
	return res, nil
}

// Passage splits text into sentence units.
func (n *Normalizer) Passage(text string, code string) (Result, error) {
	lang, err := n.ResolveLang(code)
	if err != nil {
		return Result{}, err
	}
	table := n.tables[lang]

	res := Result{Lang: lang}
	for _, s := range SplitSentences(text) {
		res.add(dtypes.KindSentence, collapse(s), speak(s, table))
	}
	if len(res.Units) == 0 {
		return Result{}, dtypes.ErrNoUnits
	}
	return res, nil
}

// Speak returns the spoken form of text in lang.
func (n *Normalizer) Speak(text string, lang dtypes.Lang) (dtypes.SpokenToken, error) {
	table, ok := n.tables[lang]
	if !ok {
		return "", &dtypes.UnsupportedLanguageError{Lang: string(lang)}
	}
	return dtypes.SpokenToken(speak(text, table)), nil
}

// add appends a unit unless nothing in it can be spoken. Skipped units never
// receive an index.
func (r *Result) add(kind dtypes.UnitKind, text, token string) {
	if token == "" {
		log.Debug("Skipping unit with nothing to speak", "kind", kind, "text", text)
		return
	}
	r.Units = append(r.Units, dtypes.TextUnit{
		Index: len(r.Units),
		Kind:  kind,
		Text:  text,
		Lang:  r.Lang,
	})
	r.Tokens = append(r.Tokens, dtypes.SpokenToken(token))
}

// speak replaces table punctuation with its word, drops any other
// punctuation and collapses whitespace.
func speak(text string, table Table) string {
	var b strings.Builder
	b.Grow(len(text) * 2)
	for _, r := range text {
		if w, ok := table[r]; ok {
			b.WriteByte(' ')
			b.WriteString(w)
			b.WriteByte(' ')
			continue
		}
		if unicode.IsPunct(r) {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return collapse(b.String())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
