package normalize

import (
	"strings"
	"unicode"
)

// Abbreviations whose trailing period does not end a sentence.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"st": true, "jr": true, "sr": true, "vs": true, "mt": true,
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func isFullWidthTerminator(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

// isCloser reports characters that stay with the sentence they close.
func isCloser(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', ')', '）', '」', '』':
		return true
	}
	return false
}

// SplitSentences splits a passage into sentences, keeping terminal
// punctuation and closing quotes attached. ASCII terminators only end a
// sentence before whitespace or the end of the text; full-width ones end it
// immediately. Decimals, ellipses and common title abbreviations never
// split.
func SplitSentences(text string) []string {
	runes := []rune(text)

	var sentences []string
	start := 0
	emit := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}

		j := i
		fullWidth := false
		dots := 0
		for j < len(runes) && isTerminator(runes[j]) {
			if isFullWidthTerminator(runes[j]) {
				fullWidth = true
			}
			if runes[j] == '.' {
				dots++
			}
			j++
		}
		for j < len(runes) && isCloser(runes[j]) {
			j++
		}

		atEnd := j == len(runes)
		switch {
		case atEnd:
			emit(j)
		case fullWidth:
			emit(j)
		case !unicode.IsSpace(runes[j]):
			// 3.14, e.g.
		case dots > 1 && j-i == dots:
			// ellipsis
		case dots == 1 && j-i == 1 && abbreviations[strings.ToLower(lastWord(runes[start:i]))]:
			// Mr. Smith
		default:
			emit(j)
		}
		i = j - 1
	}
	emit(len(runes))
	return sentences
}

func lastWord(runes []rune) string {
	end := len(runes)
	begin := end
	for begin > 0 && unicode.IsLetter(runes[begin-1]) {
		begin--
	}
	return string(runes[begin:end])
}
