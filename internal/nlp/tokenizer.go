// Package nlp implements the content-word tokenizer used to count skills.
// Text is part-of-speech tagged with prose; nouns, proper nouns and verbs
// survive, everything else (numbers, punctuation, stop words) is dropped,
// and the survivors are lemmatized and lower-cased.
package nlp

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

// droppedLemma is excluded from results; "data" lemmatizes to it and would
// otherwise top every table.
const droppedLemma = "datum"

// Tokenizer satisfies skills.Tokenizer.
type Tokenizer struct {
	logger *slog.Logger
}

func NewTokenizer(logger *slog.Logger) *Tokenizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tokenizer{logger: logger.With("component", "tokenizer")}
}

// Tokenize tags text and returns the normalized content tokens in text order.
// A tagging failure yields no tokens.
func (t *Tokenizer) Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		t.logger.Warn("tagging failed", "error", err)
		return nil
	}
	return Filter(doc.Tokens())
}

// Filter applies the content-word rules to already-tagged tokens.
func Filter(tokens []prose.Token) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		word := strings.ToLower(strings.TrimSpace(tok.Text))
		if word == "" || !isContentTag(tok.Tag) {
			continue
		}
		if isPunct(word) || likeNumber(word) || IsStopWord(word) {
			continue
		}
		lemma := Lemmatize(word, tok.Tag)
		if lemma == "" || lemma == droppedLemma || IsStopWord(lemma) {
			continue
		}
		out = append(out, lemma)
	}
	return out
}

// isContentTag accepts Penn Treebank noun, proper noun and verb tags.
func isContentTag(tag string) bool {
	return strings.HasPrefix(tag, "NN") || strings.HasPrefix(tag, "VB")
}

func isPunct(word string) bool {
	for _, r := range word {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}

// likeNumber reports digit strings, decimals, ordinals like 1st and spelled
// numbers.
func likeNumber(word string) bool {
	if _, ok := numberWords[word]; ok {
		return true
	}
	digits := 0
	for _, r := range word {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '.' || r == ',' || r == '-' || r == '+' || r == '%':
		default:
			if digits > 0 && isOrdinalSuffix(word) {
				return true
			}
			return false
		}
	}
	return digits > 0
}

func isOrdinalSuffix(word string) bool {
	for _, s := range []string{"st", "nd", "rd", "th"} {
		if strings.HasSuffix(word, s) {
			head := word[:len(word)-len(s)]
			if head == "" {
				return false
			}
			for _, r := range head {
				if !unicode.IsDigit(r) {
					return false
				}
			}
			return true
		}
	}
	return false
}

var numberWords = map[string]struct{}{
	"zero": {}, "one": {}, "two": {}, "three": {}, "four": {}, "five": {},
	"six": {}, "seven": {}, "eight": {}, "nine": {}, "ten": {},
	"eleven": {}, "twelve": {}, "thirteen": {}, "fourteen": {}, "fifteen": {},
	"sixteen": {}, "seventeen": {}, "eighteen": {}, "nineteen": {}, "twenty": {},
	"thirty": {}, "forty": {}, "fifty": {}, "sixty": {}, "seventy": {},
	"eighty": {}, "ninety": {}, "hundred": {}, "thousand": {}, "million": {},
	"billion": {},
}
