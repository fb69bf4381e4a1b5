package intents

import (
	"regexp"
	"strings"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokenize lowercases text and splits it into letter/digit runs, dropping
// punctuation such as the Spanish opening marks.
func Tokenize(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// Phrases tokenizes every phrase, skipping ones that carry no words.
func Phrases(list []string) [][]string {
	out := make([][]string, 0, len(list))
	for _, p := range list {
		if toks := Tokenize(p); len(toks) > 0 {
			out = append(out, toks)
		}
	}
	return out
}

// CountPhrase counts whole-word occurrences of phrase in tokens.
func CountPhrase(tokens, phrase []string) int {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return 0
	}
	n := 0
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		if equalAt(tokens, i, phrase) {
			n++
		}
	}
	return n
}

func ContainsPhrase(tokens, phrase []string) bool {
	return CountPhrase(tokens, phrase) > 0
}

// ContainsAny reports whether any phrase occurs in tokens.
func ContainsAny(tokens []string, phrases [][]string) bool {
	for _, p := range phrases {
		if ContainsPhrase(tokens, p) {
			return true
		}
	}
	return false
}

// HasPrefix reports whether tokens start with phrase.
func HasPrefix(tokens, phrase []string) bool {
	return len(phrase) > 0 && len(phrase) <= len(tokens) && equalAt(tokens, 0, phrase)
}

func equalAt(tokens []string, i int, phrase []string) bool {
	for j, w := range phrase {
		if tokens[i+j] != w {
			return false
		}
	}
	return true
}
