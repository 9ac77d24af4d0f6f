package catalog

import "strings"

// stopWords never count toward the words two titles share.
var stopWords = []string{"a", "of", "the"}

// Tokens are the title words of a file or game name. Release tags such as
// "(USA)" or "[!]" are not title words.
type Tokens struct {
	words []string
}

// Tokenize drops everything after the last '.', splits on whitespace and
// discards tokens wrapped in parentheses or square brackets.
func Tokenize(s string) Tokens {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	fields := strings.Fields(s)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if isTag(f) {
			continue
		}
		words = append(words, f)
	}
	return Tokens{words: words}
}

func isTag(token string) bool {
	if len(token) < 2 {
		return false
	}
	first, last := token[0], token[len(token)-1]
	return first == '(' && last == ')' || first == '[' && last == ']'
}

// isStopWord matches exactly, like title words: "The" is a title word.
func isStopWord(word string) bool {
	for _, s := range stopWords {
		if word == s {
			return true
		}
	}
	return false
}

// Words returns the title words in order.
func (t Tokens) Words() []string {
	words := make([]string, len(t.words))
	copy(words, t.words)
	return words
}

// Len returns the number of title words, stop words included.
func (t Tokens) Len() int {
	return len(t.words)
}

// SharedWith counts the words of t, other than stop words, that also appear
// in other. Matching is case-sensitive.
func (t Tokens) SharedWith(other Tokens) int {
	n := 0
	for _, w := range t.words {
		if isStopWord(w) {
			continue
		}
		for _, o := range other.words {
			if w == o {
				n++
				break
			}
		}
	}
	return n
}
