package intent

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases, strips accents, trims surrounding punctuation and collapses
// whitespace so "  Dúvidas! " and "duvidas" compare equal.
func Fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, text)
	if err != nil {
		stripped = text
	}
	stripped = strings.ToLower(stripped)
	stripped = strings.TrimFunc(stripped, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	return strings.Join(strings.Fields(stripped), " ")
}

// containsPhrase reports whether phrase occurs in folded text on word
// boundaries.
func containsPhrase(folded, phrase string) bool {
	if phrase == "" {
		return false
	}
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	haystack := " " + strings.Join(words, " ") + " "
	return strings.Contains(haystack, " "+phrase+" ")
}
