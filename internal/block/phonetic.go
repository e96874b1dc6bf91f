package block

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Soundex returns the American Soundex code of word, or "" when word has no
// ASCII letters. Other characters are dropped before encoding.
func Soundex(word string) string {
	letters := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, word)
	if letters == "" {
		return ""
	}
	return matchr.Soundex(letters)
}

// phoneticKey encodes the first two tokens of a canonical name.
func phoneticKey(canonical string) string {
	tokens := strings.Fields(canonical)
	if len(tokens) > 2 {
		tokens = tokens[:2]
	}
	codes := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if c := Soundex(t); c != "" {
			codes = append(codes, c)
		}
	}
	return strings.Join(codes, "-")
}
