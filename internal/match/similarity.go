package match

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Jaro returns the Jaro similarity of a and b, compared rune by rune.
func Jaro(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	matchDist := max(len(ra), len(rb))/2 - 1
	if matchDist < 0 {
		matchDist = 0
	}

	aMatches := make([]bool, len(ra))
	bMatches := make([]bool, len(rb))
	matches := 0
	for i := range ra {
		start := max(0, i-matchDist)
		end := min(len(rb), i+matchDist+1)
		for j := start; j < end; j++ {
			if bMatches[j] || ra[i] != rb[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0.0
	}

	transpositions := 0
	k := 0
	for i := range ra {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if ra[i] != rb[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2
	return (m/float64(len(ra)) + m/float64(len(rb)) + (m-t)/m) / 3
}

// JaroWinkler boosts Jaro by up to four characters of common prefix.
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}
	jaro := Jaro(a, b)

	ra, rb := []rune(a), []rune(b)
	prefixLen := 0
	for i := 0; i < len(ra) && i < len(rb) && i < 4; i++ {
		if ra[i] != rb[i] {
			break
		}
		prefixLen++
	}
	return jaro + float64(prefixLen)*0.1*(1.0-jaro)
}

// TokenSortJaroWinkler compares a and b after sorting their tokens, so word
// order does not lower the score ("apple inc" vs "inc apple").
func TokenSortJaroWinkler(a, b string) float64 {
	return JaroWinkler(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// EditSimilarity is the Levenshtein distance of a and b normalized to
// [0, 1] by the longer rune length.
func EditSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// UpperBound is a cheap ceiling on JaroWinkler, TokenSortJaroWinkler and
// EditSimilarity computed from shared character counts. Jaro matches and
// edit alignments only pair equal characters, so the multiset overlap bounds
// all three.
func UpperBound(a, b string) float64 {
	if a == b {
		return 1.0
	}
	counts := make(map[rune]int)
	la, lb := 0, 0
	for _, r := range a {
		counts[r]++
		la++
	}
	common := 0
	for _, r := range b {
		lb++
		if counts[r] > 0 {
			counts[r]--
			common++
		}
	}
	if la == 0 || lb == 0 || common == 0 {
		return 0.0
	}
	c := float64(common)
	jaro := (c/float64(la) + c/float64(lb) + 1) / 3
	return min(1.0, jaro+0.4*(1-jaro))
}

// NameSimilarity returns the best similarity over every pair of name forms
// (canonical and alternates), taking the largest of plain and token-sorted
// Jaro-Winkler and normalized edit similarity. Form pairs whose UpperBound is below floor are not computed;
// the result is only meaningful when it is >= floor.
func NameSimilarity(a, b []string, floor float64) float64 {
	best := 0.0
	for _, fa := range a {
		for _, fb := range b {
			if fa == "" || fb == "" {
				continue
			}
			if fa == fb {
				return 1.0
			}
			if UpperBound(fa, fb) < floor {
				continue
			}
			best = max(best, JaroWinkler(fa, fb), TokenSortJaroWinkler(fa, fb), EditSimilarity(fa, fb))
		}
	}
	return best
}
