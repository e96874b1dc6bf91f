// Package normalize canonicalises raw record fields so records from different
// datasets can be compared: names, addresses, states, countries and
// identifiers.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/entity-xref/internal/model"
)

// foldText decomposes, drops combining marks, recomposes with compatibility
// mappings and case-folds. Transformers carry state, so each call builds its
// own chain.
func foldText(s string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn))), s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(norm.NFKC.String(stripped))
}

// Name normalizes a raw entity name. The hint selects the person or
// organization path; EntityUnknown takes the organization path and is
// promoted to EntityOrganization when a legal suffix is found.
//
// Name is idempotent: Name(Name(x).Canonical, hint).Canonical equals
// Name(x, hint).Canonical.
func Name(raw string, hint model.EntityType) model.NormalizedName {
	if hint == "" {
		hint = model.EntityUnknown
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return model.NormalizedName{EntityType: hint}
	}

	s = foldText(s)
	s = strings.ReplaceAll(s, "&", " and ")

	if hint == model.EntityPerson {
		return personName(s)
	}
	return orgName(s, hint)
}

func orgName(s string, hint model.EntityType) model.NormalizedName {
	out := model.NormalizedName{EntityType: hint}

	base, suffixes := extractSuffixes(s)
	if len(suffixes) > 0 {
		out.LegalSuffix = strings.Join(suffixes, " ")
		if hint == model.EntityUnknown {
			out.EntityType = model.EntityOrganization
		}
	}

	base = stripLeadingNoise(base)
	out.Canonical = collapse(stripPunct(base))
	if out.Canonical == "" {
		// Name was nothing but punctuation.
		out.LegalSuffix = ""
	}
	return out
}

// extractSuffixes peels stacked legal suffixes off the end of s until none
// is left ("Acme Corp LLC" carries two). Suffixes are returned in reading
// order. A suffix that would leave an empty base is not removed.
func extractSuffixes(s string) (string, []string) {
	var found []string
	for {
		matched := false
		for _, rule := range legalSuffixRules {
			loc := rule.re.FindStringIndex(s)
			if loc == nil || loc[0] == len(s) {
				continue
			}
			base := s[:loc[0]]
			if strings.TrimFunc(base, isSep) == "" {
				continue
			}
			found = append([]string{rule.canonical}, found...)
			s = base
			matched = true
			break
		}
		if !matched {
			break
		}
	}
	return s, found
}

func stripLeadingNoise(s string) string {
	tokens := strings.Fields(s)
	i := 0
	for i < len(tokens)-1 && orgNoiseWords[strings.TrimFunc(tokens[i], isSep)] {
		i++
	}
	return strings.Join(tokens[i:], " ")
}

// personName handles "Last, First Middle" reordering, titles, generational
// and professional suffixes, and nickname alternates.
func personName(s string) model.NormalizedName {
	out := model.NormalizedName{EntityType: model.EntityPerson}

	var tokens []string
	if last, rest, ok := strings.Cut(s, ","); ok && strings.TrimFunc(rest, isSep) != "" {
		// "smith, john, jr" keeps jr at the end once reordered.
		restTokens := tokenize(strings.ReplaceAll(rest, ",", " "))
		tokens = append(restTokens, tokenize(last)...)
		tokens = moveSuffixesToEnd(tokens)
	} else {
		tokens = tokenize(strings.ReplaceAll(s, ",", " "))
	}

	for len(tokens) > 1 && personTitles[tokens[0]] {
		out.Honorifics = append(out.Honorifics, tokens[0])
		tokens = tokens[1:]
	}
	var trailing []string
	for len(tokens) > 1 && personSuffixes[tokens[len(tokens)-1]] {
		trailing = append([]string{tokens[len(tokens)-1]}, trailing...)
		tokens = tokens[:len(tokens)-1]
	}
	out.Honorifics = append(out.Honorifics, trailing...)

	out.Canonical = strings.Join(tokens, " ")
	if len(tokens) > 0 {
		if full, ok := nicknames[tokens[0]]; ok {
			alt := append([]string{full}, tokens[1:]...)
			out.Alternates = []string{strings.Join(alt, " ")}
		}
	}
	return out
}

func moveSuffixesToEnd(tokens []string) []string {
	var names, sfx []string
	for _, t := range tokens {
		if personSuffixes[t] && len(tokens) > 1 {
			sfx = append(sfx, t)
			continue
		}
		names = append(names, t)
	}
	if len(names) == 0 {
		return tokens
	}
	return append(names, sfx...)
}

func tokenize(s string) []string {
	return strings.Fields(stripPunct(s))
}

// stripPunct deletes apostrophes and periods, keeps hyphens that join two
// alphanumerics, and turns every other punctuation or symbol into a space.
func stripPunct(s string) string {
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range rs {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			b.WriteRune(r)
			continue
		}
		switch r {
		case '\'', '’', '‘', '.', '`':
			continue
		case '-':
			if i > 0 && i < len(rs)-1 && isAlnum(rs[i-1]) && isAlnum(rs[i+1]) {
				b.WriteRune(r)
				continue
			}
		}
		b.WriteRune(' ')
	}
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isSep(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}
