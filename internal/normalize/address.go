package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/sells-group/entity-xref/internal/model"
)

var zipRe = regexp.MustCompile(`^(\d{5})(?:-?\d{4})?$`)

// Address normalizes a free-text street address: upper-cases, strips
// punctuation, abbreviates directionals and street types, and replaces a
// trailing state name with its USPS code. The state and 5-digit ZIP are
// split out when they can be found at the tail.
func Address(raw string) model.NormalizedAddress {
	s := strings.TrimSpace(raw)
	if s == "" {
		return model.NormalizedAddress{}
	}
	s = strings.ToUpper(foldText(s))
	s = strings.ReplaceAll(s, "#", " # ")

	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '#')
	})
	for i, t := range tokens {
		tokens[i] = strings.Trim(t, "-")
	}
	tokens = compact(tokens)
	if len(tokens) == 0 {
		return model.NormalizedAddress{}
	}

	var out model.NormalizedAddress

	// ZIP sits at the very end when present.
	if m := zipRe.FindStringSubmatch(tokens[len(tokens)-1]); m != nil && len(tokens) > 1 {
		out.ZIP = m[1]
		tokens[len(tokens)-1] = m[1]
	}

	// State is the phrase right before the ZIP, or the tail when no ZIP.
	end := len(tokens)
	if out.ZIP != "" {
		end--
	}
	if code, n := tailState(tokens[:end]); n > 0 {
		out.State = code
		tokens = append(append(append([]string{}, tokens[:end-n]...), code), tokens[end:]...)
		end = end - n + 1
		for i := 0; i < end-1; i++ {
			tokens[i] = abbreviate(tokens[i])
		}
	} else {
		for i := 0; i < end; i++ {
			tokens[i] = abbreviate(tokens[i])
		}
	}

	out.Line = strings.Join(rewritePhrases(tokens), " ")
	return out
}

// tailState looks for a state name or code ending tokens and returns the
// USPS code and how many tokens it spans. A leading street number keeps a
// one-token address from being read as a state.
func tailState(tokens []string) (string, int) {
	for n := 3; n >= 1; n-- {
		if len(tokens) <= n {
			continue
		}
		phrase := strings.Join(tokens[len(tokens)-n:], " ")
		if code, ok := stateNames[phrase]; ok {
			return code, n
		}
		if n == 1 && stateCodes[phrase] {
			return phrase, 1
		}
	}
	return "", 0
}

func abbreviate(tok string) string {
	if d, ok := directionals[tok]; ok {
		return d
	}
	if st, ok := streetTypes[tok]; ok {
		return st
	}
	return tok
}

func rewritePhrases(tokens []string) []string {
	for _, p := range addressPhrases {
		from, to := p[0], p[1]
		for i := 0; i+len(from) <= len(tokens); i++ {
			if !equalTokens(tokens[i:i+len(from)], from) {
				continue
			}
			rest := append([]string{}, tokens[i+len(from):]...)
			tokens = append(append(tokens[:i], to...), rest...)
		}
	}
	return tokens
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func compact(tokens []string) []string {
	out := tokens[:0]
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// State returns the USPS code for a state name or code, or "" when the
// value is not a recognised US state.
func State(raw string) string {
	s := collapse(strings.ToUpper(stripPunct(foldText(raw))))
	if s == "" {
		return ""
	}
	if stateCodes[s] {
		return s
	}
	return stateNames[s]
}

// Country returns the ISO alpha-2 code for a country spelling. Unknown
// values are upper-cased and returned as-is so two identical spellings still
// agree.
func Country(raw string) string {
	s := collapse(strings.ToUpper(stripPunct(foldText(raw))))
	if s == "" {
		return ""
	}
	if code, ok := countryNames[s]; ok {
		return code
	}
	return s
}

// Jurisdiction canonicalises a registration jurisdiction: a US state becomes
// "US-XX", a country becomes its ISO code.
func Jurisdiction(raw string) string {
	if code := State(raw); code != "" {
		return "US-" + code
	}
	return Country(raw)
}

var streetTypeAbbrevs = func() map[string]bool {
	m := make(map[string]bool, len(streetTypes))
	for _, abbr := range streetTypes {
		m[abbr] = true
	}
	delete(m, "STE")
	delete(m, "APT")
	delete(m, "FL")
	delete(m, "BLDG")
	delete(m, "RM")
	delete(m, "DEPT")
	delete(m, "UNIT")
	m["WAY"] = true
	return m
}()

// StreetKey cuts a normalized address line after its first street-type
// token ("1209 ORANGE ST WILMINGTON DE 19801" -> "1209 ORANGE ST"). Lines
// without a street type are returned unchanged.
func StreetKey(line string) string {
	tokens := strings.Fields(line)
	for i, t := range tokens {
		if i > 0 && streetTypeAbbrevs[t] {
			return strings.Join(tokens[:i+1], " ")
		}
	}
	return strings.Join(tokens, " ")
}
