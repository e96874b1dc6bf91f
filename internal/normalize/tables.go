package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// suffixRule maps a legal-entity suffix phrase to its canonical form. Dotted
// rules also match the letter-by-letter abbreviation ("l.l.c.").
type suffixRule struct {
	phrase    string
	canonical string
	dotted    bool
	re        *regexp.Regexp
}

// legalSuffixRules is evaluated in order, longest phrase first, so a shorter
// phrase never shadows a longer one that contains it.
var legalSuffixRules = compileSuffixRules([]suffixRule{
	{phrase: "professional limited liability company", canonical: "PLLC"},
	{phrase: "limited liability partnership", canonical: "LLP"},
	{phrase: "limited liability company", canonical: "LLC"},
	{phrase: "limited liability co", canonical: "LLC"},
	{phrase: "public limited company", canonical: "PLC"},
	{phrase: "professional corporation", canonical: "PC"},
	{phrase: "professional association", canonical: "PA"},
	{phrase: "limited partnership", canonical: "LP"},
	{phrase: "national association", canonical: "NA"},
	{phrase: "incorporated", canonical: "INC"},
	{phrase: "corporation", canonical: "CORP"},
	{phrase: "company", canonical: "CO"},
	{phrase: "limited", canonical: "LTD"},
	{phrase: "gmbh", canonical: "GMBH"},
	{phrase: "pllc", canonical: "PLLC", dotted: true},
	{phrase: "corp", canonical: "CORP"},
	{phrase: "llc", canonical: "LLC", dotted: true},
	{phrase: "llp", canonical: "LLP", dotted: true},
	{phrase: "plc", canonical: "PLC", dotted: true},
	{phrase: "inc", canonical: "INC"},
	{phrase: "ltd", canonical: "LTD"},
	{phrase: "lp", canonical: "LP", dotted: true},
	{phrase: "pc", canonical: "PC", dotted: true},
	{phrase: "pa", canonical: "PA", dotted: true},
	{phrase: "na", canonical: "NA", dotted: true},
	{phrase: "co", canonical: "CO"},
})

// boundary matches the separator before a suffix and the trailing debris
// after it.
const boundary = `[\s\p{P}\p{S}]`

func compileSuffixRules(rules []suffixRule) []suffixRule {
	sort.SliceStable(rules, func(i, j int) bool {
		if len(rules[i].phrase) != len(rules[j].phrase) {
			return len(rules[i].phrase) > len(rules[j].phrase)
		}
		return rules[i].phrase < rules[j].phrase
	})
	for i := range rules {
		rules[i].re = regexp.MustCompile(boundary + `(?:` + suffixBody(rules[i]) + `)` + boundary + `*$`)
	}
	return rules
}

func suffixBody(r suffixRule) string {
	words := strings.Fields(r.phrase)
	if r.dotted && len(words) == 1 {
		letters := make([]string, 0, len(r.phrase))
		for _, c := range r.phrase {
			letters = append(letters, regexp.QuoteMeta(string(c)))
		}
		// Both "llc" and "l.l.c." / "l. l. c." match.
		return strings.Join(letters, `\.?\s*`) + `\.?`
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(words, `\s+`) + `\.?`
}

// orgNoiseWords are stripped from the front of organization names.
var orgNoiseWords = map[string]bool{"the": true, "a": true, "an": true, "of": true}

// personTitles precede a person's name.
var personTitles = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "miss": true, "mx": true, "dr": true,
	"hon": true, "honorable": true, "rev": true, "reverend": true, "sen": true,
	"senator": true, "rep": true, "gov": true, "prof": true, "sir": true,
}

// personSuffixes follow a person's name: generational and professional.
var personSuffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true, "v": true,
	"esq": true, "esquire": true, "md": true, "phd": true, "cpa": true,
	"dds": true, "do": true, "rn": true, "jd": true, "mba": true, "cfa": true,
}

// nicknames maps common given-name diminutives to their canonical form.
var nicknames = map[string]string{
	"al": "albert", "alex": "alexander", "andy": "andrew", "tony": "anthony",
	"ben": "benjamin", "bill": "william", "billy": "william", "will": "william",
	"bob": "robert", "bobby": "robert", "rob": "robert", "robbie": "robert",
	"charlie": "charles", "chuck": "charles", "chris": "christopher",
	"dan": "daniel", "danny": "daniel", "dave": "david", "don": "donald",
	"ed": "edward", "eddie": "edward", "ted": "edward", "frank": "francis",
	"fred": "frederick", "greg": "gregory", "hank": "henry", "harry": "henry",
	"jack": "john", "johnny": "john", "jim": "james", "jimmy": "james",
	"jerry": "gerald", "joe": "joseph", "joey": "joseph", "ken": "kenneth",
	"larry": "lawrence", "matt": "matthew", "mike": "michael", "mick": "michael",
	"nick": "nicholas", "pat": "patrick", "pete": "peter", "ray": "raymond",
	"rick": "richard", "rich": "richard", "dick": "richard", "ron": "ronald",
	"sam": "samuel", "steve": "stephen", "tom": "thomas", "tommy": "thomas",
	"tim": "timothy", "walt": "walter",
	"abby": "abigail", "beth": "elizabeth", "liz": "elizabeth", "betty": "elizabeth",
	"cathy": "catherine", "kate": "katherine", "katie": "katherine",
	"debbie": "deborah", "jenny": "jennifer", "jen": "jennifer",
	"maggie": "margaret", "peggy": "margaret", "meg": "margaret", "patty": "patricia",
	"sue": "susan", "suzy": "susan", "vicky": "victoria",
}

// addressPhrases rewrites multi-token address phrases, longest first.
var addressPhrases = [][2][]string{
	{{"POST", "OFFICE", "BOX"}, {"PO", "BOX"}},
	{{"P", "O", "BOX"}, {"PO", "BOX"}},
	{{"RURAL", "ROUTE"}, {"RR"}},
}

// directionals maps direction words to USPS abbreviations.
var directionals = map[string]string{
	"NORTH": "N", "SOUTH": "S", "EAST": "E", "WEST": "W",
	"NORTHEAST": "NE", "NORTHWEST": "NW", "SOUTHEAST": "SE", "SOUTHWEST": "SW",
}

// streetTypes maps street-type and unit words to USPS abbreviations.
var streetTypes = map[string]string{
	"STREET": "ST", "STR": "ST", "AVENUE": "AVE", "AV": "AVE", "AVEN": "AVE",
	"BOULEVARD": "BLVD", "BOUL": "BLVD", "ROAD": "RD", "DRIVE": "DR", "DRV": "DR",
	"LANE": "LN", "COURT": "CT", "PLACE": "PL", "SQUARE": "SQ", "TERRACE": "TER",
	"PARKWAY": "PKWY", "PKY": "PKWY", "HIGHWAY": "HWY", "CIRCLE": "CIR",
	"TRAIL": "TRL", "EXPRESSWAY": "EXPY", "FREEWAY": "FWY", "TURNPIKE": "TPKE",
	"PLAZA": "PLZ", "CENTER": "CTR", "CENTRE": "CTR", "POINT": "PT",
	"MOUNT": "MT", "FORT": "FT", "HEIGHTS": "HTS", "ALLEY": "ALY",
	"CROSSING": "XING", "GREEN": "GRN", "RIDGE": "RDG", "VALLEY": "VLY",
	"SUITE": "STE", "APARTMENT": "APT", "FLOOR": "FL", "BUILDING": "BLDG",
	"ROOM": "RM", "DEPARTMENT": "DEPT", "UNIT": "UNIT",
}

// stateNames maps upper-case state names to USPS codes.
var stateNames = map[string]string{
	"ALABAMA": "AL", "ALASKA": "AK", "ARIZONA": "AZ", "ARKANSAS": "AR",
	"CALIFORNIA": "CA", "COLORADO": "CO", "CONNECTICUT": "CT", "DELAWARE": "DE",
	"FLORIDA": "FL", "GEORGIA": "GA", "HAWAII": "HI", "IDAHO": "ID",
	"ILLINOIS": "IL", "INDIANA": "IN", "IOWA": "IA", "KANSAS": "KS",
	"KENTUCKY": "KY", "LOUISIANA": "LA", "MAINE": "ME", "MARYLAND": "MD",
	"MASSACHUSETTS": "MA", "MICHIGAN": "MI", "MINNESOTA": "MN", "MISSISSIPPI": "MS",
	"MISSOURI": "MO", "MONTANA": "MT", "NEBRASKA": "NE", "NEVADA": "NV",
	"NEW HAMPSHIRE": "NH", "NEW JERSEY": "NJ", "NEW MEXICO": "NM", "NEW YORK": "NY",
	"NORTH CAROLINA": "NC", "NORTH DAKOTA": "ND", "OHIO": "OH", "OKLAHOMA": "OK",
	"OREGON": "OR", "PENNSYLVANIA": "PA", "RHODE ISLAND": "RI", "SOUTH CAROLINA": "SC",
	"SOUTH DAKOTA": "SD", "TENNESSEE": "TN", "TEXAS": "TX", "UTAH": "UT",
	"VERMONT": "VT", "VIRGINIA": "VA", "WASHINGTON": "WA", "WEST VIRGINIA": "WV",
	"WISCONSIN": "WI", "WYOMING": "WY", "DISTRICT OF COLUMBIA": "DC",
	"PUERTO RICO": "PR", "GUAM": "GU", "VIRGIN ISLANDS": "VI",
}

// stateCodes is the set of valid USPS codes.
var stateCodes = func() map[string]bool {
	m := make(map[string]bool, len(stateNames))
	for _, code := range stateNames {
		m[code] = true
	}
	return m
}()

// countryNames maps country spellings to ISO 3166 alpha-2 codes.
var countryNames = map[string]string{
	"US": "US", "USA": "US", "UNITED STATES": "US", "UNITED STATES OF AMERICA": "US", "U S": "US", "U S A": "US",
	"CA": "CA", "CAN": "CA", "CANADA": "CA",
	"MX": "MX", "MEX": "MX", "MEXICO": "MX",
	"GB": "GB", "UK": "GB", "UNITED KINGDOM": "GB", "GREAT BRITAIN": "GB",
	"IE": "IE", "IRELAND": "IE", "DE": "DE", "GERMANY": "DE", "FR": "FR", "FRANCE": "FR",
	"CH": "CH", "SWITZERLAND": "CH", "NL": "NL", "NETHERLANDS": "NL",
	"KY": "KY", "CAYMAN ISLANDS": "KY", "BM": "BM", "BERMUDA": "BM",
	"VG": "VG", "BRITISH VIRGIN ISLANDS": "VG", "PA": "PA", "PANAMA": "PA",
	"RU": "RU", "RUSSIA": "RU", "RUSSIAN FEDERATION": "RU", "CN": "CN", "CHINA": "CN",
	"IR": "IR", "IRAN": "IR", "KP": "KP", "NORTH KOREA": "KP", "CU": "CU", "CUBA": "CU",
	"SY": "SY", "SYRIA": "SY", "VE": "VE", "VENEZUELA": "VE", "AE": "AE", "UNITED ARAB EMIRATES": "AE",
}
