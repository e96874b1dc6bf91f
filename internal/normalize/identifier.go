package normalize

import (
	"strings"
	"unicode"

	"github.com/sells-group/entity-xref/internal/model"
)

// Identifier kinds after canonicalisation.
const (
	KindEIN   = "ein"
	KindCIK   = "cik"
	KindCRD   = "crd"
	KindDUNS  = "duns"
	KindUEI   = "uei"
	KindLEI   = "lei"
	KindPhone = "phone"
	KindEmail = "email"
)

// kindAliases folds the column labels datasets use onto canonical kinds.
var kindAliases = map[string]string{
	"ein": KindEIN, "fein": KindEIN, "tin": KindEIN, "tax_id": KindEIN, "taxid": KindEIN,
	"cik": KindCIK, "crd": KindCRD, "crd_number": KindCRD,
	"duns": KindDUNS, "uei": KindUEI, "lei": KindLEI,
	"phone": KindPhone, "telephone": KindPhone, "phone_number": KindPhone,
	"email": KindEmail, "email_address": KindEmail, "e-mail": KindEmail,
}

var hardKinds = map[string]bool{
	KindEIN: true, KindCIK: true, KindCRD: true, KindDUNS: true, KindUEI: true, KindLEI: true,
}

var contactKinds = map[string]bool{KindPhone: true, KindEmail: true}

// IsHardKind reports whether kind is a government or registry identifier.
// Two records sharing a hard identifier are the same entity; two records
// with different values of the same hard kind are not.
func IsHardKind(kind string) bool { return hardKinds[kind] }

// IsContactKind reports whether kind is a phone number or email address.
func IsContactKind(kind string) bool { return contactKinds[kind] }

// Kind canonicalises an identifier kind label.
func Kind(raw string) string {
	k := strings.ToLower(strings.TrimSpace(raw))
	k = strings.ReplaceAll(k, " ", "_")
	if canon, ok := kindAliases[k]; ok {
		return canon
	}
	return k
}

// Identifier canonicalises an identifier value for its kind. The second
// return value is false when the value is blank or malformed for the kind.
func Identifier(kind, value string) (model.Identifier, bool) {
	kind = Kind(kind)
	value = strings.TrimSpace(value)
	if kind == "" || value == "" {
		return model.Identifier{}, false
	}

	switch kind {
	case KindEIN:
		d := digits(value)
		if len(d) != 9 {
			return model.Identifier{}, false
		}
		value = d
	case KindCIK, KindCRD:
		d := strings.TrimLeft(digits(value), "0")
		if d == "" {
			return model.Identifier{}, false
		}
		value = d
	case KindPhone:
		d := digits(value)
		if len(d) == 11 && d[0] == '1' {
			d = d[1:]
		}
		if len(d) < 10 {
			return model.Identifier{}, false
		}
		value = d[len(d)-10:]
	case KindEmail:
		value = strings.ToLower(value)
		if !strings.Contains(value, "@") {
			return model.Identifier{}, false
		}
	default:
		value = strings.ToUpper(alnum(value))
		if value == "" {
			return model.Identifier{}, false
		}
	}
	return model.Identifier{Kind: kind, Value: value}, true
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func alnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
