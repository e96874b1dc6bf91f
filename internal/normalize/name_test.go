package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/entity-xref/internal/model"
)

func TestName_Empty(t *testing.T) {
	assert.Equal(t, "", Name("", model.EntityUnknown).Canonical)
	assert.Equal(t, "", Name("   ", model.EntityUnknown).Canonical)
	assert.True(t, Name("  ", model.EntityOrganization).Empty())
}

func TestName_AcmeVariantsAgree(t *testing.T) {
	for _, raw := range []string{"Acme Corp LLC", "Acme Corporation", "Acme Corp.", "ACME CORP", "acme, inc."} {
		assert.Equal(t, "acme", Name(raw, model.EntityUnknown).Canonical, raw)
	}
}

func TestName_StackedSuffixes(t *testing.T) {
	n := Name("Acme Corp LLC", model.EntityUnknown)
	assert.Equal(t, "CORP LLC", n.LegalSuffix)
	assert.Equal(t, model.EntityOrganization, n.EntityType)
}

func TestName_LongestSuffixFirst(t *testing.T) {
	n := Name("Global Holdings Limited Liability Company", model.EntityUnknown)
	assert.Equal(t, "global holdings", n.Canonical)
	assert.Equal(t, "LLC", n.LegalSuffix)

	n = Name("Smith Partners L.L.P.", model.EntityUnknown)
	assert.Equal(t, "smith partners", n.Canonical)
	assert.Equal(t, "LLP", n.LegalSuffix)
}

func TestName_DottedAbbreviation(t *testing.T) {
	assert.Equal(t, "acme advisors", Name("Acme Advisors L.L.C.", model.EntityUnknown).Canonical)
	assert.Equal(t, "acme advisors", Name("Acme Advisors, L. L. C.", model.EntityUnknown).Canonical)
}

func TestName_SuffixNeverEmptiesName(t *testing.T) {
	n := Name("LLC", model.EntityUnknown)
	assert.Equal(t, "llc", n.Canonical)
	assert.Equal(t, "", n.LegalSuffix)
}

func TestName_SuffixInsideWordUntouched(t *testing.T) {
	assert.Equal(t, "costco", Name("Costco", model.EntityUnknown).Canonical)
	assert.Equal(t, "acme co-op", Name("Acme Co-op", model.EntityUnknown).Canonical)
}

func TestName_Diacritics(t *testing.T) {
	assert.Equal(t, "cafe munchen", Name("Café München GmbH", model.EntityUnknown).Canonical)
}

func TestName_Ampersand(t *testing.T) {
	assert.Equal(t, "smith and jones", Name("Smith & Jones, Inc.", model.EntityUnknown).Canonical)
}

func TestName_LeadingNoiseWords(t *testing.T) {
	assert.Equal(t, "acme group", Name("The Acme Group", model.EntityOrganization).Canonical)
	// A lone noise word is kept rather than emptying the name.
	assert.Equal(t, "the", Name("The", model.EntityOrganization).Canonical)
}

func TestName_Punctuation(t *testing.T) {
	assert.Equal(t, "joes advisors", Name("Joe's Advisors", model.EntityUnknown).Canonical)
	assert.Equal(t, "abc holdings", Name("A.B.C. Holdings, Inc.", model.EntityUnknown).Canonical)
	assert.Equal(t, "north-west trading", Name("North-West Trading", model.EntityUnknown).Canonical)
	assert.Equal(t, "acme", Name("Acme -- LLC", model.EntityUnknown).Canonical)
}

func TestName_UnknownWithoutSuffixStaysUnknown(t *testing.T) {
	assert.Equal(t, model.EntityUnknown, Name("Acme", model.EntityUnknown).EntityType)
}

func TestName_PersonReorder(t *testing.T) {
	n := Name("Smith, John A.", model.EntityPerson)
	assert.Equal(t, "john a smith", n.Canonical)
	assert.Equal(t, model.EntityPerson, n.EntityType)
}

func TestName_PersonHonorifics(t *testing.T) {
	n := Name("Dr. John Smith Jr.", model.EntityPerson)
	assert.Equal(t, "john smith", n.Canonical)
	assert.Equal(t, []string{"dr", "jr"}, n.Honorifics)

	n = Name("Smith, John, Jr.", model.EntityPerson)
	assert.Equal(t, "john smith", n.Canonical)
	assert.Equal(t, []string{"jr"}, n.Honorifics)
}

func TestName_PersonNickname(t *testing.T) {
	n := Name("Bob Smith", model.EntityPerson)
	assert.Equal(t, "bob smith", n.Canonical)
	assert.Equal(t, []string{"robert smith"}, n.Alternates)
	assert.Contains(t, n.Forms(), "robert smith")
}

func TestName_PeelsEveryStackedSuffix(t *testing.T) {
	n := Name("Acme Holdings Co Inc LLC Ltd", model.EntityUnknown)
	assert.Equal(t, "acme holdings", n.Canonical)
	assert.Equal(t, model.EntityOrganization, n.EntityType)
	assert.Equal(t, "CO INC LLC LTD", n.LegalSuffix)
}

func TestName_Idempotent(t *testing.T) {
	inputs := []string{
		"Acme Corp LLC", "The Acme Group, Inc.", "Global Holdings Limited Liability Company",
		"A & B Co", "Café München GmbH", "Acme LLC+", "Acme (Co)", "North-West Trading Co.",
		"Acme Inc #2", "  Smith   &   Jones  ", "X-Corp", "The Co",
		"Acme Holdings Co Inc LLC Ltd",
	}
	for _, raw := range inputs {
		for _, hint := range []model.EntityType{model.EntityUnknown, model.EntityOrganization, model.EntityPerson} {
			once := Name(raw, hint).Canonical
			twice := Name(once, hint).Canonical
			assert.Equal(t, once, twice, "%q hint=%s", raw, hint)
		}
	}
}
