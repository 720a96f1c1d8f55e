package offense

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorizeExactMatch(t *testing.T) {
	t.Helper()

	tests := []struct {
		name        string
		description string
		want        Category
	}{
		{"robbery", "ROBBERY OF BUSINESS", CategoryRobbery},
		{"burglary", "BURGLARY OF HABITATION - FORCED ENTRY", CategoryBurglary},
		{"drug", "POSS MARIJUANA <2OZ", CategoryDrug},
		{"weapon", "UNLAWFUL CARRYING WEAPON", CategoryWeapon},
		{"traffic", "DWI", CategoryTraffic},
		{"lowercase input", "robbery of business", CategoryRobbery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Categorize(tt.description)
			require.True(t, ok, "Categorize(%q) should match", tt.description)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategorizeExactPrecedence(t *testing.T) {
	t.Helper()

	// MURDER is listed under both violent and death; exactMatchOrder puts
	// violent first.
	got, ok := Categorize("MURDER")
	require.True(t, ok)
	assert.Equal(t, CategoryViolent, got)
}

func TestCategorizeKeywordFallback(t *testing.T) {
	t.Helper()

	tests := []struct {
		name        string
		description string
		want        Category
	}{
		{"unknown firearm offense", "SOME NEW FIREARM CHARGE", CategoryWeapon},
		{"unknown dwi variant", "DWI FELONY REPETITION", CategoryTraffic},
		{"unknown dog offense", "DOG RUNNING AT LARGE", CategoryAnimal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Categorize(tt.description)
			require.True(t, ok, "Categorize(%q) should match by keyword", tt.description)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategorizeNoMatch(t *testing.T) {
	t.Helper()

	got, ok := Categorize("COMPLETELY UNRELATED TEXT")
	assert.False(t, ok)
	assert.Equal(t, CategoryOther, got)

	got, ok = Categorize("")
	assert.False(t, ok)
	assert.Equal(t, CategoryOther, got)
}

func TestOffensesFor(t *testing.T) {
	t.Helper()

	offenses := OffensesFor("robbery")
	require.NotEmpty(t, offenses)
	assert.Contains(t, offenses, "ROBBERY OF BUSINESS")

	assert.Nil(t, OffensesFor("no_such_category"))

	// Returned slice is a copy.
	offenses[0] = "MUTATED"
	assert.Contains(t, OffensesFor("robbery"), "ROBBERY OF BUSINESS")
}

func TestSearchByKeyword(t *testing.T) {
	t.Helper()

	matches := SearchByKeyword("marijuana")
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.Contains(t, m, "MARIJUANA")
	}

	assert.Nil(t, SearchByKeyword(""))
	assert.Empty(t, SearchByKeyword("zzzzzz"))
}

func TestStaticOracle(t *testing.T) {
	t.Helper()

	oracle := NewStaticOracle()
	assert.NotEmpty(t, oracle.OffensesFor("theft"))
	assert.Nil(t, oracle.OffensesFor("bogus"))
}

func TestParseCategory(t *testing.T) {
	t.Helper()

	got, ok := ParseCategory("  Weapon ")
	require.True(t, ok)
	assert.Equal(t, CategoryWeapon, got)

	_, ok = ParseCategory("nonsense")
	assert.False(t, ok)
}
