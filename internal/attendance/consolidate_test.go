package attendance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsolidateCharterSatellites(t *testing.T) {
	raw := Values{
		{Program: ProgC, Month: 3, AgeBand: "4-6"}:   10,
		{Program: ProgCCM, Month: 3, AgeBand: "4-6"}: 5,
	}
	rules := []ConsolidationRule{{Parent: ProgC, Children: []string{ProgC, ProgCCM, ProgCSYC}}}

	got := Consolidate(raw, rules, []int{3}, AgeBands)

	assert.Equal(t, 15.0, got.Values.Labels()["Prog_C_Month_3_4-6: "])
	require.Len(t, got.Breakdowns, 1)
	assert.Equal(t, "Prog_C_Month_3_4-6 = Prog_C: 10 + Prog_C_CM: 5 = 15", got.Breakdowns[0].String())
}

func TestConsolidateStoresZeroForEmptyParents(t *testing.T) {
	got := Consolidate(Values{}, DefaultConsolidationRules(), []int{1}, AgeBands)

	assert.Len(t, got.Values, 8*4)
	for k, v := range got.Values {
		assert.Equal(t, 0.0, v, k.Label())
	}
	assert.Empty(t, got.Breakdowns)
}

func TestConsolidateSkipsZeroAndNaN(t *testing.T) {
	raw := Values{
		{Program: ProgN, Month: 2, AgeBand: "7-8"}:    math.NaN(),
		{Program: ProgNCM, Month: 2, AgeBand: "7-8"}:  0,
		{Program: ProgNSYC, Month: 2, AgeBand: "7-8"}: 1.5,
		{Program: ProgN, Month: 2, AgeBand: "9-12"}:   math.NaN(),
	}
	got := Consolidate(raw, DefaultConsolidationRules(), []int{2}, AgeBands)

	assert.Equal(t, 1.5, got.Values[Key{Program: ProgN, Month: 2, AgeBand: "7-8"}])
	assert.Equal(t, 0.0, got.Values[Key{Program: ProgN, Month: 2, AgeBand: "9-12"}])
	require.Len(t, got.Breakdowns, 1)
	assert.Equal(t, []Part{{Program: ProgNSYC, Value: 1.5}}, got.Breakdowns[0].Parts)
}

func TestConsolidateKeysAreParentsByMonthsByBands(t *testing.T) {
	rules := DefaultConsolidationRules()
	months := []int{8, 10, 11}
	got := Consolidate(Values{}, rules, months, AgeBands)

	want := make(map[Key]bool)
	for _, r := range rules {
		for _, m := range months {
			for _, b := range AgeBands {
				want[Key{Program: r.Parent, Month: m, AgeBand: b}] = true
			}
		}
	}
	assert.Len(t, got.Values, len(want))
	for k := range got.Values {
		assert.True(t, want[k], k.Label())
	}
}

func TestConsolidateObservedMonthsOnly(t *testing.T) {
	s := newTestSheet(10).
		program(mappingName(ProgC), 1, 10).
		entry(2, "8", "TK-3", "4").
		entry(3, "10", "TK-3", "5")
	result, err := Audit(s.Sheet, Options{})
	require.NoError(t, err)

	for k := range result.Consolidated.Values {
		assert.NotEqual(t, 9, k.Month, k.Label())
	}
	assert.Equal(t, []int{8, 10}, result.Months)
}

func TestConsolidateSumsExactly(t *testing.T) {
	raw := Values{
		{Program: ProgC, Month: 4, AgeBand: "TK-3"}:    1.25,
		{Program: ProgCCM, Month: 4, AgeBand: "TK-3"}:  2.5,
		{Program: ProgCSYC, Month: 4, AgeBand: "TK-3"}: 0.25,
		{Program: ProgCTK, Month: 4, AgeBand: "TK-3"}:  7,
	}
	got := Consolidate(raw, DefaultConsolidationRules(), []int{4}, AgeBands)

	assert.Equal(t, 4.0, got.Values[Key{Program: ProgC, Month: 4, AgeBand: "TK-3"}])
	assert.Equal(t, 7.0, got.Values[Key{Program: ProgCTK, Month: 4, AgeBand: "TK-3"}])
	_, hasSatellite := got.Values[Key{Program: ProgCCM, Month: 4, AgeBand: "TK-3"}]
	assert.False(t, hasSatellite)
}
