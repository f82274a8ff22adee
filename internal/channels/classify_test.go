package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	names := []string{"Courant_1", "Temp_int", "Humidite", "Tension_bat", "Temp_ext", "temp_lower"}

	c := Classify(names, FirstMatch)

	assert.Equal(t, []string{"Temp_int", "Temp_ext"}, c.Temperature)
	assert.Equal(t, []string{"Tension_bat"}, c.Voltage)
	assert.Equal(t, []string{"Courant_1"}, c.Current)
	assert.Equal(t, []string{"Humidite", "temp_lower"}, c.Excluded, "match is case-sensitive")
}

func TestOrderedFollowsCategoryOrder(t *testing.T) {
	c := Classify([]string{"Courant_1", "Tension_1", "Temp_1"}, FirstMatch)

	got := c.Ordered()
	assert.Equal(t, []Channel{
		{Name: "Temp_1", Category: Temperature},
		{Name: "Tension_1", Category: Voltage},
		{Name: "Courant_1", Category: Current},
	}, got)
}

func TestMultiMatchPolicy(t *testing.T) {
	names := []string{"Temp_Tension_mix"}

	first := Classify(names, FirstMatch)
	assert.Len(t, first.Ordered(), 1)
	assert.Equal(t, Temperature, first.Ordered()[0].Category)

	all := Classify(names, AllMatches)
	ordered := all.Ordered()
	assert.Len(t, ordered, 2)
	assert.Equal(t, Temperature, ordered[0].Category)
	assert.Equal(t, Voltage, ordered[1].Category)
}

func TestUnmatchedNeverOrdered(t *testing.T) {
	c := Classify([]string{"Pression", "Vitesse"}, AllMatches)
	assert.Empty(t, c.Ordered())
	assert.Len(t, c.Excluded, 2)

	_, ok := c.Lookup("Pression")
	assert.False(t, ok)
}

func TestCategory(t *testing.T) {
	assert.Equal(t, "voltage", Voltage.String())
	assert.Equal(t, "unknown", Category(42).String())
	assert.False(t, Temperature.HighFrequency())
	assert.True(t, Voltage.HighFrequency())
	assert.True(t, Current.HighFrequency())
}
