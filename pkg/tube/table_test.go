package tube

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		tubeType string
		wantErr  error
	}{
		{name: "1.5 mL", tubeType: "1.5mL_tubes"},
		{name: "2 mL", tubeType: "2mL_tubes"},
		{name: "5 mL screw cap", tubeType: "5mL_screwcap_tubes"},
		{name: "5 mL snap cap", tubeType: "5mL_snapcap_tubes"},
		{name: "15 mL", tubeType: "15mL_tubes"},
		{name: "50 mL", tubeType: "50mL_tubes"},
		{name: "unknown", tubeType: "96_well_plate", wantErr: ErrUnknownTubeType},
		{name: "empty", tubeType: "", wantErr: ErrUnknownTubeType},
		{name: "case sensitive", tubeType: "15ML_TUBES", wantErr: ErrUnknownTubeType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Lookup(tt.tubeType)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Nil(t, g)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.tubeType, g.Type)
			assert.NoError(t, g.Validate())
		})
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	g, err := Lookup(Tube15mL)
	require.NoError(t, err)
	g.TopDiameter = 1

	again, err := Lookup(Tube15mL)
	require.NoError(t, err)
	assert.Equal(t, 15.0, again.TopDiameter)
}

func TestTypesOrderAndAll(t *testing.T) {
	got := Types()
	assert.Equal(t, []string{
		"1.5mL_tubes", "2mL_tubes", "5mL_screwcap_tubes",
		"5mL_snapcap_tubes", "15mL_tubes", "50mL_tubes",
	}, got)

	got[0] = "mutated"
	assert.Equal(t, Tube1_5mL, Types()[0])

	all := All()
	require.Len(t, all, len(Types()))
	for i, g := range all {
		assert.Equal(t, Types()[i], g.Type)
		assert.True(t, IsKnown(g.Type))
	}
	assert.False(t, IsKnown("nope"))
}

func TestDerivedDimensions(t *testing.T) {
	g, err := Lookup(Tube5mLScrewCap)
	require.NoError(t, err)

	assert.InDelta(t, 6.6, g.TopRadius(), 1e-9)
	assert.InDelta(t, 1.65, g.TipRadius(), 1e-9)
	assert.InDelta(t, math.Pi*6.6*6.6, g.CrossSectionArea(), 1e-9)

	// (1/3)·π·11.1·(1.65² + 1.65·6.6 + 6.6²)
	assert.InDelta(t, 664.57, g.ConicalTipVolume(), 0.01)
}

func TestValidate(t *testing.T) {
	base := Geometry{
		Type:             "test",
		TopDiameter:      10,
		TipDiameter:      2,
		ConicalTipHeight: 5,
		MaxHeightMM:      50,
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(g *Geometry)
	}{
		{name: "zero tip", mutate: func(g *Geometry) { g.TipDiameter = 0 }},
		{name: "tip wider than top", mutate: func(g *Geometry) { g.TipDiameter = 12 }},
		{name: "equal diameters", mutate: func(g *Geometry) { g.TipDiameter = 10 }},
		{name: "zero cone height", mutate: func(g *Geometry) { g.ConicalTipHeight = 0 }},
		{name: "NaN cone height", mutate: func(g *Geometry) { g.ConicalTipHeight = math.NaN() }},
		{name: "max height below cone", mutate: func(g *Geometry) { g.MaxHeightMM = 4 }},
		{name: "negative margin", mutate: func(g *Geometry) { g.SubmersionMarginMM = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := base
			tt.mutate(&g)
			assert.Error(t, g.Validate())
		})
	}
}
