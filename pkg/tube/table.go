package tube

import (
	"fmt"
)

// types keeps the table order stable for listings.
var types = []string{
	Tube1_5mL,
	Tube2mL,
	Tube5mLScrewCap,
	Tube5mLSnapCap,
	Tube15mL,
	Tube50mL,
}

var table = map[string]Geometry{
	Tube1_5mL: {
		Type:               Tube1_5mL,
		TopDiameter:        8.7,
		TipDiameter:        3.6,
		ConicalTipHeight:   17.8,
		MaxHeightMM:        37.8,
		SubmersionMarginMM: 2,
		SafetyFloorMM:      1,
	},
	Tube2mL: {
		Type:               Tube2mL,
		TopDiameter:        8.7,
		TipDiameter:        4.0,
		ConicalTipHeight:   4.0,
		MaxHeightMM:        38.0,
		SubmersionMarginMM: 2,
		SafetyFloorMM:      1,
	},
	Tube5mLScrewCap: {
		Type:                Tube5mLScrewCap,
		TopDiameter:         13.2,
		TipDiameter:         3.3,
		ConicalTipHeight:    11.1,
		MaxHeightMM:         55.4,
		StartHeightOffsetMM: -5,
		SubmersionMarginMM:  5,
		SafetyFloorMM:       2,
	},
	Tube5mLSnapCap: {
		Type:               Tube5mLSnapCap,
		TopDiameter:        13.3,
		TipDiameter:        3.3,
		ConicalTipHeight:   14.8,
		MaxHeightMM:        58.0,
		SubmersionMarginMM: 5,
		SafetyFloorMM:      2,
	},
	Tube15mL: {
		Type:                 Tube15mL,
		TopDiameter:          15.0,
		TipDiameter:          2.2,
		ConicalTipHeight:     22.0,
		MaxHeightMM:          118.0,
		StartHeightOffsetMM:  7,
		NearFloorThresholdMM: 15,
		NearFloorOffsetMM:    -1,
		SubmersionMarginMM:   5,
		SafetyFloorMM:        2,
	},
	Tube50mL: {
		Type:               Tube50mL,
		TopDiameter:        27.7,
		TipDiameter:        11.5,
		ConicalTipHeight:   15.3,
		MaxHeightMM:        113.0,
		SubmersionMarginMM: 5,
		SafetyFloorMM:      2,
	},
}

func init() {
	for _, t := range types {
		g := table[t]
		if err := g.Validate(); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the geometry of the given tube type. The returned value is
// a copy; the table itself never changes.
func Lookup(tubeType string) (*Geometry, error) {
	g, ok := table[tubeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTubeType, tubeType)
	}
	return &g, nil
}

// Types lists all known tube type identifiers, smallest tube first.
func Types() []string {
	ret := make([]string, len(types))
	copy(ret, types)
	return ret
}

// All returns the geometries of all known tube types in Types order.
func All() []Geometry {
	ret := make([]Geometry, 0, len(types))
	for _, t := range types {
		ret = append(ret, table[t])
	}
	return ret
}

// IsKnown reports whether tubeType is in the table.
func IsKnown(tubeType string) bool {
	_, ok := table[tubeType]
	return ok
}
