package tube

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownTubeType is returned when a tube identifier is not in the table.
var ErrUnknownTubeType = errors.New("unknown tube type")

// Tube type identifiers.
const (
	Tube1_5mL       = "1.5mL_tubes"
	Tube2mL         = "2mL_tubes"
	Tube5mLScrewCap = "5mL_screwcap_tubes"
	Tube5mLSnapCap  = "5mL_snapcap_tubes"
	Tube15mL        = "15mL_tubes"
	Tube50mL        = "50mL_tubes"
)

// Geometry describes a tube as a frustum (the conical tip) topped by a
// cylinder. All lengths are in millimeters; volumes in µL (= mm³).
type Geometry struct {
	Type string `json:"type"`

	TopDiameter      float64 `json:"topDiameterMM"`
	TipDiameter      float64 `json:"tipDiameterMM"`
	ConicalTipHeight float64 `json:"conicalTipHeightMM"`
	MaxHeightMM      float64 `json:"maxHeightMM"`

	// StartHeightOffsetMM is added to the computed start height. It corrects
	// the cylindrical approximation for tube shapes where it is known to be off.
	StartHeightOffsetMM float64 `json:"startHeightOffsetMM"`
	// NearFloorOffsetMM is added to the surface height on every emptying step
	// that leaves it below NearFloorThresholdMM. Zero disables it.
	NearFloorThresholdMM float64 `json:"nearFloorThresholdMM"`
	NearFloorOffsetMM    float64 `json:"nearFloorOffsetMM"`

	// SubmersionMarginMM is how far below the surface the tip is placed.
	SubmersionMarginMM float64 `json:"submersionMarginMM"`
	// SafetyFloorMM is the lowest tip height considered safe to draw from.
	SafetyFloorMM float64 `json:"safetyFloorMM"`
}

func (g *Geometry) TopRadius() float64 {
	return g.TopDiameter / 2
}

func (g *Geometry) TipRadius() float64 {
	return g.TipDiameter / 2
}

// CrossSectionArea is the area of the cylindrical body, in mm².
func (g *Geometry) CrossSectionArea() float64 {
	r := g.TopRadius()
	return math.Pi * r * r
}

// ConicalTipVolume returns the internal volume of the frustum in µL.
func (g *Geometry) ConicalTipVolume() float64 {
	rTip, rTop := g.TipRadius(), g.TopRadius()
	return math.Pi * g.ConicalTipHeight * (rTip*rTip + rTip*rTop + rTop*rTop) / 3
}

// Validate checks the physical invariants of the geometry.
func (g *Geometry) Validate() error {
	if !(g.TipDiameter > 0) {
		return fmt.Errorf("%s: tip diameter must be positive, got %v", g.Type, g.TipDiameter)
	}
	if !(g.TopDiameter > g.TipDiameter) {
		return fmt.Errorf("%s: top diameter %v must exceed tip diameter %v", g.Type, g.TopDiameter, g.TipDiameter)
	}
	if !(g.ConicalTipHeight > 0) {
		return fmt.Errorf("%s: conical tip height must be positive, got %v", g.Type, g.ConicalTipHeight)
	}
	if g.MaxHeightMM <= g.ConicalTipHeight {
		return fmt.Errorf("%s: max height %v must exceed conical tip height %v", g.Type, g.MaxHeightMM, g.ConicalTipHeight)
	}
	if g.SubmersionMarginMM < 0 || g.SafetyFloorMM < 0 {
		return fmt.Errorf("%s: submersion margin and safety floor must not be negative", g.Type)
	}
	return nil
}
