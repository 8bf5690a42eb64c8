package tracker

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ot2lab/liquidtrack/pkg/tube"
)

var (
	// ErrInvalidVolume is returned for negative or non-finite volumes.
	ErrInvalidVolume = errors.New("invalid volume")
	// ErrInvalidHeight is returned for negative or non-finite heights.
	ErrInvalidHeight = errors.New("invalid height")
	// ErrInvalidDirection is returned for an unrecognized direction.
	ErrInvalidDirection = errors.New("invalid direction")
)

// Direction tells whether a tracked tube is being drawn down or filled up.
type Direction string

const (
	Emptying Direction = "emptying"
	Filling  Direction = "filling"
)

// ParseDirection accepts "emptying"/"filling", case-insensitively, along with
// "empty"/"aspirate" and "fill"/"dispense".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "emptying", "empty", "aspirate":
		return Emptying, nil
	case "filling", "fill", "dispense":
		return Filling, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

func (d Direction) valid() bool {
	return d == Emptying || d == Filling
}

// Result is the outcome of one pipetting step.
type Result struct {
	// NewHeightMM is the liquid surface after the step.
	NewHeightMM float64 `json:"newHeightMM"`
	// PipettingHeightMM is where the tip should be placed.
	PipettingHeightMM float64 `json:"pipettingHeightMM"`
	// DeltaHeightMM is the surface change caused by the step volume.
	DeltaHeightMM float64 `json:"deltaHeightMM"`
	// BottomReached signals that the tube is about to run dry.
	BottomReached bool `json:"bottomReached"`
}

// InitialHeight computes the liquid surface height above the bottom of a
// tube holding startVolumeUL.
func InitialHeight(tubeType string, startVolumeUL float64) (float64, error) {
	g, err := tube.Lookup(tubeType)
	if err != nil {
		return 0, err
	}
	if err := checkVolume(startVolumeUL); err != nil {
		return 0, err
	}
	return initialHeight(g, startVolumeUL), nil
}

// Step computes the surface height after moving deltaVolumeUL out of
// (Emptying) or into (Filling) a tube whose surface is at currentHeightMM.
func Step(tubeType string, deltaVolumeUL, currentHeightMM float64, direction Direction) (Result, error) {
	g, err := tube.Lookup(tubeType)
	if err != nil {
		return Result{}, err
	}
	if err := checkVolume(deltaVolumeUL); err != nil {
		return Result{}, err
	}
	if err := checkHeight(currentHeightMM); err != nil {
		return Result{}, err
	}
	if !direction.valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
	return step(g, deltaVolumeUL, currentHeightMM, direction), nil
}

func initialHeight(g *tube.Geometry, volume float64) float64 {
	tipVolume := g.ConicalTipVolume()

	var h float64
	if volume <= tipVolume {
		h = subConeHeight(g, volume)
	} else {
		h = g.ConicalTipHeight + (volume-tipVolume)/g.CrossSectionArea()
	}

	return math.Max(h+g.StartHeightOffsetMM, 0)
}

// subConeHeight inverts the frustum volume for a partially filled tip. The
// radius grows linearly with height, r(h) = rTip + k·h, which makes the
// volume π/(3k)·(r(h)³ - rTip³).
func subConeHeight(g *tube.Geometry, volume float64) float64 {
	rTip, rTop := g.TipRadius(), g.TopRadius()
	k := (rTop - rTip) / g.ConicalTipHeight
	r := math.Cbrt(3*k*volume/math.Pi + rTip*rTip*rTip)
	return (r - rTip) / k
}

// step models the whole tube as a cylinder of the top radius, including the
// conical tip.
func step(g *tube.Geometry, volume, height float64, direction Direction) Result {
	delta := volume / g.CrossSectionArea()

	var h float64
	switch direction {
	case Emptying:
		h = height - delta
		if g.NearFloorOffsetMM != 0 && h < g.NearFloorThresholdMM {
			h += g.NearFloorOffsetMM
		}
		h = math.Max(h, 0)
	case Filling:
		h = height + delta
	}

	pipetting := math.Max(h-g.SubmersionMarginMM, 0)

	return Result{
		NewHeightMM:       h,
		PipettingHeightMM: pipetting,
		DeltaHeightMM:     delta,
		BottomReached:     pipetting-delta <= g.SafetyFloorMM,
	}
}

func checkVolume(v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v µL", ErrInvalidVolume, v)
	}
	return nil
}

func checkHeight(h float64) error {
	if h < 0 || math.IsNaN(h) || math.IsInf(h, 0) {
		return fmt.Errorf("%w: %v mm", ErrInvalidHeight, h)
	}
	return nil
}
