// Package tracker computes the liquid height in a tube over a sequence of
// pipetting steps.
//
// The start height uses the frustum-plus-cylinder model of package tube. The
// per-step change treats the whole tube as a cylinder of the body radius,
// and the per-tube empirical offsets were tuned against exactly this mix, so
// the two models are kept as they are.
//
// InitialHeight and Step are pure functions. Tracker wraps them for callers
// that follow one tube over a whole run:
//
//	t, err := tracker.New(tube.Tube15mL, 12000, tracker.Emptying)
//	if err != nil { /* unknown tube or bad volume */ }
//	for _, dest := range wells {
//		res, _ := t.Step(200)
//		if res.BottomReached { /* switch source tube */ }
//		aspirateAt(res.PipettingHeightMM)
//	}
package tracker
