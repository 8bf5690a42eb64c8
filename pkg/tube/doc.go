// Package tube holds the physical dimensions of the tube types a protocol can
// draw from or fill. Each tube is modeled as a conical tip (a frustum) with a
// straight cylindrical body on top. Besides the raw dimensions, every entry
// carries the empirical corrections the height model was tuned with:
//
//   - a start-height offset that compensates the cylindrical approximation
//   - an optional near-floor offset applied while emptying
//   - the submersion margin and the safety floor used to place the tip
//
// The table is fixed at build time and never mutated.
package tube
