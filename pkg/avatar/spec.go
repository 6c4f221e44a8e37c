// Package avatar loads a character model, normalizes its size and position,
// resolves which animation clip drives it and exposes its live parameters.
package avatar

import (
	"math"
)

// Offset is a planar world-space offset.
type Offset struct {
	X, Z float64
}

// AssetSpec describes one avatar. It is never mutated after construction.
type AssetSpec struct {
	ModelPath         string
	AnimPath          string // Optional external animation asset
	Offset            Offset
	ScaleMultiplier   float64 // Zero means 1
	YOffsetMultiplier float64
}

// coerceScale maps values that are not usable multipliers to 1.
func coerceScale(v float64) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	return v
}

// coerceOffset maps non-finite offsets to 0.
func coerceOffset(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
