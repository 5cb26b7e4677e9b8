package tilemath

import "math"

const (
	// ReferenceSpan is the altitude range, in meters, covered by a single
	// voxel at zoom 0.
	ReferenceSpan = 1 << referenceSpanExp

	referenceSpanExp = 25
)

// VoxelHeight returns the height in meters of a voxel at the given zoom.
func VoxelHeight(z uint8) float64 {
	return math.Ldexp(ReferenceSpan, -int(z))
}

// AltitudeToIndex returns the altitude index of the voxel containing the
// given ellipsoidal altitude, in meters, at the given zoom.
//
// The index is floor(altitude * 2^z / ReferenceSpan). Scaling by a power of
// two is exact in floating point unless it underflows, so negative
// altitudes round toward negative infinity. Altitudes that do not fit an
// int64 index saturate; NaN maps to 0.
func AltitudeToIndex(altitude float64, z uint8) int64 {
	v := math.Floor(math.Ldexp(altitude, int(z)-referenceSpanExp))

	switch {
	case math.IsNaN(v):
		return 0
	case v == 0 && altitude < 0:
		// Tiny negative altitudes underflow to -0.
		return -1
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(v)
	}
}

// IndexToAltitudeRange returns the half open altitude range [min, max), in
// meters, covered by the voxels of altitude index f at the given zoom.
func IndexToAltitudeRange(f int64, z uint8) (min, max float64) {
	h := VoxelHeight(z)
	min = float64(f) * h
	max = min + h
	return min, max
}
