package ellipsoid

import (
	"math"

	"github.com/tidwall/geodesic"
)

// SurfaceDistance returns the length in meters of the shortest path between
// two positions on the surface of the ellipsoid. Heights are ignored.
//
// It solves the inverse geodesic problem with Karney's algorithm, which
// converges for every pair of positions including antipodal ones.
func (e Ellipsoid) SurfaceDistance(from, to Cartographic) float64 {
	var s12 float64
	geodesic.NewEllipsoid(e.SemiMajorAxis, e.Flattening()).Inverse(
		degrees(from.Latitude), degrees(from.Longitude),
		degrees(to.Latitude), degrees(to.Longitude),
		&s12, nil, nil,
	)
	return s12
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
