package ellipsoid

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// ErrTypeInvalidEllipsoid is the error type returned for ellipsoids with
	// non positive, non finite or prolate radii.
	ErrTypeInvalidEllipsoid = "ellipsoid_invalid"
)

var (
	// WGS84 is the World Geodetic System 1984 ellipsoid.
	WGS84 = Ellipsoid{
		SemiMajorAxis: 6378137,
		SemiMinorAxis: 6356752.314245179,
	}

	// GRS80 is the Geodetic Reference System 1980 ellipsoid.
	GRS80 = Ellipsoid{
		SemiMajorAxis: 6378137,
		SemiMinorAxis: 6356752.314140356,
	}

	// Sphere is a sphere with the mean Earth radius.
	Sphere = Ellipsoid{
		SemiMajorAxis: 6371008.8,
		SemiMinorAxis: 6371008.8,
	}
)

// Ellipsoid is an oblate ellipsoid of revolution.
type Ellipsoid struct {
	// The equatorial radius in meters.
	SemiMajorAxis float64 `json:"semiMajorAxis" yaml:"semi_major_axis"`

	// The polar radius in meters.
	SemiMinorAxis float64 `json:"semiMinorAxis" yaml:"semi_minor_axis"`
}

// FromInverseFlattening returns the ellipsoid with the given equatorial
// radius and inverse flattening. An inverse flattening of 0 describes a
// sphere.
func FromInverseFlattening(semiMajorAxis, inverseFlattening float64) (Ellipsoid, error) {
	e := Ellipsoid{
		SemiMajorAxis: semiMajorAxis,
		SemiMinorAxis: semiMajorAxis,
	}
	if inverseFlattening != 0 {
		e.SemiMinorAxis = semiMajorAxis * (1 - 1/inverseFlattening)
	}

	if err := e.Validate(); err != nil {
		return Ellipsoid{}, errors.New("invalid inverse flattening").
			WithType(ErrTypeInvalidEllipsoid).
			WithTag("inverse_flattening", inverseFlattening).
			Wrap(err)
	}
	return e, nil
}

// Validate returns an error when the radii do not describe an oblate
// ellipsoid or a sphere.
func (e Ellipsoid) Validate() error {
	a, b := e.SemiMajorAxis, e.SemiMinorAxis

	if !isFinite(a) || !isFinite(b) || a <= 0 || b <= 0 {
		return errors.New("ellipsoid radii must be positive").
			WithType(ErrTypeInvalidEllipsoid).
			WithTag("semi_major_axis", a).
			WithTag("semi_minor_axis", b)
	}

	if b > a {
		return errors.New("semi minor axis is greater than semi major axis").
			WithType(ErrTypeInvalidEllipsoid).
			WithTag("semi_major_axis", a).
			WithTag("semi_minor_axis", b)
	}
	return nil
}

// Flattening returns (a - b) / a.
func (e Ellipsoid) Flattening() float64 {
	return (e.SemiMajorAxis - e.SemiMinorAxis) / e.SemiMajorAxis
}

// EccentricitySquared returns the first eccentricity squared.
func (e Ellipsoid) EccentricitySquared() float64 {
	a2 := e.SemiMajorAxis * e.SemiMajorAxis
	return (a2 - e.SemiMinorAxis*e.SemiMinorAxis) / a2
}

// Cartographic is a geodetic position.
type Cartographic struct {
	// Radians.
	Longitude float64 `json:"longitude"`

	// Radians.
	Latitude float64 `json:"latitude"`

	// Meters above the ellipsoid.
	Height float64 `json:"height"`
}

// Cartesian3 is an Earth centered, Earth fixed position in meters.
type Cartesian3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Distance returns the straight line distance between two positions.
func (c Cartesian3) Distance(o Cartesian3) float64 {
	return math.Sqrt((c.X-o.X)*(c.X-o.X) + (c.Y-o.Y)*(c.Y-o.Y) + (c.Z-o.Z)*(c.Z-o.Z))
}

// Magnitude returns the distance to the center of the ellipsoid.
func (c Cartesian3) Magnitude() float64 {
	return c.Distance(Cartesian3{})
}

// ToCartesian converts a geodetic position to Earth centered, Earth fixed
// coordinates.
func (e Ellipsoid) ToCartesian(c Cartographic) Cartesian3 {
	sinLat, cosLat := math.Sincos(c.Latitude)
	sinLon, cosLon := math.Sincos(c.Longitude)

	e2 := e.EccentricitySquared()
	n := e.primeVerticalRadius(sinLat)

	return Cartesian3{
		X: (n + c.Height) * cosLat * cosLon,
		Y: (n + c.Height) * cosLat * sinLon,
		Z: (n*(1-e2) + c.Height) * sinLat,
	}
}

// ParallelLength returns the length in meters of the arc of the parallel at
// the given latitude spanning deltaLon radians.
func (e Ellipsoid) ParallelLength(lat, deltaLon float64) float64 {
	sinLat, cosLat := math.Sincos(lat)
	return e.primeVerticalRadius(sinLat) * cosLat * math.Abs(deltaLon)
}

func (e Ellipsoid) primeVerticalRadius(sinLat float64) float64 {
	return e.SemiMajorAxis / math.Sqrt(1-e.EccentricitySquared()*sinLat*sinLat)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
