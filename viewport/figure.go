package viewport

import (
	"math"

	"github.com/aukilabs/spatialid/spatialid"
)

const (
	// AltitudeAttributeEllipsoid marks altitudes measured from the
	// ellipsoid.
	AltitudeAttributeEllipsoid = "ALTITUDE_ATTRIBUTE_ELLIPSOID"
)

// Figure is the query envelope sent to area services: a spatial ID and the
// tube going from the north west to the south east corner of the viewport.
type Figure struct {
	Identification Identification `json:"identification"`
	Tube           Tube           `json:"tube"`
	Polygon        map[string]any `json:"polygon"`
}

// Identification holds the spatial ID of a figure.
type Identification struct {
	ID spatialid.ID `json:"ID"`
}

// Tube is a segment with a radius.
type Tube struct {
	Start  TubePoint `json:"start"`
	End    TubePoint `json:"end"`
	Radian float64   `json:"radian"`
}

// TubePoint is a tube end. Latitude and longitude are in degrees.
type TubePoint struct {
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	Altitude          float64 `json:"altitude"`
	AltitudeAttribute string  `json:"altitudeAttribute"`
}

// NewFigure returns the figure of the given ID and viewport at an
// ellipsoidal altitude.
func NewFigure(id spatialid.ID, r Rectangle, altitude float64) Figure {
	if math.IsNaN(altitude) {
		altitude = 0
	}

	return Figure{
		Identification: Identification{ID: id},
		Tube: Tube{
			Start: TubePoint{
				Latitude:          toDegrees(r.North),
				Longitude:         toDegrees(r.West),
				Altitude:          altitude,
				AltitudeAttribute: AltitudeAttributeEllipsoid,
			},
			End: TubePoint{
				Latitude:          toDegrees(r.South),
				Longitude:         toDegrees(r.East),
				Altitude:          altitude,
				AltitudeAttribute: AltitudeAttributeEllipsoid,
			},
		},
		Polygon: map[string]any{},
	}
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
