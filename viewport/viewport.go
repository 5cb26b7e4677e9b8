package viewport

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/spatialid/spatialid"
	"github.com/aukilabs/spatialid/tilemath"
)

const (
	// ErrTypeInvalidZoomRange is the error type returned when a zoom search
	// range is empty or exceeds the maximum zoom.
	ErrTypeInvalidZoomRange = "viewport_invalid_zoom_range"

	// ErrTypeInvalidRectangle is the error type returned for rectangles with
	// non finite or out of range coordinates.
	ErrTypeInvalidRectangle = "viewport_invalid_rectangle"

	// DefaultZoomMin is the coarsest zoom searched by default.
	DefaultZoomMin = 8

	// DefaultZoomMax is the finest zoom searched by default.
	DefaultZoomMax = 22
)

// Rectangle is a geodetic viewport in radians. A rectangle whose west is
// greater than its east crosses the antimeridian.
type Rectangle struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// RectangleFromDegrees returns the rectangle with the given bounds in
// degrees.
func RectangleFromDegrees(west, south, east, north float64) Rectangle {
	return Rectangle{
		West:  west * math.Pi / 180,
		South: south * math.Pi / 180,
		East:  east * math.Pi / 180,
		North: north * math.Pi / 180,
	}
}

// Validate returns an error when the rectangle is not a geodetic rectangle.
func (r Rectangle) Validate() error {
	for _, v := range []float64{r.West, r.South, r.East, r.North} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("rectangle coordinates must be finite").
				WithType(ErrTypeInvalidRectangle).
				WithTag("rectangle", r)
		}
	}

	if r.West < -math.Pi || r.West > math.Pi || r.East < -math.Pi || r.East > math.Pi {
		return errors.New("rectangle longitudes out of range").
			WithType(ErrTypeInvalidRectangle).
			WithTag("rectangle", r)
	}

	if r.South < -math.Pi/2 || r.North > math.Pi/2 || r.South > r.North {
		return errors.New("rectangle latitudes out of range").
			WithType(ErrTypeInvalidRectangle).
			WithTag("rectangle", r)
	}
	return nil
}

// Center returns the center of the rectangle.
func (r Rectangle) Center() (lon, lat float64) {
	east := r.East
	if east < r.West {
		east += 2 * math.Pi
	}

	lon = (r.West + east) / 2
	if lon > math.Pi {
		lon -= 2 * math.Pi
	}
	return lon, (r.South + r.North) / 2
}

// Result is the tile found by an enclosing tile search.
type Result struct {
	Tile tilemath.Tile `json:"tile"`

	// Reports whether no single tile in the zoom range contains the
	// rectangle. The tile then only contains the rectangle center.
	FellBack bool `json:"fellBack"`
}

// EnclosingTile returns the finest tile within [zoomMin, zoomMax] that
// contains both the north west and south east corners of the rectangle.
//
// When no such tile exists, it returns the tile containing the rectangle
// center at zoomMin. Corners outside of the Web Mercator projection never
// share a tile.
func EnclosingTile(r Rectangle, zoomMin, zoomMax uint8) (Result, error) {
	if zoomMin > zoomMax || zoomMax > spatialid.MaxZoom {
		return Result{}, errors.New("invalid zoom range").
			WithType(ErrTypeInvalidZoomRange).
			WithTag("zoom_min", zoomMin).
			WithTag("zoom_max", zoomMax)
	}

	if err := r.Validate(); err != nil {
		return Result{}, err
	}

	for z := int(zoomMax); z >= int(zoomMin); z-- {
		nw, err := tilemath.TileAt(r.West, r.North, uint8(z))
		if err != nil {
			continue
		}

		se, err := tilemath.TileAt(r.East, r.South, uint8(z))
		if err != nil {
			continue
		}

		if nw == se {
			return Result{Tile: nw}, nil
		}
	}

	lon, lat := r.Center()
	center, err := tilemath.TileAt(lon, tilemath.ClampLatitude(lat), zoomMin)
	if err != nil {
		return Result{}, errors.New("finding center tile failed").
			WithType(errors.Type(err)).
			WithTag("rectangle", r).
			Wrap(err)
	}

	return Result{
		Tile:     center,
		FellBack: true,
	}, nil
}

// Identify returns the ID of the voxel at the given ellipsoidal altitude
// above the enclosing tile of the rectangle. A NaN altitude is treated as 0.
func Identify(r Rectangle, altitude float64, zoomMin, zoomMax uint8) (spatialid.ID, Result, error) {
	res, err := EnclosingTile(r, zoomMin, zoomMax)
	if err != nil {
		return spatialid.ID{}, Result{}, err
	}

	if math.IsNaN(altitude) {
		altitude = 0
	}
	return res.Tile.ID(tilemath.AltitudeToIndex(altitude, res.Tile.Z)), res, nil
}
