package tilemath

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/spatialid/spatialid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	// ErrTypeInvalidTile is the error type returned for tiles whose zoom or
	// indices are out of range.
	ErrTypeInvalidTile = "tile_invalid"

	// ErrTypeOutsideProjection is the error type returned for positions that
	// the Web Mercator projection does not cover.
	ErrTypeOutsideProjection = "tile_outside_projection"
)

// MaxLatitude is the northern most latitude, in radians, covered by the Web
// Mercator projection (about 85.0511 degrees).
var MaxLatitude = 2*math.Atan(math.Exp(math.Pi)) - math.Pi/2

// Tile is a horizontal Web Mercator tile. Tile (0, 0) is the north west
// most tile of its zoom level.
type Tile struct {
	Z uint8  `json:"z"`
	X uint32 `json:"x"`
	Y uint32 `json:"y"`
}

// NewTile returns a validated tile.
func NewTile(z uint8, x, y uint32) (Tile, error) {
	if z > spatialid.MaxZoom {
		return Tile{}, errors.New("zoom out of range").
			WithType(ErrTypeInvalidTile).
			WithTag("z", z)
	}

	n := uint64(1) << z
	if uint64(x) >= n || uint64(y) >= n {
		return Tile{}, errors.New("tile index out of range").
			WithType(ErrTypeInvalidTile).
			WithTag("z", z).
			WithTag("x", x).
			WithTag("y", y)
	}
	return Tile{Z: z, X: x, Y: y}, nil
}

// TileOf returns the horizontal tile of a spatial ID.
func TileOf(id spatialid.ID) Tile {
	return Tile{Z: id.Z, X: id.X, Y: id.Y}
}

// ID returns the spatial ID of the voxel at altitude index f above the tile.
func (t Tile) ID(f int64) spatialid.ID {
	return spatialid.ID{Z: t.Z, F: f, X: t.X, Y: t.Y}
}

// Bounds returns the tile bounds in radians.
func (t Tile) Bounds() (west, south, east, north float64) {
	b := maptile.New(t.X, t.Y, maptile.Zoom(t.Z)).Bound()
	return toRadians(b.Min.Lon()), toRadians(b.Min.Lat()),
		toRadians(b.Max.Lon()), toRadians(b.Max.Lat())
}

// TileBounds returns the geodetic bounds, in radians, of the tile at the
// given zoom and indices. Longitude spans are uniform while latitude spans
// follow the inverse Mercator projection.
func TileBounds(z uint8, x, y uint32) (west, south, east, north float64, err error) {
	t, err := NewTile(z, x, y)
	if err != nil {
		return 0, 0, 0, 0, err
	}

	west, south, east, north = t.Bounds()
	return west, south, east, north, nil
}

// TileAt returns the tile containing the given position, in radians.
//
// Longitudes are wrapped into [-π, π]; the antimeridian itself belongs to the
// last column. Latitudes beyond MaxLatitude are outside of the projection.
func TileAt(lon, lat float64, z uint8) (Tile, error) {
	if z > spatialid.MaxZoom {
		return Tile{}, errors.New("zoom out of range").
			WithType(ErrTypeInvalidTile).
			WithTag("z", z)
	}

	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return Tile{}, errors.New("position is not finite").
			WithType(ErrTypeOutsideProjection).
			WithTag("lon", lon).
			WithTag("lat", lat)
	}

	if lat > MaxLatitude || lat < -MaxLatitude {
		return Tile{}, errors.New("latitude outside of web mercator projection").
			WithType(ErrTypeOutsideProjection).
			WithTag("lat", lat)
	}

	lon = normalizeLongitude(lon)
	mt := maptile.At(orb.Point{toDegrees(lon), toDegrees(lat)}, maptile.Zoom(z))

	last := uint32(uint64(1)<<z - 1)
	return Tile{
		Z: z,
		X: min(mt.X, last),
		Y: min(mt.Y, last),
	}, nil
}

// ClampLatitude restricts lat to the latitudes covered by the projection.
func ClampLatitude(lat float64) float64 {
	return math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
}

// normalizeLongitude wraps lon into [-π, π] while keeping π itself, which is
// the eastern edge of the last column.
func normalizeLongitude(lon float64) float64 {
	if lon >= -math.Pi && lon <= math.Pi {
		return lon
	}

	lon = math.Mod(lon+math.Pi, 2*math.Pi)
	if lon < 0 {
		lon += 2 * math.Pi
	}
	return lon - math.Pi
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
