package geometry

import (
	"context"
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/spatialid/ellipsoid"
	"github.com/aukilabs/spatialid/spatialid"
	"github.com/aukilabs/spatialid/tilemath"
)

// Region is a geodetic box.
type Region struct {
	// Longitudes and latitudes in radians.
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`

	// Ellipsoidal heights in meters.
	MinHeight float64 `json:"minHeight"`
	MaxHeight float64 `json:"maxHeight"`
}

// Intersects reports whether two regions overlap. Regions sharing only an
// edge do not overlap.
func (r Region) Intersects(o Region) bool {
	return r.West < o.East && o.West < r.East &&
		r.South < o.North && o.South < r.North &&
		r.MinHeight < o.MaxHeight && o.MinHeight < r.MaxHeight
}

// Center returns the geodetic midpoint of the region.
func (r Region) Center() ellipsoid.Cartographic {
	return ellipsoid.Cartographic{
		Longitude: (r.West + r.East) / 2,
		Latitude:  (r.South + r.North) / 2,
		Height:    (r.MinHeight + r.MaxHeight) / 2,
	}
}

// Size is the physical extent of a volume in meters.
type Size struct {
	EastWest   float64 `json:"eastWest"`
	NorthSouth float64 `json:"northSouth"`
	Vertical   float64 `json:"vertical"`
}

// Volume is the renderable geometry of a spatial ID.
type Volume struct {
	ID     spatialid.ID         `json:"id"`
	Region Region               `json:"region"`
	Center ellipsoid.Cartesian3 `json:"center"`
	Size   Size                 `json:"size"`
}

// Resolve computes the geometry of the voxel addressed by id on the given
// ellipsoid. Heights are ellipsoidal: callers working with orthometric
// altitudes convert them before building the ID.
func Resolve(id spatialid.ID, e ellipsoid.Ellipsoid) (Volume, error) {
	if err := e.Validate(); err != nil {
		return Volume{}, errors.New("resolving spatial id geometry failed").
			WithType(ellipsoid.ErrTypeInvalidEllipsoid).
			WithTag("spatial_id", id).
			Wrap(err)
	}
	return resolve(id, e), nil
}

func resolve(id spatialid.ID, e ellipsoid.Ellipsoid) Volume {
	west, south, east, north := tilemath.TileOf(id).Bounds()
	minHeight, maxHeight := tilemath.IndexToAltitudeRange(id.F, id.Z)

	region := Region{
		West:      west,
		South:     south,
		East:      east,
		North:     north,
		MinHeight: minHeight,
		MaxHeight: maxHeight,
	}
	center := region.Center()

	return Volume{
		ID:     id,
		Region: region,
		Center: e.ToCartesian(center),
		Size: Size{
			EastWest:   eastWestDistance(e, west, east, center.Latitude),
			NorthSouth: e.SurfaceDistance(
				ellipsoid.Cartographic{Longitude: center.Longitude, Latitude: south},
				ellipsoid.Cartographic{Longitude: center.Longitude, Latitude: north},
			),
			Vertical: maxHeight - minHeight,
		},
	}
}

// eastWestDistance measures a tile width at the given latitude. Tiles
// spanning half the globe or more have no meaningful geodesic between their
// edges, so their width is the length of the parallel instead.
func eastWestDistance(e ellipsoid.Ellipsoid, west, east, lat float64) float64 {
	if east-west >= math.Pi {
		return e.ParallelLength(lat, east-west)
	}

	return e.SurfaceDistance(
		ellipsoid.Cartographic{Longitude: west, Latitude: lat},
		ellipsoid.Cartographic{Longitude: east, Latitude: lat},
	)
}

// Resolver resolves spatial IDs on a fixed ellipsoid.
type Resolver struct {
	ellipsoid ellipsoid.Ellipsoid
}

// NewResolver returns a resolver bound to the given ellipsoid.
func NewResolver(e ellipsoid.Ellipsoid) (*Resolver, error) {
	if err := e.Validate(); err != nil {
		return nil, errors.New("creating geometry resolver failed").
			WithType(ellipsoid.ErrTypeInvalidEllipsoid).
			Wrap(err)
	}
	return &Resolver{ellipsoid: e}, nil
}

// Ellipsoid returns the ellipsoid volumes are resolved on.
func (r *Resolver) Ellipsoid() ellipsoid.Ellipsoid {
	return r.ellipsoid
}

// Resolve computes the geometry of the given ID. It does not block.
func (r *Resolver) Resolve(ctx context.Context, id spatialid.ID) (Volume, error) {
	return resolve(id, r.ellipsoid), nil
}
