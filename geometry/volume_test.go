package geometry

import (
	"context"
	"math"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/spatialid/ellipsoid"
	"github.com/aukilabs/spatialid/spatialid"
	"github.com/aukilabs/spatialid/tilemath"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Run("resolves a zoom 20 voxel", func(t *testing.T) {
		id := spatialid.MustParse("20/13/873654/389245")

		v, err := Resolve(id, ellipsoid.WGS84)
		require.NoError(t, err)
		require.Equal(t, id, v.ID)

		west, south, east, north, err := tilemath.TileBounds(20, 873654, 389245)
		require.NoError(t, err)
		require.Equal(t, Region{
			West:      west,
			South:     south,
			East:      east,
			North:     north,
			MinHeight: 416,
			MaxHeight: 448,
		}, v.Region)

		require.Equal(t, 32.0, v.Size.Vertical)
		require.Equal(t, ellipsoid.WGS84.ToCartesian(v.Region.Center()), v.Center)

		width := ellipsoid.WGS84.ParallelLength(v.Region.Center().Latitude, east-west)
		require.InDelta(t, width, v.Size.EastWest, 1e-3)
		require.Greater(t, v.Size.NorthSouth, 0.0)
	})

	t.Run("resolves voxels below the datum", func(t *testing.T) {
		v, err := Resolve(spatialid.MustParse("25/-4/0/0"), ellipsoid.WGS84)
		require.NoError(t, err)
		require.Equal(t, -4.0, v.Region.MinHeight)
		require.Equal(t, -3.0, v.Region.MaxHeight)
		require.Equal(t, 1.0, v.Size.Vertical)
	})

	t.Run("tiles narrow toward the poles", func(t *testing.T) {
		polar, err := Resolve(spatialid.ID{Z: 10, X: 3, Y: 0}, ellipsoid.WGS84)
		require.NoError(t, err)

		equatorial, err := Resolve(spatialid.ID{Z: 10, X: 3, Y: 512}, ellipsoid.WGS84)
		require.NoError(t, err)

		require.Less(t, polar.Size.EastWest, equatorial.Size.EastWest/5)
	})

	t.Run("zoom 0 spans the whole parallel", func(t *testing.T) {
		v, err := Resolve(spatialid.ID{}, ellipsoid.WGS84)
		require.NoError(t, err)
		require.InDelta(t, 2*math.Pi*ellipsoid.WGS84.SemiMajorAxis, v.Size.EastWest, 1e-3)
		require.Equal(t, float64(tilemath.ReferenceSpan), v.Size.Vertical)
		require.Greater(t, v.Size.NorthSouth, 0.0)
	})

	t.Run("rejects invalid ellipsoids", func(t *testing.T) {
		_, err := Resolve(spatialid.ID{}, ellipsoid.Ellipsoid{SemiMajorAxis: -1, SemiMinorAxis: 1})
		require.Error(t, err)
		require.Equal(t, ellipsoid.ErrTypeInvalidEllipsoid, errors.Type(err))
	})
}

func TestResolver(t *testing.T) {
	r, err := NewResolver(ellipsoid.GRS80)
	require.NoError(t, err)
	require.Equal(t, ellipsoid.GRS80, r.Ellipsoid())

	id := spatialid.MustParse("18/2/232837/103222")
	v, err := r.Resolve(context.Background(), id)
	require.NoError(t, err)

	expected, err := Resolve(id, ellipsoid.GRS80)
	require.NoError(t, err)
	require.Equal(t, expected, v)

	_, err = NewResolver(ellipsoid.Ellipsoid{})
	require.Equal(t, ellipsoid.ErrTypeInvalidEllipsoid, errors.Type(err))
}

func TestRegionIntersects(t *testing.T) {
	r := Region{West: 0, South: 0, East: 1, North: 1, MinHeight: 0, MaxHeight: 10}

	require.True(t, r.Intersects(Region{West: 0.5, South: 0.5, East: 2, North: 2, MinHeight: 5, MaxHeight: 20}))
	require.False(t, r.Intersects(Region{West: 1, South: 0, East: 2, North: 1, MinHeight: 0, MaxHeight: 10}))
	require.False(t, r.Intersects(Region{West: 0, South: 0, East: 1, North: 1, MinHeight: 10, MaxHeight: 20}))
}
