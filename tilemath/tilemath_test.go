package tilemath

import (
	"math"
	"math/rand"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/spatialid/spatialid"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func TestTileBounds(t *testing.T) {
	t.Run("zoom 0 covers the projection", func(t *testing.T) {
		west, south, east, north, err := TileBounds(0, 0, 0)
		require.NoError(t, err)
		require.InDelta(t, -math.Pi, west, epsilon)
		require.InDelta(t, math.Pi, east, epsilon)
		require.InDelta(t, MaxLatitude, north, epsilon)
		require.InDelta(t, -MaxLatitude, south, epsilon)
	})

	t.Run("zoom 1 north east quadrant", func(t *testing.T) {
		west, south, east, north, err := TileBounds(1, 1, 0)
		require.NoError(t, err)
		require.InDelta(t, 0, west, epsilon)
		require.InDelta(t, math.Pi, east, epsilon)
		require.InDelta(t, 0, south, epsilon)
		require.InDelta(t, MaxLatitude, north, epsilon)
	})

	t.Run("rejects invalid tiles", func(t *testing.T) {
		_, _, _, _, err := TileBounds(2, 4, 0)
		require.Equal(t, ErrTypeInvalidTile, errors.Type(err))

		_, _, _, _, err = TileBounds(2, 0, 4)
		require.Equal(t, ErrTypeInvalidTile, errors.Type(err))

		_, _, _, _, err = TileBounds(spatialid.MaxZoom+1, 0, 0)
		require.Equal(t, ErrTypeInvalidTile, errors.Type(err))
	})

	t.Run("longitude spans are uniform", func(t *testing.T) {
		var z uint8 = 6
		span := 2 * math.Pi / 64
		for x := uint32(0); x < 64; x++ {
			west, _, east, _, err := TileBounds(z, x, 10)
			require.NoError(t, err)
			require.InDelta(t, span, east-west, epsilon)
		}
	})
}

func TestTileAt(t *testing.T) {
	t.Run("quadrants at zoom 1", func(t *testing.T) {
		tile, err := TileAt(0.1, 0.1, 1)
		require.NoError(t, err)
		require.Equal(t, Tile{Z: 1, X: 1, Y: 0}, tile)

		tile, err = TileAt(-0.1, -0.1, 1)
		require.NoError(t, err)
		require.Equal(t, Tile{Z: 1, X: 0, Y: 1}, tile)
	})

	t.Run("antimeridian belongs to the last column", func(t *testing.T) {
		tile, err := TileAt(math.Pi, 0.2, 3)
		require.NoError(t, err)
		require.Equal(t, uint32(7), tile.X)

		tile, err = TileAt(-math.Pi, 0.2, 3)
		require.NoError(t, err)
		require.Equal(t, uint32(0), tile.X)
	})

	t.Run("wraps longitudes", func(t *testing.T) {
		tile, err := TileAt(3*math.Pi/2+0.01, 0, 2)
		require.NoError(t, err)
		require.Equal(t, uint32(1), tile.X)
	})

	t.Run("edge latitudes are clamped to the outer rows", func(t *testing.T) {
		tile, err := TileAt(0, MaxLatitude, 4)
		require.NoError(t, err)
		require.Equal(t, uint32(0), tile.Y)

		tile, err = TileAt(0, -MaxLatitude, 4)
		require.NoError(t, err)
		require.Equal(t, uint32(15), tile.Y)
	})

	t.Run("rejects positions outside of the projection", func(t *testing.T) {
		_, err := TileAt(0, 1.5, 10)
		require.Equal(t, ErrTypeOutsideProjection, errors.Type(err))

		_, err = TileAt(0, -1.5, 10)
		require.Equal(t, ErrTypeOutsideProjection, errors.Type(err))

		_, err = TileAt(math.NaN(), 0, 10)
		require.Equal(t, ErrTypeOutsideProjection, errors.Type(err))

		_, err = TileAt(0, math.Inf(1), 10)
		require.Equal(t, ErrTypeOutsideProjection, errors.Type(err))
	})

	t.Run("rejects invalid zooms", func(t *testing.T) {
		_, err := TileAt(0, 0, spatialid.MaxZoom+1)
		require.Equal(t, ErrTypeInvalidTile, errors.Type(err))
	})

	t.Run("tile bounds contain the position", func(t *testing.T) {
		rnd := rand.New(rand.NewSource(42))

		for i := 0; i < 2000; i++ {
			lon := (rnd.Float64()*2 - 1) * math.Pi
			lat := (rnd.Float64()*2 - 1) * MaxLatitude
			z := uint8(rnd.Intn(spatialid.MaxZoom + 1))

			tile, err := TileAt(lon, lat, z)
			require.NoError(t, err)

			west, south, east, north := tile.Bounds()
			require.LessOrEqual(t, west-epsilon, lon)
			require.GreaterOrEqual(t, east+epsilon, lon)
			require.LessOrEqual(t, south-epsilon, lat)
			require.GreaterOrEqual(t, north+epsilon, lat)
		}
	})
}

func TestTileID(t *testing.T) {
	id := spatialid.ID{Z: 20, F: 13, X: 873654, Y: 389245}
	tile := TileOf(id)
	require.Equal(t, Tile{Z: 20, X: 873654, Y: 389245}, tile)
	require.Equal(t, id, tile.ID(13))
}

func TestVoxelHeight(t *testing.T) {
	require.Equal(t, float64(ReferenceSpan), VoxelHeight(0))
	require.Equal(t, 32.0, VoxelHeight(20))
	require.Equal(t, 1.0, VoxelHeight(25))
	require.Equal(t, 0.03125, VoxelHeight(30))
}

func TestAltitudeToIndex(t *testing.T) {
	t.Run("floors positive altitudes", func(t *testing.T) {
		require.Equal(t, int64(3), AltitudeToIndex(120, 20))
		require.Equal(t, int64(0), AltitudeToIndex(0, 20))
		require.Equal(t, int64(1), AltitudeToIndex(32, 20))
		require.Equal(t, int64(0), AltitudeToIndex(31.999, 20))
	})

	t.Run("floors negative altitudes", func(t *testing.T) {
		require.Equal(t, int64(-1), AltitudeToIndex(-0.5, 20))
		require.Equal(t, int64(-1), AltitudeToIndex(-32, 20))
		require.Equal(t, int64(-2), AltitudeToIndex(-32.5, 20))
	})

	t.Run("saturates", func(t *testing.T) {
		require.Equal(t, int64(math.MaxInt64), AltitudeToIndex(math.Inf(1), 30))
		require.Equal(t, int64(math.MinInt64), AltitudeToIndex(math.Inf(-1), 30))
		require.Equal(t, int64(0), AltitudeToIndex(math.NaN(), 30))
	})

	t.Run("index range contains the altitude", func(t *testing.T) {
		rnd := rand.New(rand.NewSource(7))

		for i := 0; i < 2000; i++ {
			alt := (rnd.Float64()*2 - 1) * 20000
			z := uint8(rnd.Intn(spatialid.MaxZoom + 1))

			f := AltitudeToIndex(alt, z)
			min, max := IndexToAltitudeRange(f, z)
			require.LessOrEqual(t, min, alt)
			require.Less(t, alt, max)
			require.Equal(t, VoxelHeight(z), max-min)
		}
	})

	t.Run("tiny altitudes", func(t *testing.T) {
		tiny := []float64{
			-math.SmallestNonzeroFloat64,
			-1e-317,
			-1e-300,
			math.SmallestNonzeroFloat64,
			1e-317,
		}

		for _, alt := range tiny {
			for _, z := range []uint8{0, 10, 24, spatialid.MaxZoom} {
				f := AltitudeToIndex(alt, z)
				min, max := IndexToAltitudeRange(f, z)
				require.LessOrEqual(t, min, alt, "altitude %g zoom %d", alt, z)
				require.Less(t, alt, max, "altitude %g zoom %d", alt, z)
			}
		}

		require.Equal(t, int64(-1), AltitudeToIndex(-math.SmallestNonzeroFloat64, 0))
		require.Equal(t, int64(0), AltitudeToIndex(math.SmallestNonzeroFloat64, 0))
		require.Equal(t, int64(0), AltitudeToIndex(math.Copysign(0, -1), 0))
	})
}

func TestIndexToAltitudeRange(t *testing.T) {
	min, max := IndexToAltitudeRange(3, 20)
	require.Equal(t, 96.0, min)
	require.Equal(t, 128.0, max)

	min, max = IndexToAltitudeRange(-1, 20)
	require.Equal(t, -32.0, min)
	require.Equal(t, 0.0, max)
}
