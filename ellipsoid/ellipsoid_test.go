package ellipsoid

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func dms(deg, min, sec float64) float64 {
	sign := 1.0
	if deg < 0 {
		sign = -1
		deg = -deg
	}
	return sign * (deg + min/60 + sec/3600) * math.Pi / 180
}

func TestValidate(t *testing.T) {
	require.NoError(t, WGS84.Validate())
	require.NoError(t, GRS80.Validate())
	require.NoError(t, Sphere.Validate())

	invalid := []Ellipsoid{
		{},
		{SemiMajorAxis: -1, SemiMinorAxis: -1},
		{SemiMajorAxis: 6378137, SemiMinorAxis: 0},
		{SemiMajorAxis: math.NaN(), SemiMinorAxis: 1},
		{SemiMajorAxis: math.Inf(1), SemiMinorAxis: 1},
		{SemiMajorAxis: 1, SemiMinorAxis: 2},
	}
	for _, e := range invalid {
		err := e.Validate()
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidEllipsoid, errors.Type(err))
	}
}

func TestFromInverseFlattening(t *testing.T) {
	e, err := FromInverseFlattening(6378137, 298.257223563)
	require.NoError(t, err)
	require.InDelta(t, WGS84.SemiMinorAxis, e.SemiMinorAxis, 1e-6)

	e, err = FromInverseFlattening(1000, 0)
	require.NoError(t, err)
	require.Equal(t, Ellipsoid{SemiMajorAxis: 1000, SemiMinorAxis: 1000}, e)

	_, err = FromInverseFlattening(-1, 300)
	require.Equal(t, ErrTypeInvalidEllipsoid, errors.Type(err))
}

func TestToCartesian(t *testing.T) {
	t.Run("equator at the prime meridian", func(t *testing.T) {
		c := WGS84.ToCartesian(Cartographic{})
		require.InDelta(t, WGS84.SemiMajorAxis, c.X, 1e-6)
		require.InDelta(t, 0, c.Y, 1e-6)
		require.InDelta(t, 0, c.Z, 1e-6)
	})

	t.Run("height along the equator", func(t *testing.T) {
		c := WGS84.ToCartesian(Cartographic{Longitude: math.Pi / 2, Height: 100})
		require.InDelta(t, 0, c.X, 1e-6)
		require.InDelta(t, WGS84.SemiMajorAxis+100, c.Y, 1e-6)
		require.InDelta(t, 0, c.Z, 1e-6)
	})

	t.Run("north pole", func(t *testing.T) {
		c := WGS84.ToCartesian(Cartographic{Latitude: math.Pi / 2})
		require.InDelta(t, 0, c.X, 1e-6)
		require.InDelta(t, 0, c.Y, 1e-6)
		require.InDelta(t, WGS84.SemiMinorAxis, c.Z, 1e-6)
	})

	t.Run("sphere positions are at radius plus height", func(t *testing.T) {
		c := Sphere.ToCartesian(Cartographic{Longitude: 1.2, Latitude: -0.7, Height: 42})
		require.InDelta(t, Sphere.SemiMajorAxis+42, c.Magnitude(), 1e-6)
	})
}

func TestSurfaceDistance(t *testing.T) {
	t.Run("coincident points", func(t *testing.T) {
		p := Cartographic{Longitude: 0.3, Latitude: 0.4}
		require.Equal(t, 0.0, WGS84.SurfaceDistance(p, p))
	})

	t.Run("one degree along the equator", func(t *testing.T) {
		d := WGS84.SurfaceDistance(
			Cartographic{},
			Cartographic{Longitude: math.Pi / 180},
		)
		require.InDelta(t, 111319.4908, d, 1e-3)
	})

	t.Run("equator to pole", func(t *testing.T) {
		d := WGS84.SurfaceDistance(
			Cartographic{},
			Cartographic{Latitude: math.Pi / 2},
		)
		require.InDelta(t, 10001965.729, d, 1e-2)
	})

	t.Run("flinders peak to buninyong", func(t *testing.T) {
		d := GRS80.SurfaceDistance(
			Cartographic{Longitude: dms(144, 25, 29.52440), Latitude: dms(-37, 57, 3.72030)},
			Cartographic{Longitude: dms(143, 55, 35.38390), Latitude: dms(-37, 39, 10.15610)},
		)
		require.InDelta(t, 54972.271, d, 1e-2)
	})

	t.Run("sphere is a great circle", func(t *testing.T) {
		d := Sphere.SurfaceDistance(
			Cartographic{},
			Cartographic{Longitude: math.Pi / 2},
		)
		require.InDelta(t, Sphere.SemiMajorAxis*math.Pi/2, d, 1e-6)
	})

	t.Run("antipodal points", func(t *testing.T) {
		d := WGS84.SurfaceDistance(
			Cartographic{},
			Cartographic{Longitude: math.Pi},
		)
		require.InDelta(t, 20003931.4586, d, 1e-2)
	})

	t.Run("nearly antipodal points", func(t *testing.T) {
		d := WGS84.SurfaceDistance(
			Cartographic{},
			Cartographic{Longitude: dms(179, 30, 0), Latitude: dms(0, 30, 0)},
		)
		require.False(t, math.IsNaN(d))
		require.Greater(t, d, 19900000.0)
		require.Less(t, d, 20003931.4586)
	})

	t.Run("is symmetric", func(t *testing.T) {
		a := Cartographic{Longitude: 2.43, Latitude: 0.62}
		b := Cartographic{Longitude: 2.44, Latitude: 0.63}
		require.InDelta(t, WGS84.SurfaceDistance(a, b), WGS84.SurfaceDistance(b, a), 1e-6)
	})
}

func TestParallelLength(t *testing.T) {
	require.InDelta(t, WGS84.SemiMajorAxis*2*math.Pi, WGS84.ParallelLength(0, 2*math.Pi), 1e-6)
	require.InDelta(t, 0, WGS84.ParallelLength(math.Pi/2, math.Pi), 1e-6)
}

func TestPresets(t *testing.T) {
	t.Run("lookup defaults", func(t *testing.T) {
		presets := DefaultPresets()

		e, err := presets.Lookup("")
		require.NoError(t, err)
		require.Equal(t, WGS84, e)

		e, err = presets.Lookup(" GRS80 ")
		require.NoError(t, err)
		require.Equal(t, GRS80, e)

		_, err = presets.Lookup("mars")
		require.Equal(t, ErrTypeUnknownEllipsoid, errors.Type(err))

		require.Equal(t, []string{"grs80", "sphere", "wgs84"}, presets.Names())
	})

	t.Run("decode yaml presets", func(t *testing.T) {
		presets := DefaultPresets()
		err := presets.Decode([]byte(`
ellipsoids:
  Bessel1841:
    semi_major_axis: 6377397.155
    inverse_flattening: 299.1528128
  moon:
    semi_major_axis: 1737400
    semi_minor_axis: 1737400
`))
		require.NoError(t, err)

		e, err := presets.Lookup("bessel1841")
		require.NoError(t, err)
		require.InDelta(t, 6356078.963, e.SemiMinorAxis, 1e-3)

		e, err = presets.Lookup("moon")
		require.NoError(t, err)
		require.Equal(t, Ellipsoid{SemiMajorAxis: 1737400, SemiMinorAxis: 1737400}, e)
	})

	t.Run("decode rejects invalid presets", func(t *testing.T) {
		err := DefaultPresets().Decode([]byte(`
ellipsoids:
  broken:
    semi_major_axis: -1
    semi_minor_axis: 10
`))
		require.Equal(t, ErrTypeInvalidEllipsoid, errors.Type(err))

		err = DefaultPresets().Decode([]byte("ellipsoids: [1, 2"))
		require.Equal(t, ErrTypeInvalidPresetFile, errors.Type(err))
	})

	t.Run("load from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ellipsoids.yaml")
		err := os.WriteFile(path, []byte(`
ellipsoids:
  airy1830:
    semi_major_axis: 6377563.396
    semi_minor_axis: 6356256.909
`), 0o600)
		require.NoError(t, err)

		presets, err := LoadPresets(path)
		require.NoError(t, err)
		require.Len(t, presets, 4)

		_, err = presets.Lookup("airy1830")
		require.NoError(t, err)
	})

	t.Run("load without file returns defaults", func(t *testing.T) {
		presets, err := LoadPresets("")
		require.NoError(t, err)
		require.Equal(t, DefaultPresets(), presets)
	})

	t.Run("load missing file", func(t *testing.T) {
		_, err := LoadPresets(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Equal(t, ErrTypeInvalidPresetFile, errors.Type(err))
	})
}
