package geoid

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// ErrTypeOutsideGrid is the error type returned for positions that a
	// grid does not cover.
	ErrTypeOutsideGrid = "geoid_outside_grid"

	// ErrTypeInvalidGrid is the error type returned for malformed grids.
	ErrTypeInvalidGrid = "geoid_invalid_grid"
)

// Source returns the geoid height, the separation in meters between the
// geoid and the ellipsoid, at a position given in degrees.
type Source interface {
	Height(ctx context.Context, lon, lat float64) (float64, error)
}

// Constant is a source with the same geoid height everywhere.
type Constant float64

// Height returns c.
func (c Constant) Height(ctx context.Context, lon, lat float64) (float64, error) {
	return float64(c), nil
}

// ToEllipsoidal converts an altitude above mean sea level to a height above
// the ellipsoid.
func ToEllipsoidal(ctx context.Context, src Source, lon, lat, orthometric float64) (float64, error) {
	n, err := src.Height(ctx, lon, lat)
	if err != nil {
		return 0, errors.New("getting geoid height failed").
			WithType(errors.Type(err)).
			WithTag("lon", lon).
			WithTag("lat", lat).
			Wrap(err)
	}
	return orthometric + n, nil
}

// ToOrthometric converts a height above the ellipsoid to an altitude above
// mean sea level.
func ToOrthometric(ctx context.Context, src Source, lon, lat, ellipsoidal float64) (float64, error) {
	n, err := src.Height(ctx, lon, lat)
	if err != nil {
		return 0, errors.New("getting geoid height failed").
			WithType(errors.Type(err)).
			WithTag("lon", lon).
			WithTag("lat", lat).
			Wrap(err)
	}
	return ellipsoidal - n, nil
}
