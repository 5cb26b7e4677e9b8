package geoid

import (
	"context"
	"io"
	"math"
	"os"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/segmentio/encoding/json"
)

// Grid is a regular latitude/longitude grid of geoid heights. Row 0 is the
// northern most row and column 0 the western most column.
type Grid struct {
	// The longitude of the first column, in degrees.
	West float64 `json:"west"`

	// The latitude of the first row, in degrees.
	North float64 `json:"north"`

	// The spacing between columns and rows, in degrees.
	LonStep float64 `json:"lonStep"`
	LatStep float64 `json:"latStep"`

	Columns int `json:"columns"`
	Rows    int `json:"rows"`

	// Heights in meters, row by row.
	Heights []float64 `json:"heights"`
}

// LoadGrid reads a JSON encoded grid from a file. Files ending with .zst are
// decompressed with zstd.
func LoadGrid(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New("opening geoid grid failed").
			WithType(ErrTypeInvalidGrid).
			WithTag("path", path).
			Wrap(err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, errors.New("opening compressed geoid grid failed").
				WithType(ErrTypeInvalidGrid).
				WithTag("path", path).
				Wrap(err)
		}
		defer dec.Close()
		r = dec
	}

	g, err := DecodeGrid(r)
	if err != nil {
		return nil, errors.New("loading geoid grid failed").
			WithType(errors.Type(err)).
			WithTag("path", path).
			Wrap(err)
	}
	return g, nil
}

// DecodeGrid reads a JSON encoded grid.
func DecodeGrid(r io.Reader) (*Grid, error) {
	var g Grid
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, errors.New("decoding geoid grid failed").
			WithType(ErrTypeInvalidGrid).
			Wrap(err)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate returns an error when the grid is malformed.
func (g *Grid) Validate() error {
	if g.Columns < 2 || g.Rows < 2 {
		return errors.New("geoid grid needs at least 2 columns and 2 rows").
			WithType(ErrTypeInvalidGrid).
			WithTag("columns", g.Columns).
			WithTag("rows", g.Rows)
	}

	if !(g.LonStep > 0) || !(g.LatStep > 0) {
		return errors.New("geoid grid steps must be positive").
			WithType(ErrTypeInvalidGrid).
			WithTag("lon_step", g.LonStep).
			WithTag("lat_step", g.LatStep)
	}

	if len(g.Heights) != g.Columns*g.Rows {
		return errors.New("geoid grid size mismatch").
			WithType(ErrTypeInvalidGrid).
			WithTag("expected", g.Columns*g.Rows).
			WithTag("actual", len(g.Heights))
	}

	if g.South() < -90-1e-9 || g.North > 90+1e-9 {
		return errors.New("geoid grid latitudes out of range").
			WithType(ErrTypeInvalidGrid).
			WithTag("north", g.North).
			WithTag("south", g.South())
	}
	return nil
}

// South returns the latitude of the last row.
func (g *Grid) South() float64 {
	return g.North - float64(g.Rows-1)*g.LatStep
}

// global reports whether the columns wrap around the globe.
func (g *Grid) global() bool {
	return float64(g.Columns)*g.LonStep >= 360-1e-9
}

// Height returns the bilinear interpolation of the geoid heights around the
// given position.
func (g *Grid) Height(ctx context.Context, lon, lat float64) (float64, error) {
	if math.IsNaN(lon) || math.IsNaN(lat) || lat > g.North || lat < g.South() {
		return 0, errors.New("position outside of geoid grid").
			WithType(ErrTypeOutsideGrid).
			WithTag("lon", lon).
			WithTag("lat", lat)
	}

	x := math.Mod(lon-g.West, 360)
	if x < 0 {
		x += 360
	}
	x /= g.LonStep

	maxX := float64(g.Columns - 1)
	if g.global() {
		maxX = float64(g.Columns)
	}
	if x > maxX {
		return 0, errors.New("position outside of geoid grid").
			WithType(ErrTypeOutsideGrid).
			WithTag("lon", lon).
			WithTag("lat", lat)
	}

	y := (g.North - lat) / g.LatStep

	col0 := min(int(math.Floor(x)), g.Columns-1)
	row0 := min(int(math.Floor(y)), g.Rows-2)
	col1 := col0 + 1
	if col1 == g.Columns {
		if g.global() {
			col1 = 0
		} else {
			col0, col1 = g.Columns-2, g.Columns-1
		}
	}

	fx := x - float64(col0)
	fy := y - float64(row0)

	h00 := g.at(col0, row0)
	h10 := g.at(col1, row0)
	h01 := g.at(col0, row0+1)
	h11 := g.at(col1, row0+1)

	top := h00 + (h10-h00)*fx
	bottom := h01 + (h11-h01)*fx
	return top + (bottom-top)*fy, nil
}

func (g *Grid) at(col, row int) float64 {
	return g.Heights[row*g.Columns+col]
}
