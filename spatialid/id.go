package spatialid

import (
	"strconv"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// MaxZoom is the finest zoom level an ID can address. 2^MaxZoom tiles
	// per axis still fit the uint32 horizontal indices.
	MaxZoom = 30

	separator = "/"
)

const (
	// ErrTypeMalformedString is the error type returned when a string does
	// not have the "{z}/{f}/{x}/{y}" shape or contains non canonical
	// decimal fields.
	ErrTypeMalformedString = "spatial_id_malformed_string"

	// ErrTypeIndexOutOfRange is the error type returned when a zoom or a
	// horizontal index is outside its valid range.
	ErrTypeIndexOutOfRange = "spatial_id_index_out_of_range"
)

// ID is a spatial voxel identifier: a Web Mercator tile extended with a
// quantized altitude index.
type ID struct {
	// The zoom level, in [0, MaxZoom].
	Z uint8

	// The altitude index. Negative values address voxels below the
	// reference datum.
	F int64

	// The horizontal tile column, in [0, 2^Z).
	X uint32

	// The horizontal tile row, in [0, 2^Z). Row 0 is the northern most row.
	Y uint32
}

// New returns a validated ID. Horizontal indices are taken as signed
// integers so that negative values are reported as out of range.
func New(z int, f int64, x, y int64) (ID, error) {
	if z < 0 || z > MaxZoom {
		return ID{}, errors.New("zoom out of range").
			WithType(ErrTypeIndexOutOfRange).
			WithTag("z", z)
	}

	limit := int64(1) << z
	if x < 0 || x >= limit {
		return ID{}, errors.New("x out of range").
			WithType(ErrTypeIndexOutOfRange).
			WithTag("z", z).
			WithTag("x", x)
	}
	if y < 0 || y >= limit {
		return ID{}, errors.New("y out of range").
			WithType(ErrTypeIndexOutOfRange).
			WithTag("z", z).
			WithTag("y", y)
	}

	return ID{
		Z: uint8(z),
		F: f,
		X: uint32(x),
		Y: uint32(y),
	}, nil
}

// Parse decodes an ID from its canonical "{z}/{f}/{x}/{y}" form.
func Parse(s string) (ID, error) {
	fields := strings.Split(s, separator)
	if len(fields) != 4 {
		return ID{}, errors.New("spatial id must have 4 fields").
			WithType(ErrTypeMalformedString).
			WithTag("spatial_id", s).
			WithTag("field_count", len(fields))
	}

	var values [4]int64
	for i, f := range fields {
		v, err := parseField(f)
		if err != nil {
			return ID{}, errors.New("parsing spatial id field failed").
				WithType(errors.Type(err)).
				WithTag("spatial_id", s).
				WithTag("field", i).
				Wrap(err)
		}
		values[i] = v
	}

	if values[0] < 0 || values[0] > MaxZoom {
		return ID{}, errors.New("zoom out of range").
			WithType(ErrTypeIndexOutOfRange).
			WithTag("spatial_id", s)
	}

	id, err := New(int(values[0]), values[1], values[2], values[3])
	if err != nil {
		return ID{}, errors.New("invalid spatial id").
			WithType(ErrTypeIndexOutOfRange).
			WithTag("spatial_id", s).
			Wrap(err)
	}
	return id, nil
}

// MustParse is like Parse but panics when s is not a valid ID.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

func parseField(f string) (int64, error) {
	v, err := strconv.ParseInt(f, 10, 64)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return 0, errors.New("field overflows a 64 bit integer").
				WithType(ErrTypeIndexOutOfRange).
				WithTag("value", f)
		}
		return 0, errors.New("field is not a decimal integer").
			WithType(ErrTypeMalformedString).
			WithTag("value", f)
	}

	// Rejects "+1", "01", "-0" and the like: the wire format is bit exact.
	if strconv.FormatInt(v, 10) != f {
		return 0, errors.New("field is not in canonical form").
			WithType(ErrTypeMalformedString).
			WithTag("value", f)
	}
	return v, nil
}

// String returns the canonical "{z}/{f}/{x}/{y}" form of the ID.
func (id ID) String() string {
	b := make([]byte, 0, 32)
	b = strconv.AppendUint(b, uint64(id.Z), 10)
	b = append(b, separator...)
	b = strconv.AppendInt(b, id.F, 10)
	b = append(b, separator...)
	b = strconv.AppendUint(b, uint64(id.X), 10)
	b = append(b, separator...)
	b = strconv.AppendUint(b, uint64(id.Y), 10)
	return string(b)
}

// MarshalText encodes the ID as its canonical string.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes an ID from its canonical string.
func (id *ID) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// Parent returns the ID of the voxel one zoom level coarser that contains
// id. It returns false for zoom 0 IDs.
func (id ID) Parent() (ID, bool) {
	if id.Z == 0 {
		return ID{}, false
	}
	return id.Ancestor(id.Z - 1)
}

// Ancestor returns the ID containing id at the given coarser zoom. It
// returns false when z is finer than the ID zoom.
//
// Shifting a signed altitude index right floors toward negative infinity,
// which keeps voxels below the datum inside their ancestor.
func (id ID) Ancestor(z uint8) (ID, bool) {
	if z > id.Z {
		return ID{}, false
	}

	shift := id.Z - z
	return ID{
		Z: z,
		F: id.F >> shift,
		X: id.X >> shift,
		Y: id.Y >> shift,
	}, true
}
