package ellipsoid

import (
	"os"
	"sort"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// ErrTypeUnknownEllipsoid is the error type returned when a preset name
	// is not registered.
	ErrTypeUnknownEllipsoid = "ellipsoid_unknown"

	// ErrTypeInvalidPresetFile is the error type returned when a preset file
	// cannot be read or decoded.
	ErrTypeInvalidPresetFile = "ellipsoid_invalid_preset_file"

	// DefaultPreset is the preset used when a caller does not name one.
	DefaultPreset = "wgs84"
)

// Presets is a set of named ellipsoids. Names are case insensitive.
type Presets map[string]Ellipsoid

// DefaultPresets returns the built in presets.
func DefaultPresets() Presets {
	return Presets{
		"wgs84":  WGS84,
		"grs80":  GRS80,
		"sphere": Sphere,
	}
}

type presetFile struct {
	Ellipsoids map[string]presetSpec `yaml:"ellipsoids"`
}

type presetSpec struct {
	SemiMajorAxis     float64 `yaml:"semi_major_axis"`
	SemiMinorAxis     float64 `yaml:"semi_minor_axis"`
	InverseFlattening float64 `yaml:"inverse_flattening"`
}

// LoadPresets returns the built in presets extended with the ones declared
// in the YAML file at path. An empty path returns the built in presets.
//
// An entry is either given by both radii or by its semi major axis and
// inverse flattening:
//
//	ellipsoids:
//	  bessel1841:
//	    semi_major_axis: 6377397.155
//	    inverse_flattening: 299.1528128
func LoadPresets(path string) (Presets, error) {
	presets := DefaultPresets()
	if strings.TrimSpace(path) == "" {
		return presets, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("reading ellipsoid preset file failed").
			WithType(ErrTypeInvalidPresetFile).
			WithTag("path", path).
			Wrap(err)
	}

	if err := presets.Decode(b); err != nil {
		return nil, errors.New("decoding ellipsoid preset file failed").
			WithType(errors.Type(err)).
			WithTag("path", path).
			Wrap(err)
	}
	return presets, nil
}

// Decode adds the presets declared in the given YAML document. Declared
// presets override existing ones with the same name.
func (p Presets) Decode(b []byte) error {
	var file presetFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return errors.New("invalid yaml").
			WithType(ErrTypeInvalidPresetFile).
			Wrap(err)
	}

	for name, spec := range file.Ellipsoids {
		e, err := spec.ellipsoid()
		if err != nil {
			return errors.New("invalid ellipsoid preset").
				WithType(ErrTypeInvalidEllipsoid).
				WithTag("name", name).
				Wrap(err)
		}
		p[normalizeName(name)] = e
	}
	return nil
}

// Lookup returns the ellipsoid registered with the given name. An empty
// name returns the default preset.
func (p Presets) Lookup(name string) (Ellipsoid, error) {
	if name == "" {
		name = DefaultPreset
	}

	e, ok := p[normalizeName(name)]
	if !ok {
		return Ellipsoid{}, errors.New("unknown ellipsoid").
			WithType(ErrTypeUnknownEllipsoid).
			WithTag("name", name)
	}
	return e, nil
}

// Names returns the sorted preset names.
func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s presetSpec) ellipsoid() (Ellipsoid, error) {
	if s.SemiMinorAxis == 0 && s.InverseFlattening != 0 {
		return FromInverseFlattening(s.SemiMajorAxis, s.InverseFlattening)
	}

	e := Ellipsoid{
		SemiMajorAxis: s.SemiMajorAxis,
		SemiMinorAxis: s.SemiMinorAxis,
	}
	return e, e.Validate()
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
