package volumeset

import (
	"iter"

	"github.com/aukilabs/spatialid/geometry"
	"github.com/aukilabs/spatialid/spatialid"
)

// Volume is a resolved volume with its caller supplied metadata.
type Volume[M any] struct {
	geometry.Volume
	Metadata M `json:"metadata"`
}

// Set is an ordered collection of volumes with unique IDs. It is immutable
// and safe for concurrent use.
type Set[M any] struct {
	volumes   []Volume[M]
	positions map[spatialid.ID]int
	index     *gridIndex

	attempted int
	failed    int
}

func newSet[M any](entries []entry[M], volumes []geometry.Volume, resolved []bool) *Set[M] {
	s := &Set[M]{
		volumes:   make([]Volume[M], 0, len(entries)),
		positions: make(map[spatialid.ID]int, len(entries)),
	}

	for i, e := range entries {
		if !resolved[i] {
			continue
		}

		s.positions[e.id] = len(s.volumes)
		s.volumes = append(s.volumes, Volume[M]{
			Volume:   volumes[i],
			Metadata: e.metadata,
		})
	}

	regions := make([]geometry.Region, len(s.volumes))
	ids := make([]spatialid.ID, len(s.volumes))
	for i, v := range s.volumes {
		regions[i] = v.Region
		ids[i] = v.ID
	}
	s.index = newGridIndex(ids, regions)
	return s
}

// All returns an iterator over the volumes in set order.
func (s *Set[M]) All() iter.Seq[Volume[M]] {
	return func(yield func(Volume[M]) bool) {
		if s == nil {
			return
		}

		for _, v := range s.volumes {
			if !yield(v) {
				return
			}
		}
	}
}

// Len returns the number of volumes.
func (s *Set[M]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.volumes)
}

// Get returns the volume with the given ID.
func (s *Set[M]) Get(id spatialid.ID) (Volume[M], bool) {
	if s == nil {
		return Volume[M]{}, false
	}

	pos, ok := s.positions[id]
	if !ok {
		return Volume[M]{}, false
	}
	return s.volumes[pos], true
}

// IDs returns the volume IDs in set order.
func (s *Set[M]) IDs() []spatialid.ID {
	ids := make([]spatialid.ID, 0, s.Len())
	for v := range s.All() {
		ids = append(ids, v.ID)
	}
	return ids
}

// Attempted returns the number of distinct items the build tried to resolve,
// malformed keys included.
func (s *Set[M]) Attempted() int {
	if s == nil {
		return 0
	}
	return s.attempted
}

// Failed returns the number of items that were skipped because they failed.
func (s *Set[M]) Failed() int {
	if s == nil {
		return 0
	}
	return s.failed
}

// Search returns the volumes that intersect the given region, in set order.
// A region whose west is greater than its east crosses the antimeridian.
func (s *Set[M]) Search(region geometry.Region) []Volume[M] {
	if s.Len() == 0 {
		return nil
	}

	var res []Volume[M]
	for _, pos := range s.index.search(region) {
		res = append(res, s.volumes[pos])
	}
	return res
}
