package volumeset

import "github.com/aukilabs/spatialid/spatialid"

// Delta lists the differences between two sets.
type Delta struct {
	// IDs only in the new set, in new set order.
	Added []spatialid.ID `json:"added"`

	// IDs only in the old set, in old set order.
	Removed []spatialid.ID `json:"removed"`

	// IDs in both sets whose metadata differ, in new set order.
	Changed []spatialid.ID `json:"changed"`
}

// Empty reports whether the sets were equivalent.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff compares a set with a newer one. Metadata are compared with equal; a
// nil equal only compares membership. Nil sets are empty.
func Diff[M any](before, after *Set[M], equal func(a, b M) bool) Delta {
	var d Delta

	for v := range after.All() {
		prev, ok := before.Get(v.ID)
		if !ok {
			d.Added = append(d.Added, v.ID)
			continue
		}

		if equal != nil && !equal(prev.Metadata, v.Metadata) {
			d.Changed = append(d.Changed, v.ID)
		}
	}

	for v := range before.All() {
		if _, ok := after.Get(v.ID); !ok {
			d.Removed = append(d.Removed, v.ID)
		}
	}
	return d
}
