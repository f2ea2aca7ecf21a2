package watch

import "github.com/flemzord/pulse/internal/snapshot"

// Delta is the difference between two observations. Both slices are sorted
// and never nil.
type Delta struct {
	Added   []string
	Removed []string
}

// Empty reports whether nothing was added or removed.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Compute returns current − previous as Added and previous − current as
// Removed. It is pure: the inputs are not modified.
func Compute(previous, current snapshot.Set) Delta {
	added := snapshot.NewSet()
	for it := range current {
		if !previous.Has(it) {
			added.Add(it)
		}
	}

	removed := snapshot.NewSet()
	for it := range previous {
		if !current.Has(it) {
			removed.Add(it)
		}
	}

	return Delta{Added: added.Sorted(), Removed: removed.Sorted()}
}
