package tasks

import "sort"

// Order returns tasks in dispatch order. The sort is a heuristic, not a
// topological sort: tasks with fewer declared dependencies go first, then
// higher priority, then lower complexity. The sort is stable so identical
// inputs always produce identical output.
func Order(list []*Task) []*Task {
	out := make([]*Task, len(list))
	copy(out, list)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if len(a.Dependencies) != len(b.Dependencies) {
			return len(a.Dependencies) < len(b.Dependencies)
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Complexity < b.Complexity
	})

	return out
}

// FirstQueued returns the first task in dispatch order that is still queued,
// or nil if none is.
func FirstQueued(list []*Task) *Task {
	for _, t := range Order(list) {
		if t.Status == StatusQueued {
			return t
		}
	}
	return nil
}
