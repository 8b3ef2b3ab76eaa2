package tasks

import (
	"fmt"

	"github.com/gammazero/toposort"
)

// ValidateSpecs checks a sprint's task list before a session is created.
// It rejects duplicate ids, references to unknown work items, and dependency
// cycles. Validation does not change dispatch order: the ordering policy
// remains the heuristic sort in Order.
func ValidateSpecs(specs []Spec) error {
	byID := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if spec.ID == "" {
			return fmt.Errorf("task with empty id (title %q)", spec.Title)
		}
		if byID[spec.ID] {
			return fmt.Errorf("duplicate task id %q", spec.ID)
		}
		byID[spec.ID] = true
	}

	var edges []toposort.Edge
	for _, spec := range specs {
		if len(spec.Dependencies) == 0 {
			edges = append(edges, toposort.Edge{nil, spec.ID})
			continue
		}
		for _, dep := range spec.Dependencies {
			if !byID[dep] {
				return fmt.Errorf("task %q depends on unknown task %q", spec.ID, dep)
			}
			if dep == spec.ID {
				return fmt.Errorf("task %q depends on itself", spec.ID)
			}
			// Edge (dep, id): dep conceptually precedes id.
			edges = append(edges, toposort.Edge{dep, spec.ID})
		}
	}

	if _, err := toposort.Toposort(edges); err != nil {
		return fmt.Errorf("dependency cycle: %w", err)
	}
	return nil
}
