package measure

import (
	"context"
	"fmt"
)

// Repository loads and stores live measures. Refresh calls LoadTree once and
// SaveMeasures at most once; implementations run both in one transaction.
type Repository interface {
	// LoadTree returns the components with the given keys, all their ancestors and the
	// direct children of those ancestors, plus the stored measures of all of them.
	LoadTree(ctx context.Context, keys []string) ([]Component, []Measure, error)
	SaveMeasures(ctx context.Context, measures []Measure) error
}

// Result summarizes a refresh.
type Result struct {
	// Changed is the number of measures written.
	Changed int
	// Ignored counts reported measures for components that do not exist.
	Ignored int
	Gates   map[string]GateStatus
}

// Refresh applies reported measures, recomputes the ancestors of every touched
// component and persists only the measures whose value changed.
func Refresh(ctx context.Context, repo Repository, gate Gate, reported []Measure) (*Result, error) {
	res := &Result{Gates: map[string]GateStatus{}}
	if len(reported) == 0 {
		return res, nil
	}

	keys := make([]string, 0, len(reported))
	seen := make(map[string]bool)
	for _, ms := range reported {
		if !seen[ms.ComponentKey] {
			seen[ms.ComponentKey] = true
			keys = append(keys, ms.ComponentKey)
		}
	}

	tree, stored, err := repo.LoadTree(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("loading measure tree: %w", err)
	}

	matrix := NewMatrix(tree, stored)
	for _, ms := range reported {
		if !matrix.Set(ms) {
			res.Ignored++
		}
	}
	res.Gates = matrix.Compute(gate)

	changed := matrix.Changed()
	if len(changed) > 0 {
		if err := repo.SaveMeasures(ctx, changed); err != nil {
			return nil, fmt.Errorf("saving measures: %w", err)
		}
	}
	res.Changed = len(changed)
	return res, nil
}
