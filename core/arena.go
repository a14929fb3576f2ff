package core

import "github.com/signalsfoundry/vaccine-rollout-sim/model"

// arena stores per-individual values indexed by IndividualID. Values are
// written once at cohort entry; the backing slice only ever grows.
type arena[T any] struct {
	rows []T
	set  []bool
}

func (a *arena[T]) put(id model.IndividualID, v T) {
	idx := int(id)
	if idx >= len(a.rows) {
		grow := idx + 1 - len(a.rows)
		a.rows = append(a.rows, make([]T, grow)...)
		a.set = append(a.set, make([]bool, grow)...)
	}
	a.rows[idx] = v
	a.set[idx] = true
}

func (a *arena[T]) get(id model.IndividualID) (T, bool) {
	idx := int(id)
	if idx >= len(a.rows) || !a.set[idx] {
		var zero T
		return zero, false
	}
	return a.rows[idx], true
}

func (a *arena[T]) len() int {
	n := 0
	for _, ok := range a.set {
		if ok {
			n++
		}
	}
	return n
}
