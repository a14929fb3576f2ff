package kb

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

// ErrIndividualNotFound indicates an ID that was never added to the KB.
var ErrIndividualNotFound = errors.New("individual not found")

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	// EventCohortEntered fires when new individuals are added, either as
	// the initial population or as births.
	EventCohortEntered EventType = iota
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type EventType
	// IDs are the individuals that entered, in ascending order.
	IDs          []model.IndividualID
	CreationTime time.Time
}

// KnowledgeBase is the in-memory population table. Rows live in an arena
// indexed by IndividualID; rows are appended and never removed, so an ID is
// a stable index for the life of the run.
type KnowledgeBase struct {
	mu sync.RWMutex

	rows []model.Individual

	// subs keep registration order; nextSub identifies each one for removal.
	subs    []subscription
	nextSub uint64
}

type subscription struct {
	id uint64
	fn func(Event)
}

// NewKnowledgeBase constructs an empty population.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{}
}

// AddCohort appends the given individuals, assigning each a fresh ID and
// resetting its vaccination columns, then notifies subscribers. The IDs are
// returned in the order of the input.
func (kb *KnowledgeBase) AddCohort(members []model.Individual, created time.Time) []model.IndividualID {
	if len(members) == 0 {
		return nil
	}
	kb.mu.Lock()
	ids := make([]model.IndividualID, len(members))
	for i, m := range members {
		id := model.IndividualID(len(kb.rows))
		m.ID = id
		m.Status = model.StatusAlive
		m.EntranceTime = created
		m.VaccineDose = model.DoseNone
		m.VaccineDoseCount = 0
		m.VaccineEventTime = time.Time{}
		kb.rows = append(kb.rows, m)
		ids[i] = id
	}
	event := Event{
		Type:         EventCohortEntered,
		IDs:          append([]model.IndividualID(nil), ids...),
		CreationTime: created,
	}
	subs := append([]subscription(nil), kb.subs...)
	kb.mu.Unlock()

	// Notify subscribers outside the lock so they can read and write rows.
	for _, sub := range subs {
		sub.fn(event)
	}
	return ids
}

// Get returns copies of the rows for ids, in the same order.
func (kb *KnowledgeBase) Get(ids []model.IndividualID) ([]model.Individual, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	out := make([]model.Individual, len(ids))
	for i, id := range ids {
		if uint64(id) >= uint64(len(kb.rows)) {
			return nil, fmt.Errorf("%w: %d", ErrIndividualNotFound, id)
		}
		out[i] = kb.rows[id]
	}
	return out, nil
}

// Individual returns a copy of one row.
func (kb *KnowledgeBase) Individual(id model.IndividualID) (model.Individual, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	if uint64(id) >= uint64(len(kb.rows)) {
		return model.Individual{}, false
	}
	return kb.rows[id], true
}

// Update writes rows back by ID. Either every row is written or, when an
// ID is unknown, none are.
func (kb *KnowledgeBase) Update(rows []model.Individual) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	for _, r := range rows {
		if uint64(r.ID) >= uint64(len(kb.rows)) {
			return fmt.Errorf("%w: %d", ErrIndividualNotFound, r.ID)
		}
	}
	for _, r := range rows {
		kb.rows[r.ID] = r
	}
	return nil
}

// IDs returns every ID in the population, alive or dead.
func (kb *KnowledgeBase) IDs() []model.IndividualID {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	ids := make([]model.IndividualID, len(kb.rows))
	for i := range kb.rows {
		ids[i] = model.IndividualID(i)
	}
	return ids
}

// Alive returns snapshot copies of every living individual.
func (kb *KnowledgeBase) Alive() []model.Individual {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]model.Individual, 0, len(kb.rows))
	for _, r := range kb.rows {
		if r.Alive() {
			res = append(res, r)
		}
	}
	return res
}

// Len returns the number of individuals ever added.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.rows)
}

// CountAlive returns the number of living individuals.
func (kb *KnowledgeBase) CountAlive() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	n := 0
	for _, r := range kb.rows {
		if r.Alive() {
			n++
		}
	}
	return n
}

// Subscribe registers a callback for KB events. Callbacks run in
// registration order. The returned function removes this subscription and
// is safe to call more than once.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.nextSub++
	id := kb.nextSub
	kb.subs = append(kb.subs, subscription{id: id, fn: fn})

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		for i, sub := range kb.subs {
			if sub.id == id {
				kb.subs = append(kb.subs[:i:i], kb.subs[i+1:]...)
				return
			}
		}
	}
}
