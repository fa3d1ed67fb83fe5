package pipeline

import (
	"slices"
	"sync"

	"github.com/rendis/eyescan/internal/model"
)

// Aggregator keeps one record per place id. The first record offered for an id wins;
// later offers only count as additional sightings.
type Aggregator struct {
	mu        sync.Mutex
	index     map[string]int
	records   []model.Hospital
	sightings []int
}

func NewAggregator() *Aggregator {
	return &Aggregator{index: make(map[string]int)}
}

// Offer inserts h if its id is new and reports whether it did.
func (a *Aggregator) Offer(h model.Hospital) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if i, ok := a.index[h.PlaceID]; ok {
		a.sightings[i]++
		return false
	}
	a.index[h.PlaceID] = len(a.records)
	a.records = append(a.records, h)
	seen := h.Sightings
	if seen < 1 {
		seen = 1
	}
	a.sightings = append(a.sightings, seen)
	return true
}

// Sight records another sighting of id and reports whether the id is stored.
func (a *Aggregator) Sight(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, ok := a.index[id]
	if ok {
		a.sightings[i]++
	}
	return ok
}

func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Materialize returns copies of the stored records sorted by review count descending.
// Ties keep insertion order.
func (a *Aggregator) Materialize() []model.Hospital {
	a.mu.Lock()
	out := make([]model.Hospital, len(a.records))
	for i, h := range a.records {
		h.Sightings = a.sightings[i]
		out[i] = h
	}
	a.mu.Unlock()

	SortByReviews(out)
	return out
}

// SortByReviews sorts in place by review count descending, keeping the order of ties.
func SortByReviews(hospitals []model.Hospital) {
	slices.SortStableFunc(hospitals, func(a, b model.Hospital) int {
		return b.ReviewCount - a.ReviewCount
	})
}
