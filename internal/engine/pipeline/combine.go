package pipeline

import "github.com/rendis/eyescan/internal/model"

// Combine merges strategy results in priority order: a record from an earlier list
// wins over one with the same id in a later list. Sightings add up. When only one
// list is non-empty it is returned as is.
func Combine(results ...[]model.Hospital) []model.Hospital {
	var nonEmpty [][]model.Hospital
	for _, r := range results {
		if len(r) > 0 {
			nonEmpty = append(nonEmpty, r)
		}
	}
	switch len(nonEmpty) {
	case 0:
		return nil
	case 1:
		return nonEmpty[0]
	}

	agg := NewAggregator()
	for _, list := range nonEmpty {
		for _, h := range list {
			if !agg.Offer(h) {
				agg.addSightings(h.PlaceID, h.Sightings-1)
			}
		}
	}
	return agg.Materialize()
}

func (a *Aggregator) addSightings(id string, n int) {
	if n <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if i, ok := a.index[id]; ok {
		a.sightings[i] += n
	}
}
