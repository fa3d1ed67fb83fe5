package pipeline

import (
	"strings"

	"github.com/rendis/eyescan/internal/model"
)

const (
	DefaultGridMaxPages = 3
	DefaultTextMaxPages = 2
)

// PlanGrid returns one nearby-search descriptor per zone and keyword, zone-major:
// every keyword of zone 1 precedes any keyword of zone 2.
func PlanGrid(zones []model.Zone, keywords []string, radius, maxPages int) []model.QueryDescriptor {
	if maxPages <= 0 {
		maxPages = DefaultGridMaxPages
	}
	plan := make([]model.QueryDescriptor, 0, len(zones)*len(keywords))
	for _, z := range zones {
		for _, kw := range keywords {
			plan = append(plan, model.QueryDescriptor{
				Strategy: model.StrategyGrid,
				Zone:     z,
				Keyword:  kw,
				Radius:   radius,
				MaxPages: maxPages,
			})
		}
	}
	return plan
}

// PlanText returns one text-search descriptor per keyword with the query "<keyword> <city>".
func PlanText(city string, keywords []string, maxPages int) []model.QueryDescriptor {
	if maxPages <= 0 {
		maxPages = DefaultTextMaxPages
	}
	plan := make([]model.QueryDescriptor, 0, len(keywords))
	for _, kw := range keywords {
		q := strings.TrimSpace(kw + " " + city)
		plan = append(plan, model.QueryDescriptor{
			Strategy: model.StrategyText,
			Keyword:  kw,
			Query:    q,
			MaxPages: maxPages,
		})
	}
	return plan
}
