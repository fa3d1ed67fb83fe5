package pipeline

import "github.com/rendis/eyescan/internal/model"

const DefaultMinReviews = 100

// MeetsReviews reports whether h has at least min reviews.
func MeetsReviews(h model.Hospital, min int) bool {
	return h.ReviewCount >= min
}

// FilterReviews keeps records with at least min reviews, preserving order.
func FilterReviews(hospitals []model.Hospital, min int) []model.Hospital {
	var filtered []model.Hospital
	for _, h := range hospitals {
		if MeetsReviews(h, min) {
			filtered = append(filtered, h)
		}
	}
	return filtered
}
