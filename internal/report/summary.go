package report

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/eyescan/internal/model"
	"github.com/rendis/eyescan/internal/tui/styles"
)

// TopN is how many hospitals the summary lists.
const TopN = 10

// Summary holds aggregate statistics over a result set.
type Summary struct {
	City          string
	Method        string
	Count         int
	Rated         int
	AvgRating     float64
	MaxRating     float64
	MinRating     float64
	TotalReviews  int
	AvgReviews    float64
	MedianReviews float64
	Top           []model.Hospital
}

// Compute derives the summary. Rating statistics only consider rated records.
// hospitals is expected in output order (most reviewed first).
func Compute(city, method string, hospitals []model.Hospital) Summary {
	s := Summary{City: city, Method: method, Count: len(hospitals)}
	if len(hospitals) == 0 {
		return s
	}

	var ratingSum float64
	reviews := make([]int, 0, len(hospitals))
	for _, h := range hospitals {
		s.TotalReviews += h.ReviewCount
		reviews = append(reviews, h.ReviewCount)
		if !h.Rating.Valid {
			continue
		}
		if s.Rated == 0 || h.Rating.Value > s.MaxRating {
			s.MaxRating = h.Rating.Value
		}
		if s.Rated == 0 || h.Rating.Value < s.MinRating {
			s.MinRating = h.Rating.Value
		}
		ratingSum += h.Rating.Value
		s.Rated++
	}
	if s.Rated > 0 {
		s.AvgRating = ratingSum / float64(s.Rated)
	}
	s.AvgReviews = float64(s.TotalReviews) / float64(len(hospitals))
	s.MedianReviews = median(reviews)

	n := min(TopN, len(hospitals))
	s.Top = hospitals[:n:n]
	return s
}

func median(values []int) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

var (
	heading = lipgloss.NewStyle().Bold(true).Foreground(styles.Primary)
	box     = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Muted).
		Padding(0, 1)
)

// Render formats the summary as a bordered box.
func Render(s Summary) string {
	if s.Count == 0 {
		return box.Render("No hospitals found")
	}

	var b strings.Builder
	b.WriteString(heading.Render(fmt.Sprintf("Eye hospitals in %s", s.City)))
	b.WriteString("\n\n")
	row := func(label, value string) {
		b.WriteString(styles.Label.Render(label))
		b.WriteString(styles.Value.Render(value))
		b.WriteString("\n")
	}
	row("Method", s.Method)
	row("Hospitals", fmt.Sprintf("%d", s.Count))
	if s.Rated > 0 {
		row("Avg rating", fmt.Sprintf("%.2f/5.0", s.AvgRating))
		row("Highest", fmt.Sprintf("%.1f", s.MaxRating))
		row("Lowest", fmt.Sprintf("%.1f", s.MinRating))
	} else {
		row("Avg rating", model.NotAvailable)
	}
	row("Reviews", formatThousands(s.TotalReviews))
	row("Avg reviews", fmt.Sprintf("%.0f", s.AvgReviews))
	row("Median", fmt.Sprintf("%.0f", s.MedianReviews))

	b.WriteString("\n")
	b.WriteString(styles.Subtitle.Render(fmt.Sprintf("Top %d by review count", len(s.Top))))
	b.WriteString("\n")
	for i, h := range s.Top {
		fmt.Fprintf(&b, "%2d. %s\n    Reviews: %s | Rating: %s\n",
			i+1, h.Name, formatThousands(h.ReviewCount),
			styles.Rating(h.Rating.Value, h.Rating.Valid).Render(h.Rating.String()))
	}
	return box.Render(strings.TrimRight(b.String(), "\n"))
}

func formatThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + formatThousands(-n)
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
