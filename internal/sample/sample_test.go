package sample

import (
	"testing"

	"github.com/rendis/eyescan/internal/model"
)

func TestAll(t *testing.T) {
	all, err := All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 10 {
		t.Fatalf("got %d records, want 10", len(all))
	}
	seen := map[string]bool{}
	for _, h := range all {
		if seen[h.PlaceID] {
			t.Errorf("duplicate id %s", h.PlaceID)
		}
		seen[h.PlaceID] = true
		if h.Provenance.Strategy != model.StrategySample || !h.Rating.Valid || h.OpenNow == nil {
			t.Errorf("unexpected record %+v", h)
		}
	}
	if all[0].Name != "L V Prasad Eye Institute" || all[0].ReviewCount != 1850 {
		t.Errorf("first record = %+v", all[0])
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		min   int
		want  int
		first string
	}{
		{100, 10, "sample_2"},
		{1200, 5, "sample_2"},
		{2000, 1, "sample_2"},
		{5000, 0, ""},
	}
	for _, tt := range tests {
		got, err := Load(tt.min)
		if err != nil {
			t.Fatalf("Load(%d): %v", tt.min, err)
		}
		if len(got) != tt.want {
			t.Errorf("Load(%d) returned %d records, want %d", tt.min, len(got), tt.want)
			continue
		}
		for i, h := range got {
			if h.ReviewCount < tt.min {
				t.Errorf("Load(%d): %s has %d reviews", tt.min, h.PlaceID, h.ReviewCount)
			}
			if i > 0 && got[i-1].ReviewCount < h.ReviewCount {
				t.Errorf("Load(%d) not sorted at %d", tt.min, i)
			}
		}
		if tt.want > 0 && got[0].PlaceID != tt.first {
			t.Errorf("Load(%d) first = %s, want %s", tt.min, got[0].PlaceID, tt.first)
		}
	}
}
