package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rendis/eyescan/internal/model"
)

// Columns is the header of the output file, in order.
var Columns = []string{
	"name",
	"address",
	"latitude",
	"longitude",
	"rating",
	"review_count",
	"phone",
	"website",
	"place_id",
	"open_now",
	"zone",
	"keyword_found",
	"search_method",
	"sightings",
}

// WriteCSV writes the header and one row per hospital. An absent rating or
// open-now value is written as an empty cell.
func WriteCSV(w io.Writer, hospitals []model.Hospital) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, h := range hospitals {
		if err := cw.Write(row(h)); err != nil {
			return fmt.Errorf("writing %s: %w", h.PlaceID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile creates path and writes hospitals to it.
func WriteCSVFile(path string, hospitals []model.Hospital) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := WriteCSV(f, hospitals); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func row(h model.Hospital) []string {
	rating := ""
	if h.Rating.Valid {
		rating = strconv.FormatFloat(h.Rating.Value, 'f', -1, 64)
	}
	openNow := ""
	if h.OpenNow != nil {
		openNow = strconv.FormatBool(*h.OpenNow)
	}
	return []string{
		h.Name,
		h.Address,
		strconv.FormatFloat(h.Lat, 'f', 7, 64),
		strconv.FormatFloat(h.Lng, 'f', 7, 64),
		rating,
		strconv.Itoa(h.ReviewCount),
		h.Phone,
		h.Website,
		h.PlaceID,
		openNow,
		strconv.Itoa(h.Provenance.Zone),
		h.Provenance.Keyword,
		string(h.Provenance.Strategy),
		strconv.Itoa(h.Sightings),
	}
}

// ReadCSV parses a file written by WriteCSV. Columns are located by header name,
// so files with extra or reordered columns are accepted.
func ReadCSV(r io.Reader) ([]model.Hospital, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, required := range []string{"name", "place_id", "latitude", "longitude", "review_count"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	get := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var hospitals []model.Hospital
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		h := model.Hospital{
			PlaceID: get(rec, "place_id"),
			Name:    get(rec, "name"),
			Address: get(rec, "address"),
			Phone:   get(rec, "phone"),
			Website: get(rec, "website"),
			Provenance: model.Provenance{
				Strategy: model.Strategy(get(rec, "search_method")),
				Keyword:  get(rec, "keyword_found"),
			},
		}
		if h.Lat, err = strconv.ParseFloat(get(rec, "latitude"), 64); err != nil {
			return nil, fmt.Errorf("line %d: latitude: %w", line, err)
		}
		if h.Lng, err = strconv.ParseFloat(get(rec, "longitude"), 64); err != nil {
			return nil, fmt.Errorf("line %d: longitude: %w", line, err)
		}
		if h.ReviewCount, err = strconv.Atoi(get(rec, "review_count")); err != nil {
			return nil, fmt.Errorf("line %d: review_count: %w", line, err)
		}
		if v := get(rec, "rating"); v != "" && v != model.NotAvailable {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: rating: %w", line, err)
			}
			h.Rating = model.NewRating(f)
		}
		if v := get(rec, "open_now"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				h.OpenNow = &b
			}
		}
		h.Provenance.Zone, _ = strconv.Atoi(get(rec, "zone"))
		h.Sightings, _ = strconv.Atoi(get(rec, "sightings"))
		hospitals = append(hospitals, h)
	}
	return hospitals, nil
}

// ReadCSVFile reads hospitals from path.
func ReadCSVFile(path string) ([]model.Hospital, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}
