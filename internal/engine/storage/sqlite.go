package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rendis/eyescan/internal/model"
)

var _ Backend = (*SQLite)(nil)

// SQLite stores runs and hospitals in a local database file.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

func OpenSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		city TEXT NOT NULL,
		method TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		hospital_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS hospitals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		place_id TEXT NOT NULL,
		name TEXT NOT NULL,
		address TEXT,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		rating REAL,
		review_count INTEGER NOT NULL,
		phone TEXT,
		website TEXT,
		open_now INTEGER,
		zone INTEGER,
		keyword TEXT,
		search_method TEXT NOT NULL,
		sightings INTEGER NOT NULL DEFAULT 1,
		run_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(place_id)
	);
	CREATE INDEX IF NOT EXISTS idx_hospitals_reviews ON hospitals(review_count);
	CREATE INDEX IF NOT EXISTS idx_hospitals_coords ON hospitals(lat, lng);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Save records the run and inserts hospitals not yet stored. It returns how many
// rows were inserted.
func (s *SQLite) Save(ctx context.Context, run Run, hospitals []model.Hospital) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning tx: %w", err)
	}

	if run.ID != "" {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO runs (id, city, method, started_at, hospital_count) VALUES (?,?,?,?,?)`,
			run.ID, run.City, run.Method, run.StartedAt.UTC(), run.Count)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("saving run: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO hospitals
		(place_id, name, address, lat, lng, rating, review_count, phone, website,
		 open_now, zone, keyword, search_method, sightings, run_id)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("preparing stmt: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, h := range hospitals {
		res, err := stmt.ExecContext(ctx,
			h.PlaceID, h.Name, h.Address, h.Lat, h.Lng,
			nullRating(h.Rating), h.ReviewCount, h.Phone, h.Website,
			nullBool(h.OpenNow), h.Provenance.Zone, h.Provenance.Keyword,
			string(h.Provenance.Strategy), h.Sightings, h.Provenance.RunID,
		)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting %s: %w", h.PlaceID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing tx: %w", err)
	}
	return inserted, nil
}

// Load returns all stored hospitals ordered by review count descending, then by
// insertion order.
func (s *SQLite) Load(ctx context.Context) ([]model.Hospital, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT place_id, name, address, lat, lng, rating, review_count, phone, website,
		       open_now, zone, keyword, search_method, sightings, run_id
		FROM hospitals ORDER BY review_count DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying hospitals: %w", err)
	}
	defer rows.Close()

	var hospitals []model.Hospital
	for rows.Next() {
		var (
			h       model.Hospital
			rating  sql.NullFloat64
			openNow sql.NullBool
			method  string
			runID   sql.NullString
			address sql.NullString
			phone   sql.NullString
			website sql.NullString
			keyword sql.NullString
			zone    sql.NullInt64
		)
		if err := rows.Scan(
			&h.PlaceID, &h.Name, &address, &h.Lat, &h.Lng, &rating, &h.ReviewCount,
			&phone, &website, &openNow, &zone, &keyword, &method, &h.Sightings, &runID,
		); err != nil {
			return nil, fmt.Errorf("scanning hospital: %w", err)
		}
		h.Address, h.Phone, h.Website = address.String, phone.String, website.String
		if rating.Valid {
			h.Rating = model.NewRating(rating.Float64)
		}
		if openNow.Valid {
			v := openNow.Bool
			h.OpenNow = &v
		}
		h.Provenance = model.Provenance{
			Strategy: model.Strategy(method),
			Zone:     int(zone.Int64),
			Keyword:  keyword.String,
			RunID:    runID.String,
		}
		hospitals = append(hospitals, h)
	}
	return hospitals, rows.Err()
}

// Runs returns the most recent runs first.
func (s *SQLite) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, city, method, started_at, hospital_count FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started time.Time
		if err := rows.Scan(&r.ID, &r.City, &r.Method, &started, &r.Count); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = started
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLite) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM hospitals").Scan(&count)
	return count, err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func nullRating(r model.Rating) sql.NullFloat64 {
	return sql.NullFloat64{Float64: r.Value, Valid: r.Valid}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
