package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rendis/eyescan/internal/model"
)

var _ Backend = (*Postgres)(nil)

// Postgres stores hospitals in a shared database so several runs, possibly for
// different cities, land in one place.
type Postgres struct {
	pool *pgxpool.Pool
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS eyescan_runs (
	id TEXT PRIMARY KEY,
	city TEXT NOT NULL,
	method TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	hospital_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS eyescan_hospitals (
	place_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	address TEXT,
	lat DOUBLE PRECISION NOT NULL,
	lng DOUBLE PRECISION NOT NULL,
	rating DOUBLE PRECISION,
	review_count INTEGER NOT NULL,
	phone TEXT,
	website TEXT,
	open_now BOOLEAN,
	zone INTEGER,
	keyword TEXT,
	search_method TEXT NOT NULL,
	sightings INTEGER NOT NULL DEFAULT 1,
	run_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// OpenPostgres connects to dsn and creates the tables if needed.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Save(ctx context.Context, run Run, hospitals []model.Hospital) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if run.ID != "" {
		_, err = tx.Exec(ctx, `
			INSERT INTO eyescan_runs (id, city, method, started_at, hospital_count)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET hospital_count = EXCLUDED.hospital_count`,
			run.ID, run.City, run.Method, run.StartedAt, run.Count)
		if err != nil {
			return 0, fmt.Errorf("saving run: %w", err)
		}
	}

	batch := &pgx.Batch{}
	for _, h := range hospitals {
		batch.Queue(`
			INSERT INTO eyescan_hospitals (
				place_id, name, address, lat, lng, rating, review_count, phone, website,
				open_now, zone, keyword, search_method, sightings, run_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (place_id) DO NOTHING`,
			h.PlaceID, h.Name, h.Address, h.Lat, h.Lng, nullRating(h.Rating), h.ReviewCount,
			h.Phone, h.Website, h.OpenNow, h.Provenance.Zone, h.Provenance.Keyword,
			string(h.Provenance.Strategy), h.Sightings, h.Provenance.RunID,
		)
	}

	br := tx.SendBatch(ctx, batch)
	inserted := 0
	for _, h := range hospitals {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, fmt.Errorf("inserting %s: %w", h.PlaceID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing tx: %w", err)
	}
	return inserted, nil
}

func (p *Postgres) Load(ctx context.Context) ([]model.Hospital, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT place_id, name, COALESCE(address, ''), lat, lng, rating, review_count,
		       COALESCE(phone, ''), COALESCE(website, ''), open_now, COALESCE(zone, 0),
		       COALESCE(keyword, ''), search_method, sightings, COALESCE(run_id, '')
		FROM eyescan_hospitals ORDER BY review_count DESC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying hospitals: %w", err)
	}
	defer rows.Close()

	var hospitals []model.Hospital
	for rows.Next() {
		var (
			h      model.Hospital
			rating *float64
			method string
		)
		if err := rows.Scan(
			&h.PlaceID, &h.Name, &h.Address, &h.Lat, &h.Lng, &rating, &h.ReviewCount,
			&h.Phone, &h.Website, &h.OpenNow, &h.Provenance.Zone,
			&h.Provenance.Keyword, &method, &h.Sightings, &h.Provenance.RunID,
		); err != nil {
			return nil, fmt.Errorf("scanning hospital: %w", err)
		}
		if rating != nil {
			h.Rating = model.NewRating(*rating)
		}
		h.Provenance.Strategy = model.Strategy(method)
		hospitals = append(hospitals, h)
	}
	return hospitals, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
