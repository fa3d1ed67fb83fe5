package storage

import (
	"context"
	"time"

	"github.com/rendis/eyescan/internal/model"
)

// Run describes one discovery run persisted alongside its records.
type Run struct {
	ID        string
	City      string
	Method    string
	StartedAt time.Time
	Count     int
}

// Backend persists hospital records. Records are keyed by place id; saving an id
// that is already stored keeps the stored record.
type Backend interface {
	Save(ctx context.Context, run Run, hospitals []model.Hospital) (int, error)
	Load(ctx context.Context) ([]model.Hospital, error)
	Close() error
}
