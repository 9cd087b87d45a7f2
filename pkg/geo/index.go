// Package geo holds the spatial indexes used to find drivers near a point.
// Every backend keeps the last reported coordinate of each member until it
// is explicitly removed, so silent disconnects show up as stale entries.
package geo

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidQuery = errors.New("geo: invalid query")

type Entry struct {
	ID         string    `json:"id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	DistanceKm float64   `json:"distance_km"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

type Query struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
	// Limit caps the result size after filtering. Zero means no cap.
	Limit int
	// Filter drops entries before the limit is applied.
	Filter func(Entry) bool
}

func (q Query) Validate() error {
	if q.RadiusKm <= 0 || q.Lat < -90 || q.Lat > 90 || q.Lng < -180 || q.Lng > 180 {
		return ErrInvalidQuery
	}
	return nil
}

// Index is implemented by every spatial backend. Nearby returns entries
// ordered by ascending distance.
type Index interface {
	Upsert(ctx context.Context, id string, lat, lng float64) error
	Remove(ctx context.Context, id string) error
	Nearby(ctx context.Context, q Query) ([]Entry, error)
}

func applyFilterAndLimit(entries []Entry, q Query) []Entry {
	out := entries[:0]
	for _, e := range entries {
		if q.Filter != nil && !q.Filter(e) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}
