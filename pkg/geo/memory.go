package geo

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/mmcloughlin/geohash"
)

const maxPrecision = 6

// cellHeightKm is the north-south size of a geohash cell per precision;
// cellWidthKm is the east-west size at the equator.
var (
	cellHeightKm = [maxPrecision + 1]float64{0, 5000, 625, 156, 19.5, 4.89, 0.61}
	cellWidthKm  = [maxPrecision + 1]float64{0, 5000, 1250, 156, 39.1, 4.89, 1.22}
)

type memoryEntry struct {
	lat, lng  float64
	hashes    [maxPrecision + 1]string
	updatedAt time.Time
}

// MemoryIndex buckets members by geohash at every precision up to 6 so a
// query can scan a 3x3 block of cells sized to its radius.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	buckets [maxPrecision + 1]map[string]map[string]struct{}
	now     func() time.Time
}

func NewMemoryIndex() *MemoryIndex {
	idx := &MemoryIndex{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
	for p := 1; p <= maxPrecision; p++ {
		idx.buckets[p] = make(map[string]map[string]struct{})
	}
	return idx
}

func (m *MemoryIndex) Upsert(_ context.Context, id string, lat, lng float64) error {
	full := geohash.EncodeWithPrecision(lat, lng, maxPrecision)

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.entries[id]; ok {
		m.unbucket(id, old)
	}

	e := &memoryEntry{lat: lat, lng: lng, updatedAt: m.now()}
	for p := 1; p <= maxPrecision; p++ {
		e.hashes[p] = full[:p]
		bucket := m.buckets[p][e.hashes[p]]
		if bucket == nil {
			bucket = make(map[string]struct{})
			m.buckets[p][e.hashes[p]] = bucket
		}
		bucket[id] = struct{}{}
	}
	m.entries[id] = e
	return nil
}

func (m *MemoryIndex) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.entries[id]; ok {
		m.unbucket(id, old)
		delete(m.entries, id)
	}
	return nil
}

func (m *MemoryIndex) unbucket(id string, e *memoryEntry) {
	for p := 1; p <= maxPrecision; p++ {
		bucket := m.buckets[p][e.hashes[p]]
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(m.buckets[p], e.hashes[p])
		}
	}
}

func (m *MemoryIndex) Nearby(_ context.Context, q Query) ([]Entry, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	candidates := m.candidates(q)
	results := make([]Entry, 0, len(candidates))
	for _, id := range candidates {
		e := m.entries[id]
		d := DistanceKm(q.Lat, q.Lng, e.lat, e.lng)
		if d > q.RadiusKm {
			continue
		}
		results = append(results, Entry{ID: id, Lat: e.lat, Lng: e.lng, DistanceKm: d, UpdatedAt: e.updatedAt})
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].DistanceKm == results[j].DistanceKm {
			return results[i].ID < results[j].ID
		}
		return results[i].DistanceKm < results[j].DistanceKm
	})

	return applyFilterAndLimit(results, q), nil
}

// candidates must be called with the read lock held.
func (m *MemoryIndex) candidates(q Query) []string {
	p := queryPrecision(q.Lat, q.RadiusKm)
	if p == 0 {
		ids := make([]string, 0, len(m.entries))
		for id := range m.entries {
			ids = append(ids, id)
		}
		return ids
	}

	center := geohash.EncodeWithPrecision(q.Lat, q.Lng, uint(p))
	cells := append([]string{center}, geohash.Neighbors(center)...)

	seen := make(map[string]struct{})
	var ids []string
	for _, cell := range cells {
		for id := range m.buckets[p][cell] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// queryPrecision picks the finest precision whose cells are at least as
// large as the radius at this latitude. Zero means scan everything.
func queryPrecision(lat, radiusKm float64) int {
	shrink := math.Cos(lat * math.Pi / 180)
	for p := maxPrecision; p >= 1; p-- {
		size := math.Min(cellHeightKm[p], cellWidthKm[p]*shrink)
		if size >= radiusKm {
			return p
		}
	}
	return 0
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
