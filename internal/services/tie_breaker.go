package services

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"goride/internal/models"
)

// TieBreaker orders dispatch candidates, best first.
type TieBreaker interface {
	Rank(candidates []*models.DriverDistance) []*models.DriverDistance
}

// Nearest ranks purely by distance, breaking exact ties by driver id.
type Nearest struct{}

func (Nearest) Rank(candidates []*models.DriverDistance) []*models.DriverDistance {
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = c.DistanceKm
	}
	return rankByScore(candidates, scores)
}

// JitteredNearest perturbs each distance by a uniform factor in
// [1-jitterPct, 1+jitterPct] before ranking so equidistant drivers are not
// always picked in the same order.
type JitteredNearest struct {
	mu        sync.Mutex
	rnd       *rand.Rand
	jitterPct float64
}

// NewJitteredNearest seeds the generator with seed, or with the clock when
// seed is zero.
func NewJitteredNearest(seed int64, jitterPct float64) *JitteredNearest {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &JitteredNearest{
		rnd:       rand.New(rand.NewSource(seed)),
		jitterPct: jitterPct,
	}
}

func (j *JitteredNearest) Rank(candidates []*models.DriverDistance) []*models.DriverDistance {
	scores := make([]float64, len(candidates))
	j.mu.Lock()
	for i, c := range candidates {
		factor := 1 + (j.rnd.Float64()*2-1)*j.jitterPct
		scores[i] = c.DistanceKm * factor
	}
	j.mu.Unlock()
	return rankByScore(candidates, scores)
}

func rankByScore(candidates []*models.DriverDistance, scores []float64) []*models.DriverDistance {
	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if scores[idx[a]] != scores[idx[b]] {
			return scores[idx[a]] < scores[idx[b]]
		}
		return candidates[idx[a]].Driver.ID.Hex() < candidates[idx[b]].Driver.ID.Hex()
	})

	ranked := make([]*models.DriverDistance, len(idx))
	for i, k := range idx {
		ranked[i] = candidates[k]
	}
	return ranked
}
