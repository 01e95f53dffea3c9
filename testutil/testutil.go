// Package testutil provides deterministic random data generation for
// tests and benchmarks. All helpers are seedable and reproducible.
package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/eventio/datamodel"
)

// RNG encapsulates a seeded random number generator.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Float64InRange returns a pseudo-random number in [minVal,maxVal).
func (r *RNG) Float64InRange(minVal, maxVal float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return minVal + r.rand.Float64()*(maxVal-minVal)
}

// HitData generates n hit records with positions in [-1000, 1000) mm,
// energies in [0, 100) and random cell ids.
// Locks only once per call (preferred over per-field calls in a loop).
func (r *RNG) HitData(n int) []datamodel.HitData {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]datamodel.HitData, n)
	for i := range records {
		records[i] = datamodel.HitData{
			X:      r.rand.Float64()*2000 - 1000,
			Y:      r.rand.Float64()*2000 - 1000,
			Z:      r.rand.Float64()*2000 - 1000,
			Energy: r.rand.Float64() * 100,
			CellID: r.rand.Uint64(),
		}
	}
	return records
}

// FillHitCollection appends n random hits and returns the appended
// handles in order.
func (r *RNG) FillHitCollection(c *datamodel.HitCollection, n int) ([]datamodel.Hit, error) {
	hits := make([]datamodel.Hit, 0, n)
	for _, d := range r.HitData(n) {
		h := datamodel.NewHitWith(d.X, d.Y, d.Z, d.Energy)
		h.SetCellID(d.CellID)
		if err := c.Append(h); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, nil
}
