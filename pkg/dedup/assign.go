package dedup

import (
	"math/rand/v2"
	"sort"

	"github.com/ChrisMcGann/msbench/pkg/core"
)

// DefaultSeed is the seed used for the published benchmark
const DefaultSeed = 7718

// Assignment maps every peptide key to the one species that keeps it.
type Assignment struct {
	owner      map[core.PeptideKey]string
	claimants  map[core.PeptideKey]int
	duplicates int
}

// Arbitrate assigns each key of idx to a species. Keys are visited in sorted
// order; a key claimed by several species draws rng.IntN(n) over its sorted
// claimants from a PCG source seeded with (seed, seed). Keys with a single
// claimant consume no randomness. The result depends only on idx and seed.
func Arbitrate(idx *Index, seed uint64) *Assignment {
	rng := rand.New(rand.NewPCG(seed, seed))
	a := &Assignment{
		owner:     make(map[core.PeptideKey]string, idx.Len()),
		claimants: make(map[core.PeptideKey]int, idx.Len()),
	}

	for _, key := range idx.Keys() {
		candidates := idx.Species(key)
		a.claimants[key] = len(candidates)
		if len(candidates) == 1 {
			a.owner[key] = candidates[0]
			continue
		}
		a.owner[key] = candidates[rng.IntN(len(candidates))]
		a.duplicates++
	}

	return a
}

// Lookup returns the species that owns key
func (a *Assignment) Lookup(key core.PeptideKey) (string, bool) {
	s, ok := a.owner[key]
	return s, ok
}

// Claimants returns how many species claimed key before arbitration
func (a *Assignment) Claimants(key core.PeptideKey) int {
	return a.claimants[key]
}

// Duplicates returns the number of keys claimed by more than one species
func (a *Assignment) Duplicates() int {
	return a.duplicates
}

// Len returns the number of assigned keys
func (a *Assignment) Len() int {
	return len(a.owner)
}

// Keys returns the sorted keys owned by species
func (a *Assignment) Keys(species string) []core.PeptideKey {
	var keys []core.PeptideKey
	for k, s := range a.owner {
		if s == species {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
