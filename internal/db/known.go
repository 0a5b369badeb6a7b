package db

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const minKnownCapacity = 10000

// KnownMatches answers "is this match already stored?" cheaply. The bloom filter
// rules out most IDs in memory; positives are confirmed against the store because
// the filter can report false positives.
type KnownMatches struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	store  Store
	size   int
}

// LoadKnownMatches seeds a filter with every stored match ID.
func LoadKnownMatches(ctx context.Context, store Store) (*KnownMatches, error) {
	ids, err := store.MatchIDs(ctx)
	if err != nil {
		return nil, err
	}

	capacity := uint(max(len(ids)*2, minKnownCapacity))
	k := &KnownMatches{filter: bloom.NewWithEstimates(capacity, 0.001), store: store}
	for _, id := range ids {
		k.Add(id)
	}
	return k, nil
}

// Len is the number of IDs seeded or added.
func (k *KnownMatches) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.size
}

// Add records a stored match ID.
func (k *KnownMatches) Add(matchID string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.filter.AddString(matchID)
	k.size++
}

// Contains reports whether matchID is stored.
func (k *KnownMatches) Contains(ctx context.Context, matchID string) (bool, error) {
	k.mu.Lock()
	maybe := k.filter.TestString(matchID)
	k.mu.Unlock()

	if !maybe {
		return false, nil
	}
	return k.store.MatchExists(ctx, matchID)
}
