// Package vendors assigns stable display identities to counterparties the
// wallet service has no vendor record for.
package vendors

import (
	"hash/fnv"
	"math/rand/v2"
	"sync"

	"github.com/bitlum/cli/internal/storage"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
)

// Randomizer hands out one identity per vuid and remembers it in storage.
type Randomizer struct {
	kv     storage.KV
	logger *pterm.Logger

	mu       sync.Mutex
	rand     *rand.Rand
	catalog  []Identity
	assigned map[string]Identity
}

// Option configures a Randomizer.
type Option func(*Randomizer)

// WithRand sets the random source, used in tests for reproducible picks.
func WithRand(r *rand.Rand) Option {
	return func(z *Randomizer) {
		z.rand = r
	}
}

// NewRandomizer loads existing assignments from kv.
func NewRandomizer(kv storage.KV, logger *pterm.Logger, opts ...Option) *Randomizer {
	z := &Randomizer{
		kv:      kv,
		logger:  logger,
		rand:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		catalog: Catalog(),
	}
	for _, opt := range opts {
		opt(z)
	}

	assigned, ok := storage.Lookup[map[string]Identity](kv, logger, storage.KeyRandomizedVendors)
	if !ok || assigned == nil {
		assigned = map[string]Identity{}
	}
	z.assigned = assigned
	return z
}

// Get returns the identity of vuid, assigning a fresh one on first use.
func (z *Randomizer) Get(vuid string) Identity {
	z.mu.Lock()
	defer z.mu.Unlock()

	if id, ok := z.assigned[vuid]; ok {
		return id
	}

	id, ok := z.pickUnused()
	if !ok {
		// Every identity is taken: fall back to a stable hash so the same
		// vuid still maps to the same identity across runs.
		id = z.catalog[hashIndex(vuid, len(z.catalog))]
		z.logger.Debug("Vendor catalog exhausted, reusing identity", z.logger.Args("vuid", vuid, "name", id.Name))
	}

	z.assigned[vuid] = id
	storage.Store(z.kv, z.logger, storage.KeyRandomizedVendors, z.assigned)
	return id
}

// Assigned returns how many vuids have an identity.
func (z *Randomizer) Assigned() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return len(z.assigned)
}

func (z *Randomizer) pickUnused() (Identity, bool) {
	used := lo.SliceToMap(lo.Values(z.assigned), func(id Identity) (string, struct{}) {
		return id.Name, struct{}{}
	})
	unused := lo.Filter(z.catalog, func(id Identity, _ int) bool {
		_, taken := used[id.Name]
		return !taken
	})
	if len(unused) == 0 {
		return Identity{}, false
	}
	return unused[z.rand.IntN(len(unused))], true
}

func hashIndex(s string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(n))
}
