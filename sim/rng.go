package sim

import (
	"hash/fnv"
	"math/rand"
)

// SimulationKey seeds every source of randomness in a run. Replaying a
// scenario under the same key reproduces every stochastic load draw, so
// two runs that differ only in their key are directly comparable.
type SimulationKey int64

// NewSimulationKey wraps a raw seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// PartitionedRNG hands out one deterministic random stream per named
// subsystem. A gaussian-random load element, for example, seeds its stream
// with the master key XOR a hash of its own name, so adding or removing
// one element never perturbs the draws of another.
//
// Not safe for concurrent use; the Simulator steps all modules from a
// single goroutine and the partition is meant to live there.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates an empty partition over the given key.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the stream for the named subsystem, creating and
// caching it on first use. Repeated calls with one name share a single
// *rand.Rand, so draws advance the same sequence.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the master key the partition was built from.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 hashes a subsystem name into a seed offset.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
