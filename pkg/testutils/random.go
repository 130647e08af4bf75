package testutils

import (
	"cmp"
	"maps"
	"math/rand/v2"
	"slices"
	"testing"
)

// NewRand returns a PRNG seeded with Seed, so a failing run can be replayed with TEST_SEED.
func NewRand(t *testing.T) *rand.Rand {
	t.Helper()
	t.Logf("seed 0x%x", Seed)
	return rand.New(rand.NewPCG(Seed, Seed)) //nolint:gosec // tests don't need a secure source
}

// RandMapKey returns a random key of a non-empty map. Keys are sorted before picking, so the
// result only depends on the PRNG and not on map iteration order.
func RandMapKey[K cmp.Ordered, V any](r *rand.Rand, m map[K]V) K {
	keys := slices.Sorted(maps.Keys(m))
	return keys[r.IntN(len(keys))]
}

// WeightedOp is an operation type whose value is its relative weight.
type WeightedOp interface {
	~uint8 | ~uint16 | ~uint32 | ~int
}

// RandWeightedOp picks one of ops with probability proportional to its value.
func RandWeightedOp[T WeightedOp](r *rand.Rand, ops []T) T {
	bounds := make([]int, len(ops)) // Running sum of the weights
	total := 0
	for i, op := range ops {
		total += int(op)
		bounds[i] = total
	}

	// The first bound strictly greater than the pick owns it.
	pick := r.IntN(total)
	i, _ := slices.BinarySearch(bounds, pick+1)
	return ops[i]
}

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandString returns a random alphanumeric string of length n.
func RandString(r *rand.Rand, n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = alphanumeric[r.IntN(len(alphanumeric))]
	}
	return string(out)
}
