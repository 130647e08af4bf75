package testutils

import (
	"iter"
	"slices"
)

// Permutations yields every ordering of items using Heap's algorithm. The yielded slice is reused
// between iterations; clone it to keep it.
func Permutations[T any](items []T) iter.Seq[[]T] {
	return func(yield func([]T) bool) {
		perm := slices.Clone(items)
		if !yield(perm) {
			return
		}

		// counter[i] tracks how many swaps position i has had at its level.
		counter := make([]int, len(perm))
		for i := 1; i < len(perm); {
			if counter[i] >= i {
				counter[i] = 0
				i++
				continue
			}
			if i%2 == 0 {
				perm[0], perm[i] = perm[i], perm[0]
			} else {
				perm[counter[i]], perm[i] = perm[i], perm[counter[i]]
			}
			if !yield(perm) {
				return
			}
			counter[i]++
			i = 1
		}
	}
}
