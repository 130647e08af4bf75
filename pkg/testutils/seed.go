package testutils

import (
	"os"
	"strconv"
	"time"
)

// Seed seeds every PRNG returned by NewRand. It is taken from TEST_SEED when set and valid,
// otherwise from the clock.
var Seed = loadSeed() //nolint:gochecknoglobals // shared so a whole run replays from one seed

func loadSeed() uint64 {
	if raw := os.Getenv("TEST_SEED"); raw != "" {
		if seed, err := strconv.ParseUint(raw, 0, 64); err == nil {
			return seed
		}
	}
	return uint64(time.Now().UnixNano()) //nolint:gosec // sign doesn't matter for a seed
}
