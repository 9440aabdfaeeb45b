package randutil

import (
	rand "math/rand/v2"
	"time"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a *rand.Rand whose sequence is fixed by seed. Both PCG words
// are derived from the one seed so a deck shuffle can be replayed from it.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Seed returns *fixed when set, otherwise a seed derived from now.
func Seed(fixed *int64, now time.Time) int64 {
	if fixed != nil {
		return *fixed
	}
	return now.UnixNano()
}

// Derive returns the seed for the nth stream under base, so each hand on a
// table gets its own shuffle without sharing RNG state between goroutines.
func Derive(base int64, n int) int64 {
	return int64(mix(uint64(base) ^ mix(uint64(n))))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
