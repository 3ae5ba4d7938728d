package stochastic

import "golang.org/x/exp/rand"

// Stream is a seeded PCG random stream. It implements dynamo.Source and is
// not safe for concurrent use.
type Stream struct {
	*rand.Rand
	origin uint64
}

func NewStream(seed uint64) *Stream {
	return &Stream{Rand: rand.New(rand.NewSource(seed)), origin: seed}
}

// Origin returns the seed the stream was created with.
func (s *Stream) Origin() uint64 {
	return s.origin
}

// SeedFor derives the seed of run index under base. attempt distinguishes
// retries of the same run.
func SeedFor(base int64, index, attempt int) uint64 {
	key := uint64(index)<<16 | uint64(attempt&0xffff)
	return mix(mix(uint64(base)) ^ mix(key))
}

// splitmix64 finalizer
func mix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
