// Package rng derives reproducible random sub-streams from a single seed.
//
// Every probabilistic decision in the engine draws from the sub-stream of
// the subsystem that owns it ("rd", "patents", "market", "events"). Streams
// are seeded independently, so a change in one subsystem's draw count never
// shifts another subsystem's sequence. Identical seed + stream name means a
// byte-identical sequence of draws, which is what makes disputed rounds
// reproducible.
package rng

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
)

// Bundle holds the master seed and hands out named sub-streams.
type Bundle struct {
	seed    string
	streams map[string]*Stream
}

// ComposeSeed builds the canonical per-round seed string.
func ComposeSeed(gameID string, round int) string {
	return fmt.Sprintf("%s:r%d", gameID, round)
}

// NewBundle creates a bundle for the given seed string.
func NewBundle(seed string) *Bundle {
	return &Bundle{seed: seed, streams: map[string]*Stream{}}
}

// Seed returns the master seed string.
func (b *Bundle) Seed() string { return b.seed }

// Stream returns the sub-stream for the given subsystem name, creating it
// on first use. The same name always returns the same stream instance.
func (b *Bundle) Stream(name string) *Stream {
	if s, ok := b.streams[name]; ok {
		return s
	}
	s := newStream(b.seed, name)
	b.streams[name] = s
	return s
}

// StreamSeeds reports the derived initial state of every stream touched so
// far, keyed by name. Recorded in the round's audit trail.
func (b *Bundle) StreamSeeds() map[string]string {
	out := make(map[string]string, len(b.streams))
	names := make([]string, 0, len(b.streams))
	for n := range b.streams {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		out[n] = hex.EncodeToString(binary.LittleEndian.AppendUint64(nil, b.streams[n].seed))
	}
	return out
}

// Stream is a single deterministic random sequence.
type Stream struct {
	seed  uint64
	state uint64
}

func newStream(seed, name string) *Stream {
	h := sha256.Sum256([]byte(seed + "|" + name))
	s := binary.LittleEndian.Uint64(h[:8])
	return &Stream{seed: s, state: s}
}

// splitmix64 finalizer, same mixing as the terrain hash.
func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func (s *Stream) next() uint64 {
	s.state += 0x9e3779b97f4a7c15
	return mix64(s.state)
}

// Float64 draws a uniform float in [0,1).
func (s *Stream) Float64() float64 {
	// 53 random bits, same construction as math/rand.
	return float64(s.next()>>11) / (1 << 53)
}

// Bool draws true with probability p.
func (s *Stream) Bool(p float64) bool {
	if p <= 0 {
		// Still consume a draw so call sites stay aligned.
		s.next()
		return false
	}
	if p >= 1 {
		s.next()
		return true
	}
	return s.Float64() < p
}

// Range draws a uniform float in [lo, hi).
func (s *Stream) Range(lo, hi float64) float64 {
	if hi <= lo {
		s.next()
		return lo
	}
	return lo + s.Float64()*(hi-lo)
}

// IntN draws a uniform int in [0, n). n must be positive.
func (s *Stream) IntN(n int) int {
	if n <= 0 {
		s.next()
		return 0
	}
	return int(s.next() % uint64(n))
}
