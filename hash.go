// hash.go -- the seeded hash family FMPH/FMPHGO build on top of.
//
// The core algorithms only ever need one primitive: given a key and a
// small integer seed (the level number, or an FMPHGO group seed), produce
// a uniformly distributed uint64. This file defines that interface,
// Hasher[K], plus the concrete hashers shipped with this package: a
// siphash-backed one for []byte keys (grounded on the same siphash
// package the constant DB uses for record checksums), a fasthash-backed
// one for the common case of hashing short strings at high throughput,
// and one for uint64 keys. Arbitrary key types plug in via FuncHasher.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package fmph

import (
	"encoding/binary"
	"math/bits"

	"github.com/dchest/siphash"
	"github.com/opencoff/go-fasthash"
)

// Hasher produces a seed-dependent, uniformly distributed hash for a
// key. HashOne must be a pure function of (key, seed): FMPH/FMPHGO
// query correctness depends on recomputing the exact same value the
// builder saw. Distinct seeds must behave as statistically independent
// hash functions.
type Hasher[K any] interface {
	HashOne(key K, seed uint32) uint64
}

// seedKey expands a uint32 seed plus a per-Hasher random base into a
// 16-byte siphash key, so that every (base, seed) pair behaves like an
// independent keyed hash function.
func seedKey(base [16]byte, seed uint32) [16]byte {
	var k [16]byte
	b0 := binary.LittleEndian.Uint64(base[:8])
	b1 := binary.LittleEndian.Uint64(base[8:])
	binary.LittleEndian.PutUint64(k[:8], mix(b0^uint64(seed)))
	binary.LittleEndian.PutUint64(k[8:], mix(b1+uint64(seed)*0x9e3779b97f4a7c15))
	return k
}

// BytesHasher hashes []byte keys with siphash-2-4, keyed per-seed.
type BytesHasher struct {
	base [16]byte
}

// NewBytesHasher returns a BytesHasher seeded from crypto/rand. Two
// independently constructed BytesHasher values will not agree on
// HashOne for the same (key, seed): callers that need a reproducible
// hasher (e.g. across a write/read round trip) must construct one
// BytesHasher and reuse it, or persist 'base' alongside the MPHF data.
func NewBytesHasher() *BytesHasher {
	var h BytesHasher
	copy(h.base[:], randbytes(16))
	return &h
}

func (h *BytesHasher) HashOne(key []byte, seed uint32) uint64 {
	k := seedKey(h.base, seed)
	s := siphash.New(k)
	s.Write(key)
	return s.Sum64()
}

// StringHasher hashes string keys with go-fasthash, reseeded per level
// via mix(). It is considerably cheaper than siphash, which suits
// FMPH[string]: MPHF construction does not need cryptographic
// collision resistance, only good statistical spread.
type StringHasher struct {
	base uint64
}

// NewStringHasher returns a StringHasher seeded from crypto/rand.
func NewStringHasher() *StringHasher {
	return &StringHasher{base: rand64()}
}

func (h *StringHasher) HashOne(key string, seed uint32) uint64 {
	s := mix(h.base ^ uint64(seed))
	return fasthash.Hash64(s, []byte(key))
}

// Uint64Hasher hashes native uint64 keys via the avalanche mixer,
// folding the seed in before mixing so that distinct seeds decorrelate.
type Uint64Hasher struct {
	base uint64
}

// NewUint64Hasher returns a Uint64Hasher seeded from crypto/rand.
func NewUint64Hasher() *Uint64Hasher {
	return &Uint64Hasher{base: rand64()}
}

func (h *Uint64Hasher) HashOne(key uint64, seed uint32) uint64 {
	return mix(key ^ mix(h.base^uint64(seed)))
}

// FuncHasher adapts a plain function to the Hasher[K] interface, for
// key types this package doesn't ship a hasher for.
type FuncHasher[K any] func(key K, seed uint32) uint64

func (f FuncHasher[K]) HashOne(key K, seed uint32) uint64 {
	return f(key, seed)
}

// mapU64ToRange maps a uniformly distributed 64-bit hash into [0, n)
// via Lemire's high-bits multiplication trick: (h * n) >> 64. This is
// the single mapping function used throughout level-builder and FMPHGO
// group/slot computation.
func mapU64ToRange(h uint64, n uint64) uint64 {
	hi, _ := bits.Mul64(h, n)
	return hi
}
