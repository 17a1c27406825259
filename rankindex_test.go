// rankindex_test.go -- test suite for RankIndex
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package fmph

import (
	"math/rand"
	"testing"
)

func naiveRank(words []uint64, i uint64) uint64 {
	var r uint64
	for b := uint64(0); b < i; b++ {
		w := words[b/64]
		if w&(uint64(1)<<(b%64)) != 0 {
			r++
		}
	}
	return r
}

// Scenario R1 from the design notes: two words, 0b1101 then 0b110.
func TestRankIndexScenarioR1(t *testing.T) {
	assert := newAsserter(t)

	words := []uint64{0b1101, 0b110}
	nbits := uint64(128)
	ri := BuildRankIndex(words, nbits)

	want := []uint64{0, 1, 1, 2, 3, 3, 3, 3}
	for i, w := range want {
		got, ok := ri.Rank(words, uint64(i))
		assert(ok, "rank(%d) should be in range", i)
		assert(got == w, "rank(%d): exp %d saw %d", i, w, got)
	}
}

// Scenario R2, modeled here as 60 uint64 words each holding the 0b1101
// nibble replicated 16 times (3 ones per nibble, 48 ones per word).
// selectindex_test.go models the same scenario with 60 words each equal
// to 0b1101 (3 ones per word).
func TestRankIndexScenarioR2(t *testing.T) {
	assert := newAsserter(t)

	word := uint64(0)
	for i := 0; i < 16; i++ {
		word |= uint64(0b1101) << (4 * i)
	}
	words := make([]uint64, 60)
	for i := range words {
		words[i] = word
	}
	nbits := uint64(60 * 64)
	ri := BuildRankIndex(words, nbits)

	onesPerWord := uint64(popcount(word))
	assert(onesPerWord == 48, "expected 48 ones per word, saw %d", onesPerWord)

	for i := uint64(0); i < nbits; i += 37 {
		got, ok := ri.Rank(words, i)
		assert(ok, "rank(%d) should be in range", i)
		want := naiveRank(words, i)
		assert(got == want, "rank(%d): exp %d saw %d", i, want, got)
	}
}

func TestRankIndexRandom(t *testing.T) {
	assert := newAsserter(t)

	rng := rand.New(rand.NewSource(42))
	nWords := 5000
	words := make([]uint64, nWords)
	for i := range words {
		words[i] = rng.Uint64()
	}
	nbits := uint64(nWords) * 64
	ri := BuildRankIndex(words, nbits)

	var wantOnes uint64
	for _, w := range words {
		wantOnes += popcount(w)
	}
	assert(ri.Ones() == wantOnes, "total ones mismatch; exp %d saw %d", wantOnes, ri.Ones())

	for trial := 0; trial < 2000; trial++ {
		i := uint64(rng.Intn(int(nbits) + 1))
		got, ok := ri.Rank(words, i)
		assert(ok, "rank(%d) should be in range", i)
		want := naiveRank(words, i)
		assert(got == want, "rank(%d): exp %d saw %d", i, want, got)
	}

	_, ok := ri.Rank(words, nbits+1)
	assert(!ok, "rank(nbits+1) should be out of range")
}

func TestRankIndexRank0(t *testing.T) {
	assert := newAsserter(t)

	words := []uint64{0b1101, 0b110}
	nbits := uint64(128)
	ri := BuildRankIndex(words, nbits)

	for i := uint64(0); i <= nbits; i++ {
		r1, ok1 := ri.Rank(words, i)
		r0, ok0 := ri.Rank0(words, i)
		assert(ok1 == ok0, "rank/rank0 disagreement on range at %d", i)
		assert(r0 == i-r1, "rank0(%d): exp %d saw %d", i, i-r1, r0)
	}
}

// Exercises Rank across adjacent L2 blocks within a single L1 region
// (the case actually reachable at test scale; the full 2^32-bit L1
// region boundary is covered by inspection of the Build/query formulas,
// not by allocating a multi-gigabyte test fixture).
func TestRankIndexAcrossL2Boundary(t *testing.T) {
	assert := newAsserter(t)

	words := make([]uint64, wordsPerL2Block*2)
	words[wordsPerL2Block-1] = 1 << 63
	words[wordsPerL2Block] = 0b11

	nbits := uint64(len(words)) * 64
	ri := BuildRankIndex(words, nbits)
	assert(ri.Ones() == 3, "expected 3 ones total, saw %d", ri.Ones())

	r, ok := ri.Rank(words, uint64(wordsPerL2Block)*64)
	assert(ok, "rank at block boundary should be in range")
	assert(r == 1, "rank at block boundary: exp 1 saw %d", r)

	r, ok = ri.Rank(words, nbits)
	assert(ok, "rank at end should be in range")
	assert(r == 3, "rank at end: exp 3 saw %d", r)
}
