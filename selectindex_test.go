// selectindex_test.go -- test suite for SelectStrategy implementations
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package fmph

import (
	"math/rand"
	"testing"
)

func naiveSelect(words []uint64, nbits uint64, r uint64, zero bool) (uint64, bool) {
	var seen uint64
	for i := uint64(0); i < nbits; i++ {
		w := words[i/64]
		bit := 1 == (1 & (w >> (i % 64)))
		if zero {
			bit = !bit
		}
		if bit {
			if seen == r {
				return i, true
			}
			seen++
		}
	}
	return 0, false
}

func buildBoth(words []uint64, nbits uint64) (*RankIndex, *CombinedSamplingSelect, *CombinedSamplingSelect) {
	ri := BuildRankIndex(words, nbits)
	cs1 := BuildCombinedSamplingSelect(words, ri, false)
	cs0 := BuildCombinedSamplingSelect(words, ri, true)
	return ri, cs1, cs0
}

// Scenario R1: two words, 0b1101 then 0b110.
func TestSelectScenarioR1(t *testing.T) {
	assert := newAsserter(t)

	words := []uint64{0b1101, 0b110}
	nbits := uint64(128)
	ri, cs1, _ := buildBoth(words, nbits)

	var bs BinarySearchSelect

	want := []uint64{0, 2, 3, 65, 66}
	for r, w := range want {
		got, ok := bs.Select1(words, ri, uint64(r))
		assert(ok, "binsearch select(%d) should be found", r)
		assert(got == w, "binsearch select(%d): exp %d saw %d", r, w, got)

		got, ok = cs1.Select1(words, ri, uint64(r))
		assert(ok, "combined select(%d) should be found", r)
		assert(got == w, "combined select(%d): exp %d saw %d", r, w, got)
	}

	_, ok := bs.Select1(words, ri, 5)
	assert(!ok, "select(5) should be not-found (only 5 ones)")
	_, ok = cs1.Select1(words, ri, 5)
	assert(!ok, "combined select(5) should be not-found")
}

// Scenario R2 (partial): 60 words, each holding the literal low-nibble
// pattern 0b1101 (three ones at offsets 0, 2, 3) with the remaining 60
// high bits zero.
func TestSelectScenarioR2(t *testing.T) {
	assert := newAsserter(t)

	words := make([]uint64, 60)
	for i := range words {
		words[i] = 0b1101
	}
	nbits := uint64(60 * 64)
	ri, cs1, _ := buildBoth(words, nbits)
	var bs BinarySearchSelect

	cases := []struct {
		r, want uint64
	}{
		{24, 512},
		{97, 2050},
	}
	for _, c := range cases {
		got, ok := bs.Select1(words, ri, c.r)
		assert(ok, "binsearch select(%d) should be found", c.r)
		assert(got == c.want, "binsearch select(%d): exp %d saw %d", c.r, c.want, got)

		got, ok = cs1.Select1(words, ri, c.r)
		assert(ok, "combined select(%d) should be found", c.r)
		assert(got == c.want, "combined select(%d): exp %d saw %d", c.r, c.want, got)
	}

	r, ok := ri.Rank(words, 2051)
	assert(ok, "rank(2051) should be in range")
	assert(r == 98, "rank(2051): exp 98 saw %d", r)
}

func TestSelectZero(t *testing.T) {
	assert := newAsserter(t)

	words := []uint64{0b1101, 0b110}
	nbits := uint64(128)
	ri, _, cs0 := buildBoth(words, nbits)
	var bs BinarySearchSelect

	for r := uint64(0); r < nbits-5; r++ {
		want, wantOk := naiveSelect(words, nbits, r, true)

		got, ok := bs.Select0(words, ri, r)
		assert(ok == wantOk, "binsearch select0(%d) found-mismatch", r)
		if wantOk {
			assert(got == want, "binsearch select0(%d): exp %d saw %d", r, want, got)
		}

		got, ok = cs0.Select0(words, ri, r)
		assert(ok == wantOk, "combined select0(%d) found-mismatch", r)
		if wantOk {
			assert(got == want, "combined select0(%d): exp %d saw %d", r, want, got)
		}
	}
}

func TestSelectRandomCrossCheck(t *testing.T) {
	assert := newAsserter(t)

	rng := rand.New(rand.NewSource(7))
	nWords := 300
	words := make([]uint64, nWords)
	for i := range words {
		words[i] = rng.Uint64()
	}
	nbits := uint64(nWords) * 64
	ri, cs1, cs0 := buildBoth(words, nbits)
	var bs BinarySearchSelect

	ones := ri.Ones()
	zeros := nbits - ones

	for trial := 0; trial < 500; trial++ {
		r := uint64(rng.Intn(int(ones)))
		want, _ := naiveSelect(words, nbits, r, false)

		got, ok := bs.Select1(words, ri, r)
		assert(ok, "binsearch select(%d) should be found", r)
		assert(got == want, "binsearch select(%d): exp %d saw %d", r, want, got)

		got, ok = cs1.Select1(words, ri, r)
		assert(ok, "combined select(%d) should be found", r)
		assert(got == want, "combined select(%d): exp %d saw %d", r, want, got)
	}

	for trial := 0; trial < 500; trial++ {
		r := uint64(rng.Intn(int(zeros)))
		want, _ := naiveSelect(words, nbits, r, true)

		got, ok := bs.Select0(words, ri, r)
		assert(ok, "binsearch select0(%d) should be found", r)
		assert(got == want, "binsearch select0(%d): exp %d saw %d", r, want, got)

		got, ok = cs0.Select0(words, ri, r)
		assert(ok, "combined select0(%d) should be found", r)
		assert(got == want, "combined select0(%d): exp %d saw %d", r, want, got)
	}

	_, ok := bs.Select1(words, ri, ones)
	assert(!ok, "select(ones) should be not-found")
	_, ok = cs1.Select1(words, ri, ones)
	assert(!ok, "combined select(ones) should be not-found")
}

// Rank/select inverse property, checked densely over a mid-size vector.
func TestSelectRankInverse(t *testing.T) {
	assert := newAsserter(t)

	rng := rand.New(rand.NewSource(99))
	nWords := 64
	words := make([]uint64, nWords)
	for i := range words {
		words[i] = rng.Uint64()
	}
	nbits := uint64(nWords) * 64
	ri, cs1, _ := buildBoth(words, nbits)
	var bs BinarySearchSelect

	for p := uint64(0); p < nbits; p++ {
		bit := (words[p/64] >> (p % 64)) & 1
		if bit == 0 {
			continue
		}
		rk, _ := ri.Rank(words, p)
		sel, ok := bs.Select1(words, ri, rk)
		assert(ok, "select(rank(%d)) should be found", p)
		assert(sel == p, "select(rank(%d))=%d, want %d", p, sel, p)

		sel, ok = cs1.Select1(words, ri, rk)
		assert(ok, "combined select(rank(%d)) should be found", p)
		assert(sel == p, "combined select(rank(%d))=%d, want %d", p, sel, p)
	}
}
