// select64_test.go -- test suite for select64
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package fmph

import (
	"math/bits"
	"math/rand"
	"testing"
)

func naiveSelect64(word uint64, r uint) int {
	var seen uint
	for i := 0; i < 64; i++ {
		if word&(uint64(1)<<uint(i)) != 0 {
			if seen == r {
				return i
			}
			seen++
		}
	}
	return -1
}

func TestSelect64Table(t *testing.T) {
	assert := newAsserter(t)

	for b := 0; b < 256; b++ {
		cnt := bits.OnesCount8(uint8(b))
		for r := 0; r < 8; r++ {
			got := selectU8[256*r+b]
			if r < cnt {
				want := naiveSelect64(uint64(b), uint(r))
				assert(int(got) == want, "byte %d r %d: exp %d saw %d", b, r, want, got)
			} else {
				assert(got == 8, "byte %d r %d: expected sentinel 8, saw %d", b, r, got)
			}
		}
	}
}

func TestSelect64Random(t *testing.T) {
	assert := newAsserter(t)

	rng := rand.New(rand.NewSource(1))
	for iter := 0; iter < 10000; iter++ {
		word := rng.Uint64()
		c := bits.OnesCount64(word)
		if c == 0 {
			continue
		}
		r := uint(rng.Intn(c))
		want := naiveSelect64(word, r)
		got := select64(word, r)
		assert(got == want, "word %#x r %d: exp %d saw %d", word, r, want, got)
	}
}

func TestSelect64EdgeCases(t *testing.T) {
	assert := newAsserter(t)

	assert(select64(1, 0) == 0, "single low bit")
	assert(select64(uint64(1)<<63, 0) == 63, "single high bit")
	assert(select64(^uint64(0), 63) == 63, "all ones, last rank")
	assert(select64(^uint64(0), 0) == 0, "all ones, first rank")
}
