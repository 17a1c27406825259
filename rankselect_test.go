// rankselect_test.go -- test suite for RankSelect101111
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package fmph

import (
	"math/rand"
	"testing"
)

func TestRankSelect101111ScenarioR1(t *testing.T) {
	assert := newAsserter(t)

	bv := NewBitVec(128)
	for _, i := range []uint64{0, 2, 3, 65, 66} {
		bv.Set(i)
	}

	rs := From(bv, 128, SelectCombinedSampling)
	want := []uint64{0, 1, 1, 2, 3, 3, 3, 3}
	for i, w := range want {
		assert(rs.Rank(uint64(i)) == w, "rank(%d): exp %d saw %d", i, w, rs.Rank(uint64(i)))
	}

	selWant := []uint64{0, 2, 3, 65, 66}
	for r, w := range selWant {
		assert(rs.Select(uint64(r)) == w, "select(%d): exp %d saw %d", r, w, rs.Select(uint64(r)))
	}

	_, ok := rs.TrySelect(5)
	assert(!ok, "select(5) should be not-found")
}

func TestRankSelect101111Boundary(t *testing.T) {
	assert := newAsserter(t)

	bv := NewBitVec(64)
	bv.Set(10)
	bv.Set(20)
	rs := From(bv, 64, SelectBinarySearch)

	r, ok := rs.TryRank(64)
	assert(ok, "try_rank(N) should be defined")
	assert(r == 2, "try_rank(N): exp 2 saw %d", r)

	_, ok = rs.TryRank(65)
	assert(!ok, "try_rank(N+1) should be not-found")

	_, ok = rs.TrySelect(2)
	assert(!ok, "try_select(popcount) should be not-found")
}

func TestRankSelect101111NoSelectSupport(t *testing.T) {
	assert := newAsserter(t)

	bv := NewBitVec(64)
	bv.Set(3)
	rs := From(bv, 64, SelectNone)

	_, ok := rs.TrySelect(0)
	assert(!ok, "select should be unsupported with SelectNone")
}

func TestRankSelect101111Random(t *testing.T) {
	assert := newAsserter(t)

	rng := rand.New(rand.NewSource(123))
	nbits := uint64(20000)
	bv := NewBitVec(nbits)
	for i := uint64(0); i < nbits; i++ {
		if rng.Intn(3) == 0 {
			bv.Set(i)
		}
	}

	rsBin := From(bv, nbits, SelectBinarySearch)
	rsCs := From(bv, nbits, SelectCombinedSampling)

	ones := rsBin.TotalOnes()
	assert(rsCs.TotalOnes() == ones, "total ones mismatch between strategies")

	for trial := 0; trial < 1000; trial++ {
		r := uint64(rng.Intn(int(ones)))
		p1 := rsBin.Select(r)
		p2 := rsCs.Select(r)
		assert(p1 == p2, "select(%d) strategy mismatch: %d vs %d", r, p1, p2)
		assert(rsBin.Rank(p1) == r, "rank(select(%d)) should equal %d", r, r)
	}
}
