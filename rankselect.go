// rankselect.go -- RankSelect101111: the public rank/select façade over
// a BitVec, combining a RankIndex with an optional SelectStrategy.
//
// The name follows the L2 entry layout in rankindex.go: a 32-bit block
// count plus cumulative sub-block deltas 10, 11 and 11 bits wide. The
// index works for any bit density.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package fmph

// SelectMode picks the select-query strategy used by a RankSelect101111.
type SelectMode int

const (
	// SelectNone builds rank support only; Select/Select0 always report
	// not-found.
	SelectNone SelectMode = iota
	// SelectBinarySearch adds zero-overhead O(log n) select via
	// partition-point search.
	SelectBinarySearch
	// SelectCombinedSampling adds a sample table for near-O(1) select
	// at the cost of a small amount of auxiliary storage.
	SelectCombinedSampling
)

// RankSelect101111 is a succinct rank/select index over a BitVec.
type RankSelect101111 struct {
	bv    *BitVec
	nbits uint64
	ri    *RankIndex

	strategy  SelectStrategy
	select0   *CombinedSamplingSelect
	select1cs *CombinedSamplingSelect
}

// From builds a RankSelect101111 over 'bv', treating only the first
// 'nbits' bits of it as significant (bits beyond nbits are assumed
// zero-padding and are never touched by queries). The select support is
// built according to 'mode'.
func From(bv *BitVec, nbits uint64, mode SelectMode) *RankSelect101111 {
	words := bv.Raw()
	ri := BuildRankIndex(words, nbits)

	rs := &RankSelect101111{
		bv:    bv,
		nbits: nbits,
		ri:    ri,
	}

	switch mode {
	case SelectBinarySearch:
		rs.strategy = BinarySearchSelect{}
	case SelectCombinedSampling:
		rs.select1cs = BuildCombinedSamplingSelect(words, ri, false)
		rs.select0 = BuildCombinedSamplingSelect(words, ri, true)
	}

	return rs
}

// TotalOnes returns the population count of the indexed vector.
func (rs *RankSelect101111) TotalOnes() uint64 {
	return rs.ri.Ones()
}

// NBits returns the indexed bit length.
func (rs *RankSelect101111) NBits() uint64 {
	return rs.nbits
}

// Rank returns the number of 1-bits in [0, i). Panics if i > NBits();
// use TryRank to handle out-of-range input without a panic.
func (rs *RankSelect101111) Rank(i uint64) uint64 {
	v, ok := rs.TryRank(i)
	if !ok {
		panic("fmph: rank index out of range")
	}
	return v
}

// Rank0 returns the number of 0-bits in [0, i).
func (rs *RankSelect101111) Rank0(i uint64) uint64 {
	return i - rs.Rank(i)
}

// TryRank is the non-panicking form of Rank.
func (rs *RankSelect101111) TryRank(i uint64) (uint64, bool) {
	return rs.ri.Rank(rs.bv.Raw(), i)
}

// TryRank0 is the non-panicking form of Rank0.
func (rs *RankSelect101111) TryRank0(i uint64) (uint64, bool) {
	return rs.ri.Rank0(rs.bv.Raw(), i)
}

// Select returns the position of the r-th (0-indexed) 1-bit. Panics if
// select support was not built, or if r is out of range; use TrySelect
// to avoid the panic.
func (rs *RankSelect101111) Select(r uint64) uint64 {
	v, ok := rs.TrySelect(r)
	if !ok {
		panic("fmph: select rank out of range or unsupported")
	}
	return v
}

// Select0 returns the position of the r-th (0-indexed) 0-bit.
func (rs *RankSelect101111) Select0(r uint64) uint64 {
	v, ok := rs.TrySelect0(r)
	if !ok {
		panic("fmph: select0 rank out of range or unsupported")
	}
	return v
}

// TrySelect is the non-panicking form of Select.
func (rs *RankSelect101111) TrySelect(r uint64) (uint64, bool) {
	words := rs.bv.Raw()
	if rs.select1cs != nil {
		return rs.select1cs.Select1(words, rs.ri, r)
	}
	if rs.strategy != nil {
		return rs.strategy.Select1(words, rs.ri, r)
	}
	return 0, false
}

// TrySelect0 is the non-panicking form of Select0.
func (rs *RankSelect101111) TrySelect0(r uint64) (uint64, bool) {
	words := rs.bv.Raw()
	if rs.select0 != nil {
		return rs.select0.Select0(words, rs.ri, r)
	}
	if rs.strategy != nil {
		return rs.strategy.Select0(words, rs.ri, r)
	}
	return 0, false
}

// Prefetch issues prefetch hints along the rank access path for bit i.
// See RankIndex.prefetch for why this is currently a documented no-op
// in pure Go.
func (rs *RankSelect101111) Prefetch(i uint64) {
	rs.ri.prefetch(rs.bv.Raw(), i)
}
