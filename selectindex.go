// selectindex.go -- select support built on top of a RankIndex.
//
// Two strategies are provided, chosen at construction time:
//
//   - BinarySearch: zero space overhead, O(log n) per query via
//     partition-point search directly against Rank/Rank0.
//   - CombinedSampling: one sample per ONES_PER_SELECT_ENTRY ones (or
//     zeros), turning the search into an O(1) jump plus a short bounded
//     linear scan.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package fmph

import "sort"

// onesPerSelectEntry is the CombinedSampling sampling density: one
// sample recorded per this many ones (or zeros).
const onesPerSelectEntry = 8192

// countUpTo returns rank (or rank0, if zero) at position pos, clamping
// pos to the indexed bit length first. L1/L2 region boundaries used
// internally by the select strategies often land past nbits when the
// vector's length isn't an exact multiple of the region/block size;
// clamping keeps those lookups well-defined instead of silently
// returning zero.
func countUpTo(words []uint64, ri *RankIndex, pos uint64, zero bool) uint64 {
	if pos > ri.NBits() {
		pos = ri.NBits()
	}
	if zero {
		v, _ := ri.Rank0(words, pos)
		return v
	}
	v, _ := ri.Rank(words, pos)
	return v
}

// SelectStrategy answers select1/select0 queries against a RankIndex.
type SelectStrategy interface {
	Select1(words []uint64, ri *RankIndex, r uint64) (uint64, bool)
	Select0(words []uint64, ri *RankIndex, r uint64) (uint64, bool)
}

// BinarySearchSelect implements SelectStrategy with no auxiliary
// storage: every query is a partition-point search over bit positions
// using Rank/Rank0.
type BinarySearchSelect struct{}

func (BinarySearchSelect) Select1(words []uint64, ri *RankIndex, r uint64) (uint64, bool) {
	return binarySearchSelect(words, ri, r, false)
}

func (BinarySearchSelect) Select0(words []uint64, ri *RankIndex, r uint64) (uint64, bool) {
	return binarySearchSelect(words, ri, r, true)
}

// binarySearchSelect finds the smallest i such that rank(i) == r+1 (or,
// for select0, rank0(i) == r+1) and returns i-1, the position of the
// (r+1)-th one (respectively zero). It partitions over bit positions,
// since rank is monotone non-decreasing in i.
func binarySearchSelect(words []uint64, ri *RankIndex, r uint64, zero bool) (uint64, bool) {
	total := ri.Ones()
	if zero {
		total = ri.NBits() - ri.Ones()
	}
	if r >= total {
		return 0, false
	}

	nbits := ri.NBits()
	// find smallest i in [0, nbits] with countUpTo(i) > r
	lo, hi := uint64(0), nbits
	for lo < hi {
		mid := lo + (hi-lo)/2
		if countUpTo(words, ri, mid, zero) > r {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo == 0 || lo > nbits {
		return 0, false
	}
	return lo - 1, true
}

// CombinedSamplingSelect augments BinarySearch's zero-overhead query
// with a per-L1-region sample table, converting the partition-point
// search into a direct jump plus a short linear scan.
type CombinedSamplingSelect struct {
	// samples[sampleBegin[l1] + r/onesPerSelectEntry] is the L2 block
	// index (within L1 region l1) containing the sampled bit.
	samples     []uint32
	sampleBegin []uint32
}

// BuildCombinedSamplingSelect builds the sample table for select1 (when
// zero is false) or select0 (when zero is true) over the given rank
// index. words/ri must be the same pair passed to every subsequent
// Select1/Select0 call.
func BuildCombinedSamplingSelect(words []uint64, ri *RankIndex, zero bool) *CombinedSamplingSelect {
	nL1 := uint64(0)
	if ri.NBits() > 0 {
		nL1 = (ri.NBits() >> 32) + 1
	} else {
		nL1 = 1
	}

	cs := &CombinedSamplingSelect{
		sampleBegin: make([]uint32, nL1+1),
	}

	nL2 := (ri.NBits() + bitsPerL2Block - 1) / bitsPerL2Block

	for l1 := uint64(0); l1 < nL1; l1++ {
		blkStart := l1 * l2PerL1Region
		blkEnd := blkStart + l2PerL1Region
		if blkEnd > nL2 {
			blkEnd = nL2
		}

		cs.sampleBegin[l1] = uint32(len(cs.samples))

		regionStart := countUpTo(words, ri, blkStart*bitsPerL2Block, zero)
		var nextTarget uint64
		for blk := blkStart; blk < blkEnd; blk++ {
			// count of the region's ones (or zeros) before the end of blk
			blockEnd := countUpTo(words, ri, (blk+1)*bitsPerL2Block, zero) - regionStart
			for nextTarget < blockEnd {
				cs.samples = append(cs.samples, uint32(blk-blkStart))
				nextTarget += onesPerSelectEntry
			}
		}
	}
	cs.sampleBegin[nL1] = uint32(len(cs.samples))
	return cs
}

func (cs *CombinedSamplingSelect) Select1(words []uint64, ri *RankIndex, r uint64) (uint64, bool) {
	return cs.selectImpl(words, ri, r, false)
}

func (cs *CombinedSamplingSelect) Select0(words []uint64, ri *RankIndex, r uint64) (uint64, bool) {
	return cs.selectImpl(words, ri, r, true)
}

func (cs *CombinedSamplingSelect) selectImpl(words []uint64, ri *RankIndex, r uint64, zero bool) (uint64, bool) {
	total := ri.Ones()
	if zero {
		total = ri.NBits() - ri.Ones()
	}
	if r >= total {
		return 0, false
	}

	l1idx := findL1Region(words, ri, r, zero)
	blkStart := l1idx * l2PerL1Region
	nL2 := (ri.NBits() + bitsPerL2Block - 1) / bitsPerL2Block
	blkEnd := blkStart + l2PerL1Region
	if blkEnd > nL2 {
		blkEnd = nL2
	}

	regionBase := countUpTo(words, ri, blkStart*bitsPerL2Block, zero)
	rInRegion := r - regionBase

	begin := cs.sampleBegin[l1idx]
	end := cs.sampleBegin[l1idx+1]
	sampleIdx := begin + uint32(rInRegion/onesPerSelectEntry)
	blk := blkStart
	if sampleIdx < end {
		blk = blkStart + uint64(cs.samples[sampleIdx])
	}

	for blk+1 < blkEnd {
		nextPos := (blk + 1) * bitsPerL2Block
		if countUpTo(words, ri, nextPos, zero)-regionBase <= rInRegion {
			blk++
		} else {
			break
		}
	}

	return scanFromBlock(words, ri, blk, r, zero)
}

// findL1Region returns the L1 region index whose cumulative count is
// the greatest not exceeding r.
func findL1Region(words []uint64, ri *RankIndex, r uint64, zero bool) uint64 {
	nL1 := uint64(len(ri.l1))
	idx := sort.Search(int(nL1), func(i int) bool {
		return countUpTo(words, ri, uint64(i)*(uint64(1)<<32), zero) > r
	})
	if idx == 0 {
		return 0
	}
	return uint64(idx - 1)
}

// scanFromBlock performs the final stage common to both strategies:
// sub-block selection within the L2 block at 'blk', followed by a
// bounded word scan and an in-word select64.
func scanFromBlock(words []uint64, ri *RankIndex, blk uint64, r uint64, zero bool) (uint64, bool) {
	entry := ri.l2[blk]
	l1idx := blk / l2PerL1Region
	regionOnes := ri.l1[l1idx]
	blockBase := regionOnes + (entry & 0xFFFFFFFF)
	if zero {
		blockBase = blk*bitsPerL2Block - blockBase
	}
	remaining := r - blockBase

	var sub uint
	var subBase uint64
	for s := uint(3); s >= 1; s-- {
		d := subDelta(entry, s)
		if zero {
			d = uint64(s)*512 - d
		}
		if remaining >= d {
			sub = s
			subBase = d
			break
		}
		if s == 1 {
			sub = 0
			subBase = 0
		}
	}
	remaining -= subBase

	wordBase := blk*wordsPerL2Block + uint64(sub)*wordsPerSubBlk
	for w := uint64(0); w < wordsPerSubBlk; w++ {
		idx := wordBase + w
		if idx >= uint64(len(words)) {
			break
		}
		word := words[idx]
		if zero {
			word = ^word
		}
		c := uint64(popcount(word))
		if c <= remaining {
			remaining -= c
			continue
		}
		return idx*64 + uint64(select64(word, uint(remaining))), true
	}

	return 0, false
}
