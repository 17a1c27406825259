// fmphgo.go -- FMPHGO: the grouped variant of FMPH. Each level's bit
// array is divided into fixed-width groups; within a group, an
// independently chosen per-group seed perturbs the intra-group slot
// function, so groups that would otherwise collide under a single
// global seed get a second (or third, ...) chance at a collision-free
// placement before falling through to the next level.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package fmph

import (
	"bufio"
	"io"
)

// GOConfig controls FMPHGO construction.
type GOConfig[K any] struct {
	RelativeLevelSize int
	CacheThreshold    int
	Parallelism       int
	Hasher            Hasher[K]
	// BitsPerGroup is the width of one group, in [2,63] (default 16).
	BitsPerGroup uint
	// BitsPerSeed is the packed width of one group seed, in [1,10]
	// (default 4, giving 16 candidate seeds per group).
	BitsPerSeed uint
}

// DefaultGOConfig returns a GOConfig with the package defaults
// (bits_per_group=16, bits_per_seed=4) and GOMAXPROCS-based
// parallelism, using 'h' as the hasher.
func DefaultGOConfig[K any](h Hasher[K]) GOConfig[K] {
	return GOConfig[K]{
		RelativeLevelSize: 100,
		CacheThreshold:    defaultCacheThreshold,
		Parallelism:       parallelism(),
		Hasher:            h,
		BitsPerGroup:      16,
		BitsPerSeed:       4,
	}
}

func (c GOConfig[K]) withDefaults() GOConfig[K] {
	if c.RelativeLevelSize <= 0 {
		c.RelativeLevelSize = 100
	}
	if c.CacheThreshold <= 0 {
		c.CacheThreshold = defaultCacheThreshold
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 1
	}
	if c.BitsPerGroup == 0 {
		c.BitsPerGroup = 16
	}
	if c.BitsPerSeed == 0 {
		c.BitsPerSeed = 4
	}
	return c
}

// FMPHGO is an immutable minimal perfect hash function built with
// per-group seed optimization.
type FMPHGO[K any] struct {
	levelSizeGroups []uint64 // groups, per level
	bitsPerGroup    uint
	bits            *BitVec
	ri              *RankIndex
	bitsPerSeed     uint
	groupSeeds      []uint64 // packed fragments, concatenated across all levels
	hasher          Hasher[K]
	numKeys         int
}

// groupSlot computes the intra-group slot for hash h under candidate
// seed sigma, per slot(h, sigma) = mix(h_low xor sigma) mod g.
func groupSlot(h uint64, sigma uint32, g uint) uint64 {
	hLow := uint32(h)
	v := mix(uint64(hLow) ^ uint64(sigma))
	return v % uint64(g)
}

// gcd64 is Euclid's algorithm, used to size FMPHGO's group count so
// that num_groups*bits_per_group lands on a whole number of 64-bit
// words.
func gcd64(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// groupsForLevel picks (num_groups, num_words) for a level targeting
// roughly n*relLevelSize/100 bits at g bits per group, subject to
// num_groups*g being an exact multiple of 64.
func groupsForLevel(n uint64, relLevelSize int, g uint) (numGroups, numWords uint64) {
	targetBits := levelSizeWords(n, relLevelSize) * 64
	raw := (targetBits + uint64(g) - 1) / uint64(g)
	if raw == 0 {
		raw = 1
	}
	step := 64 / gcd64(64, uint64(g))
	if rem := raw % step; rem != 0 {
		raw += step - rem
	}
	numGroups = raw
	numWords = raw * uint64(g) / 64
	return numGroups, numWords
}

// BuildGO constructs an FMPHGO over every key in ks. ks is consumed,
// as with Build.
func BuildGO[K any](ks KeySet[K], cfg GOConfig[K]) (*FMPHGO[K], error) {
	fn, _, err := buildFMPHGO(ks, cfg, false)
	return fn, err
}

// BuildOrPartialGO is the FMPHGO counterpart of BuildOrPartial.
func BuildOrPartialGO[K any](ks KeySet[K], cfg GOConfig[K]) (fn *FMPHGO[K], residual []K, originalSize int, err error) {
	originalSize = ks.Len()
	fn, residual, err = buildFMPHGO(ks, cfg, true)
	return fn, residual, originalSize, err
}

func buildFMPHGO[K any](ks KeySet[K], cfg GOConfig[K], allowPartial bool) (*FMPHGO[K], []K, error) {
	originalSize := ks.Len()
	if originalSize == 0 {
		return nil, nil, ErrEmptyKeySet
	}
	cfg = cfg.withDefaults()

	var levelBits []*BitVec
	var levelGroups []uint64
	var levelSeeds [][]uint32

	prevN := ks.Len()
	stagnant := 0

	for prevN > 0 {
		level := uint32(len(levelGroups))
		bits, numGroups, seeds := buildLevelFMPHGO(ks, level, cfg)
		levelBits = append(levelBits, bits)
		levelGroups = append(levelGroups, numGroups)
		levelSeeds = append(levelSeeds, seeds)

		newN := ks.Len()
		if newN == prevN {
			stagnant++
		} else {
			stagnant = 0
		}
		prevN = newN

		if stagnant >= maxStagnantLevels {
			levelBits = levelBits[:len(levelBits)-maxStagnantLevels]
			levelGroups = levelGroups[:len(levelGroups)-maxStagnantLevels]
			levelSeeds = levelSeeds[:len(levelSeeds)-maxStagnantLevels]

			if !allowPartial {
				return nil, nil, ErrConstructionFailed
			}

			residual := collectAll(ks)
			resolved := originalSize - len(residual)
			fn := assembleFMPHGO(levelBits, levelGroups, levelSeeds, cfg.BitsPerGroup, cfg.BitsPerSeed, cfg.Hasher, resolved)
			return fn, residual, nil
		}
	}

	fn := assembleFMPHGO(levelBits, levelGroups, levelSeeds, cfg.BitsPerGroup, cfg.BitsPerSeed, cfg.Hasher, originalSize)
	return fn, nil, nil
}

// buildLevelFMPHGO builds one grouped fingerprint level, mutating ks to
// retain only the keys left unresolved. Per-group seed search is done
// group-by-group rather than as 2^bits_per_seed full-array passes: since
// groups never share a key, the seed that maximizes a group's popcount
// depends only on the keys that hashed into that group, so bucketing
// once by group and then trying every candidate seed within each bucket
// produces the identical result at a fraction of the work.
func buildLevelFMPHGO[K any](ks KeySet[K], level uint32, cfg GOConfig[K]) (*BitVec, uint64, []uint32) {
	n := uint64(ks.Len())
	g := cfg.BitsPerGroup
	numSeeds := uint64(1) << cfg.BitsPerSeed

	numGroups, numWords := groupsForLevel(n, cfg.RelativeLevelSize, g)
	L := numWords * 64

	buckets := make([][]uint64, numGroups)
	ks.ForEachKey(func(k K) {
		h := cfg.Hasher.HashOne(k, level)
		grp := mapU64ToRange(h, numGroups)
		buckets[grp] = append(buckets[grp], h)
	})

	levelBits := NewBitVec(L)
	seeds := make([]uint32, numGroups)

	for grp, hs := range buckets {
		if len(hs) == 0 {
			continue
		}

		var bestSeed uint32
		var bestPop uint64
		var bestResult uint64
		found := false

		for sigma := uint64(0); sigma < numSeeds; sigma++ {
			var occ, coll uint64
			for _, h := range hs {
				slot := groupSlot(h, uint32(sigma), g)
				mask := uint64(1) << slot
				if occ&mask != 0 {
					coll |= mask
				} else {
					occ |= mask
				}
			}
			result := occ &^ coll
			pop := popcount(result)
			if !found || pop > bestPop {
				found = true
				bestPop = pop
				bestSeed = uint32(sigma)
				bestResult = result
			}
		}

		seeds[grp] = bestSeed
		base := uint64(grp) * uint64(g)
		for b := uint(0); b < g; b++ {
			if bestResult&(uint64(1)<<b) != 0 {
				levelBits.Set(base + uint64(b))
			}
		}
	}

	ks.RetainKeys(func(k K) bool {
		h := cfg.Hasher.HashOne(k, level)
		grp := mapU64ToRange(h, numGroups)
		slot := groupSlot(h, seeds[grp], g)
		bitIdx := grp*uint64(g) + slot
		return !levelBits.Get64(bitIdx)
	})

	return levelBits, numGroups, seeds
}

func assembleFMPHGO[K any](levelBits []*BitVec, levelGroups []uint64, levelSeeds [][]uint32, g, s uint, hasher Hasher[K], numKeys int) *FMPHGO[K] {
	var totalWords uint64
	for _, groups := range levelGroups {
		totalWords += groups * uint64(g) / 64
	}

	bv := NewBitVec(totalWords * 64)
	dst := bv.Raw()
	var off uint64
	for i, lb := range levelBits {
		w := levelGroups[i] * uint64(g) / 64
		copy(dst[off:off+w], lb.Raw())
		off += w
	}

	ri := BuildRankIndex(bv.Raw(), totalWords*64)

	var totalSeeds uint64
	for _, groups := range levelGroups {
		totalSeeds += groups
	}
	packed := make([]uint64, fragmentWords(totalSeeds, s))
	var idx uint64
	for _, seeds := range levelSeeds {
		for _, sd := range seeds {
			setFragment(packed, idx, s, uint64(sd))
			idx++
		}
	}

	return &FMPHGO[K]{
		levelSizeGroups: levelGroups,
		bitsPerGroup:    g,
		bits:            bv,
		ri:              ri,
		bitsPerSeed:     s,
		groupSeeds:      packed,
		hasher:          hasher,
		numKeys:         numKeys,
	}
}

// Get looks up key and returns its assigned value in [0, Len()).
func (fn *FMPHGO[K]) Get(key K) (uint64, bool) {
	var offset uint64
	var groupOffset uint64
	g := uint64(fn.bitsPerGroup)
	words := fn.bits.Raw()

	for level, numGroups := range fn.levelSizeGroups {
		h := fn.hasher.HashOne(key, uint32(level))
		grp := mapU64ToRange(h, numGroups)
		seed := uint32(getFragment(fn.groupSeeds, groupOffset+grp, fn.bitsPerSeed))
		slot := groupSlot(h, seed, fn.bitsPerGroup)
		i := offset + grp*g + slot

		if fn.bits.Get64(i) {
			r, _ := fn.ri.Rank(words, i)
			return r, true
		}
		offset += numGroups * g
		groupOffset += numGroups
	}
	return 0, false
}

// Len returns the number of keys this function was built over.
func (fn *FMPHGO[K]) Len() int { return fn.numKeys }

// LevelSizeGroups returns a copy of the per-level group counts.
func (fn *FMPHGO[K]) LevelSizeGroups() []uint64 {
	out := make([]uint64, len(fn.levelSizeGroups))
	copy(out, fn.levelSizeGroups)
	return out
}

// BitsPerGroup returns the configured group width.
func (fn *FMPHGO[K]) BitsPerGroup() uint { return fn.bitsPerGroup }

// BitsPerSeed returns the configured packed seed width.
func (fn *FMPHGO[K]) BitsPerSeed() uint { return fn.bitsPerSeed }

// Write serializes fn as a bits-per-group byte, a vbyte level count, a
// vbyte group count per level, the bit-array words, a bits-per-seed
// byte, then the packed group-seed words, little-endian throughout.
func (fn *FMPHGO[K]) Write(w io.Writer) (int, error) {
	var total int

	n, err := writeAll(w, []byte{byte(fn.bitsPerGroup)})
	total += n
	if err != nil {
		return total, err
	}

	n, err = writeVbyte(w, uint64(len(fn.levelSizeGroups)))
	total += n
	if err != nil {
		return total, err
	}
	for _, grp := range fn.levelSizeGroups {
		n, err = writeVbyte(w, grp)
		total += n
		if err != nil {
			return total, err
		}
	}

	bs := wordsToLEBytes(fn.bits.Raw())
	n, err = writeAll(w, bs)
	total += n
	if err != nil {
		return total, err
	}

	n, err = writeAll(w, []byte{byte(fn.bitsPerSeed)})
	total += n
	if err != nil {
		return total, err
	}

	sbs := wordsToLEBytes(fn.groupSeeds)
	n, err = writeAll(w, sbs)
	total += n
	return total, err
}

// ReadFMPHGO deserializes an FMPHGO previously produced by Write. The
// caller supplies the bits-per-group/bits-per-seed it expects; a
// mismatch against the persisted header is reported as ErrBadParam
// rather than silently reinterpreted, since every downstream offset
// computation depends on both being exactly right.
func ReadFMPHGO[K any](r io.Reader, hasher Hasher[K], expectBitsPerGroup, expectBitsPerSeed uint) (*FMPHGO[K], error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	rdr := br.(io.Reader)

	var hdr [1]byte
	if _, err := io.ReadFull(rdr, hdr[:]); err != nil {
		return nil, err
	}
	g := uint(hdr[0])
	if g != expectBitsPerGroup || g < 2 || g > 63 {
		return nil, ErrBadParam
	}

	numLevels, err := readVbyte(br)
	if err != nil {
		return nil, err
	}
	if numLevels > maxReadLevels {
		return nil, ErrCorrupt
	}

	levelGroups := make([]uint64, numLevels)
	var totalWords uint64
	for i := range levelGroups {
		grp, err := readVbyte(br)
		if err != nil {
			return nil, err
		}
		if (grp*uint64(g))%64 != 0 {
			return nil, ErrCorrupt
		}
		levelGroups[i] = grp
		totalWords += grp * uint64(g) / 64
	}

	buf := make([]byte, totalWords*8)
	if _, err := io.ReadFull(rdr, buf); err != nil {
		return nil, err
	}
	var words []uint64
	if totalWords > 0 {
		words = leBytesToWords(buf)
	}
	bv := &BitVec{v: words}
	ri := BuildRankIndex(words, totalWords*64)

	var sHdr [1]byte
	if _, err := io.ReadFull(rdr, sHdr[:]); err != nil {
		return nil, err
	}
	s := uint(sHdr[0])
	if s != expectBitsPerSeed || s < 1 || s > 10 {
		return nil, ErrBadParam
	}

	var totalSeeds uint64
	for _, grp := range levelGroups {
		totalSeeds += grp
	}
	seedBuf := make([]byte, fragmentWords(totalSeeds, s)*8)
	if _, err := io.ReadFull(rdr, seedBuf); err != nil {
		return nil, err
	}
	var seeds []uint64
	if len(seedBuf) > 0 {
		seeds = leBytesToWords(seedBuf)
	}

	return &FMPHGO[K]{
		levelSizeGroups: levelGroups,
		bitsPerGroup:    g,
		bits:            bv,
		ri:              ri,
		bitsPerSeed:     s,
		groupSeeds:      seeds,
		hasher:          hasher,
		numKeys:         int(ri.Ones()),
	}, nil
}
