// fmph.go -- FMPH: a fingerprinting-based minimal perfect hash function
// built by iterated level-wise fingerprinting.
//
// Each level hashes the keys still unresolved from the previous level
// into a bit array sized at roughly the key count; a key "resolves" at
// the first level where it lands on a bit with no collision. Querying
// replays the same per-level hash and returns the rank of the bit the
// key first resolves on, which is injective into [0, n) by
// construction.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package fmph

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"
)

// set to true for verbose construction trace
const debug bool = false

func debugf(f string, v ...interface{}) {
	if !debug {
		return
	}
	s := fmt.Sprintf(f, v...)
	if n := len(s); n == 0 || s[n-1] != '\n' {
		s += "\n"
	}
	fmt.Fprint(os.Stderr, s)
}

// maxStagnantLevels is the number of consecutive levels that must fail
// to shrink the retained key count before construction gives up. Kept
// as a fixed constant rather than exposed in Config: a smaller value
// would produce false-positive construction failures on legitimate
// (if unlucky) key sets, and there's no evidence a larger one helps -
// ten stagnant levels without any progress reliably means a duplicate
// key or a hasher that can't decorrelate this key from itself.
const maxStagnantLevels = 10

// Config controls FMPH construction.
type Config[K any] struct {
	// RelativeLevelSize is the level size as a percentage of the
	// retained key count for that level (default 100).
	RelativeLevelSize int
	// CacheThreshold is the retained-key count below which the level
	// builder materializes a per-key hash array instead of hashing
	// each key twice (default 1<<27).
	CacheThreshold int
	// Parallelism above 1 enables parallel level building; the work is
	// then fanned out over GOMAXPROCS goroutines, not over Parallelism
	// of them. 0 or 1 disables parallel construction.
	Parallelism int
	// Hasher supplies the seeded hash family.
	Hasher Hasher[K]
}

// DefaultConfig returns a Config with the package defaults and
// GOMAXPROCS-based parallelism, using 'h' as the hasher.
func DefaultConfig[K any](h Hasher[K]) Config[K] {
	return Config[K]{
		RelativeLevelSize: 100,
		CacheThreshold:    defaultCacheThreshold,
		Parallelism:       parallelism(),
		Hasher:            h,
	}
}

func (c Config[K]) withDefaults() Config[K] {
	if c.RelativeLevelSize <= 0 {
		c.RelativeLevelSize = 100
	}
	if c.CacheThreshold <= 0 {
		c.CacheThreshold = defaultCacheThreshold
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 1
	}
	return c
}

// FMPH is an immutable minimal perfect hash function over the key set
// it was built from.
type FMPH[K any] struct {
	levelSizes []uint64 // words, per level
	bits       *BitVec
	ri         *RankIndex
	hasher     Hasher[K]
	numKeys    int
}

// levelSizeWords returns ceil(n*relLevelSize / (64*100)), the level's
// bit-array length in 64-bit words.
func levelSizeWords(n uint64, relLevelSize int) uint64 {
	num := n * uint64(relLevelSize)
	return (num + 6399) / 6400
}

// Build constructs an FMPH over every key in ks. ks is consumed: its
// retained keys are repeatedly filtered down to nothing as levels
// resolve them.
func Build[K any](ks KeySet[K], cfg Config[K]) (*FMPH[K], error) {
	fm, _, err := buildFMPH(ks, cfg, false)
	return fm, err
}

// BuildOrPartial behaves like Build, but on construction failure
// returns a partial FMPH covering only the keys that did resolve,
// along with the residual (unresolved) keys and the original key-set
// size.
func BuildOrPartial[K any](ks KeySet[K], cfg Config[K]) (fn *FMPH[K], residual []K, originalSize int, err error) {
	originalSize = ks.Len()
	fn, residual, err = buildFMPH(ks, cfg, true)
	return fn, residual, originalSize, err
}

func buildFMPH[K any](ks KeySet[K], cfg Config[K], allowPartial bool) (*FMPH[K], []K, error) {
	originalSize := ks.Len()
	if originalSize == 0 {
		return nil, nil, ErrEmptyKeySet
	}
	cfg = cfg.withDefaults()

	var levelBits []*BitVec
	var levelSizes []uint64

	prevN := ks.Len()
	stagnant := 0

	for prevN > 0 {
		level := uint32(len(levelSizes))
		bits, lbits := buildLevelFMPH(ks, level, cfg)
		levelBits = append(levelBits, bits)
		levelSizes = append(levelSizes, lbits/64)

		newN := ks.Len()
		if newN == prevN {
			stagnant++
		} else {
			stagnant = 0
		}
		prevN = newN
		debugf("fmph: level %d: %d bits, %d keys remaining (stagnant=%d)", level, lbits, newN, stagnant)

		if stagnant >= maxStagnantLevels {
			levelBits = levelBits[:len(levelBits)-maxStagnantLevels]
			levelSizes = levelSizes[:len(levelSizes)-maxStagnantLevels]

			if !allowPartial {
				return nil, nil, ErrConstructionFailed
			}

			residual := collectAll(ks)
			resolved := originalSize - len(residual)
			fn := assembleFMPH(levelBits, levelSizes, cfg.Hasher, resolved)
			return fn, residual, nil
		}
	}

	fn := assembleFMPH(levelBits, levelSizes, cfg.Hasher, originalSize)
	return fn, nil, nil
}

func collectAll[K any](ks KeySet[K]) []K {
	out := make([]K, 0, ks.Len())
	ks.ForEachKey(func(k K) { out = append(out, k) })
	return out
}

func assembleFMPH[K any](levelBits []*BitVec, levelSizes []uint64, hasher Hasher[K], numKeys int) *FMPH[K] {
	var totalWords uint64
	for _, sz := range levelSizes {
		totalWords += sz
	}

	bv := NewBitVec(totalWords * 64)
	dst := bv.Raw()
	var off uint64
	for i, lb := range levelBits {
		copy(dst[off:off+levelSizes[i]], lb.Raw())
		off += levelSizes[i]
	}

	ri := BuildRankIndex(bv.Raw(), totalWords*64)

	return &FMPH[K]{
		levelSizes: levelSizes,
		bits:       bv,
		ri:         ri,
		hasher:     hasher,
		numKeys:    numKeys,
	}
}

// buildLevelFMPH builds one fingerprint level for the keys currently
// retained in ks, mutating ks to retain only the keys that remain
// unresolved. It returns the level's bit array and its length in bits
// (always a multiple of 64).
func buildLevelFMPH[K any](ks KeySet[K], level uint32, cfg Config[K]) (*BitVec, uint64) {
	n := uint64(ks.Len())
	L := levelSizeWords(n, cfg.RelativeLevelSize) * 64

	result := NewBitVec(L)
	collision := NewBitVec(L)

	setBit := func(h uint64) {
		p := mapU64ToRange(h, L)
		if result.AtomicTestAndSet(p) {
			collision.AtomicSet(p)
		}
	}

	parallel := cfg.Parallelism > 1 && ks.HasParForEachKey()
	useCache := int(n) < cfg.CacheThreshold

	var hashes []uint64
	if useCache {
		if parallel {
			hashes = ParMapEachKey(ks, func(k K) uint64 { return cfg.Hasher.HashOne(k, level) })
			parallelForSlice(hashes, setBit)
		} else {
			hashes = MapEachKey(ks, func(k K) uint64 { return cfg.Hasher.HashOne(k, level) })
			for _, h := range hashes {
				setBit(h)
			}
		}
	} else {
		hashOf := func(k K) uint64 { return cfg.Hasher.HashOne(k, level) }
		if parallel {
			_ = ks.ParForEachKey(func(k K) { setBit(hashOf(k)) })
		} else {
			ks.ForEachKey(func(k K) { setBit(hashOf(k)) })
		}
	}

	rw, cw := result.Raw(), collision.Raw()
	for i := range rw {
		rw[i] &^= cw[i]
	}

	if useCache {
		ks.RetainKeysWithIndices(func(idx int, k K) bool {
			p := mapU64ToRange(hashes[idx], L)
			return !result.Get64(p)
		})
	} else {
		ks.RetainKeys(func(k K) bool {
			h := cfg.Hasher.HashOne(k, level)
			p := mapU64ToRange(h, L)
			return !result.Get64(p)
		})
	}

	return result, L
}

// parallelForSlice calls f(v) for every element of vs, fanned out over
// GOMAXPROCS goroutines.
func parallelForSlice[T any](vs []T, f func(T)) {
	n := len(vs)
	if n == 0 {
		return
	}
	workers := parallelism()
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		slice := vs[start:end]
		g.Go(func() error {
			for _, v := range slice {
				f(v)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Get looks up key and returns its assigned value in [0, Len()). For
// keys that were part of the build, the second return is always true.
// For keys outside the original build set it is either false, or true
// with an arbitrary value in [0, Len()).
func (fn *FMPH[K]) Get(key K) (uint64, bool) {
	var offset uint64
	words := fn.bits.Raw()
	for level, sz := range fn.levelSizes {
		L := sz * 64
		h := fn.hasher.HashOne(key, uint32(level))
		p := mapU64ToRange(h, L)
		i := offset + p
		if fn.bits.Get64(i) {
			r, _ := fn.ri.Rank(words, i)
			return r, true
		}
		offset += L
	}
	return 0, false
}

// Len returns the number of keys this function was built over.
func (fn *FMPH[K]) Len() int {
	return fn.numKeys
}

// LevelSizes returns a copy of the per-level bit-array lengths, in
// 64-bit words.
func (fn *FMPH[K]) LevelSizes() []uint64 {
	out := make([]uint64, len(fn.levelSizes))
	copy(out, fn.levelSizes)
	return out
}

// Write serializes fn as a vbyte level count, a vbyte level-size table,
// then the concatenated bit-array words, little-endian throughout.
func (fn *FMPH[K]) Write(w io.Writer) (int, error) {
	var total int

	n, err := writeVbyte(w, uint64(len(fn.levelSizes)))
	total += n
	if err != nil {
		return total, err
	}

	for _, sz := range fn.levelSizes {
		n, err = writeVbyte(w, sz)
		total += n
		if err != nil {
			return total, err
		}
	}

	bs := wordsToLEBytes(fn.bits.Raw())
	n, err = writeAll(w, bs)
	total += n
	return total, err
}

// maxReadLevels bounds num_levels on read, so a corrupt or adversarial
// stream can't force an enormous allocation before the first sanity
// check fails naturally.
const maxReadLevels = 1 << 24

// ReadFMPH deserializes an FMPH previously produced by Write, using
// 'hasher' as the (re-supplied, not persisted) hash family. The rank
// index is rebuilt deterministically from the bit array; it is never
// part of the wire format.
func ReadFMPH[K any](r io.Reader, hasher Hasher[K]) (*FMPH[K], error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}

	numLevels, err := readVbyte(br)
	if err != nil {
		return nil, err
	}
	if numLevels > maxReadLevels {
		return nil, ErrCorrupt
	}

	levelSizes := make([]uint64, numLevels)
	var totalWords uint64
	for i := range levelSizes {
		sz, err := readVbyte(br)
		if err != nil {
			return nil, err
		}
		levelSizes[i] = sz
		totalWords += sz
	}

	buf := make([]byte, totalWords*8)
	if _, err := io.ReadFull(br.(io.Reader), buf); err != nil {
		return nil, err
	}

	var words []uint64
	if totalWords > 0 {
		words = leBytesToWords(buf)
	}
	bv := &BitVec{v: words}
	ri := BuildRankIndex(words, totalWords*64)

	return &FMPH[K]{
		levelSizes: levelSizes,
		bits:       bv,
		ri:         ri,
		hasher:     hasher,
		numKeys:    int(ri.Ones()),
	}, nil
}
