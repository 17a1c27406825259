// keyset.go -- KeySet[K]: a polymorphic, parallel-iterable source of
// keys consumed by the FMPH/FMPHGO level builders.
//
// Parallel iteration (ParForEachKey) fans out over fixed contiguous
// chunks with golang.org/x/sync/errgroup, in place of the teacher's
// hand-rolled sync.WaitGroup loops - errgroup gives us first-error
// propagation for free. Retention (RetainKeys/RetainKeysWithIndices) is
// always a single sequential pass.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package fmph

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// defaultCacheThreshold mirrors the retained-key-count below which
// CachedKeySet materializes its source into a plain vector.
const defaultCacheThreshold = 1 << 27

// KeySet is a polymorphic, possibly-parallel source of keys. The level
// builders never assume keys are stored contiguously; they only ever
// go through this interface.
type KeySet[K any] interface {
	// Len returns the number of currently retained keys.
	Len() int

	// ForEachKey visits every retained key in a fixed, implementation-
	// defined order.
	ForEachKey(f func(K))

	// HasParForEachKey reports whether ParForEachKey will actually run
	// concurrently for this KeySet (some implementations, e.g. a plain
	// DynamicKeySet iterator, cannot be safely restarted per worker and
	// fall back to sequential iteration).
	HasParForEachKey() bool

	// ParForEachKey visits every retained key, possibly from multiple
	// goroutines; visitation order is unspecified. f must be safe for
	// concurrent use.
	ParForEachKey(f func(K)) error

	// RetainKeys mutates the set in place so that exactly the keys for
	// which filter returns true remain.
	RetainKeys(filter func(K) bool)

	// RetainKeysWithIndices mutates the set in place so that exactly
	// the keys at positions for which filter returns true remain; the
	// index is the key's 0-based position in the current ForEachKey
	// enumeration order. Used when the caller's decision depends on a
	// previously computed per-key vector (e.g. cached hashes) that was
	// built by iterating in that same order.
	RetainKeysWithIndices(filter func(idx int, key K) bool)
}

// MapEachKey applies f to every retained key of ks, in ForEachKey
// order, and returns the results in the same order. Go does not allow
// methods to introduce their own type parameters, so this - rather than
// a KeySet method - is the generic map operation.
func MapEachKey[K, R any](ks KeySet[K], f func(K) R) []R {
	out := make([]R, 0, ks.Len())
	ks.ForEachKey(func(k K) {
		out = append(out, f(k))
	})
	return out
}

// ParMapEachKey is the counterpart of MapEachKey used on the parallel
// build path. It writes each result into a pre-sized output slice at its
// key's ForEachKey enumeration index. It runs sequentially on the calling
// goroutine; the work is not spread over multiple workers.
func ParMapEachKey[K, R any](ks KeySet[K], f func(K) R) []R {
	out := make([]R, ks.Len())
	idx := 0
	ks.ForEachKey(func(k K) {
		i := idx
		out[i] = f(k)
		idx++
	})
	return out
}

// parallelism returns the worker count to fan out over: GOMAXPROCS,
// floored at 1.
func parallelism() int {
	if p := runtime.GOMAXPROCS(0); p > 1 {
		return p
	}
	return 1
}

// VecKeySet is a KeySet backed by an owned []K slice. It tracks its own
// retention by filtering that slice in place, and is parallel-capable:
// ParForEachKey splits the slice into contiguous chunks, one per worker.
type VecKeySet[K any] struct {
	keys []K
}

// NewVecKeySet wraps 'keys' (taking ownership: callers must not mutate
// it afterward) in a VecKeySet.
func NewVecKeySet[K any](keys []K) *VecKeySet[K] {
	return &VecKeySet[K]{keys: keys}
}

func (v *VecKeySet[K]) Len() int { return len(v.keys) }

func (v *VecKeySet[K]) ForEachKey(f func(K)) {
	for _, k := range v.keys {
		f(k)
	}
}

func (v *VecKeySet[K]) HasParForEachKey() bool { return true }

func (v *VecKeySet[K]) ParForEachKey(f func(K)) error {
	n := len(v.keys)
	if n == 0 {
		return nil
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
		slice := v.keys[start:end]
		g.Go(func() error {
			for _, k := range slice {
				f(k)
			}
			return nil
		})
	}
	return g.Wait()
}

func (v *VecKeySet[K]) RetainKeys(filter func(K) bool) {
	out := v.keys[:0]
	for _, k := range v.keys {
		if filter(k) {
			out = append(out, k)
		}
	}
	v.keys = out
}

func (v *VecKeySet[K]) RetainKeysWithIndices(filter func(idx int, key K) bool) {
	out := v.keys[:0]
	for i, k := range v.keys {
		if filter(i, k) {
			out = append(out, k)
		}
	}
	v.keys = out
}

// sliceChunk is one retained run of a SliceKeySet: the index (in the
// original borrowed slice) of its first key, and the offsets of
// retained keys relative to that first index. Offsets are stored as
// uint32 rather than spec's 8/16-bit packed chunks: Go's generic
// KeySet has no natural per-instantiation specialization point for
// that micro-optimization, and a flat uint32 offset list keeps
// RetainKeys a single straightforward pass instead of a run-length
// chunk-splitting one.
type sliceChunk struct {
	base    int
	offsets []uint32
}

// SliceKeySet borrows a []K slice without copying it; retention is
// tracked out-of-band as a list of retained offsets, so the original
// slice is never mutated.
type SliceKeySet[K any] struct {
	src     []K
	chunks  []sliceChunk
	all     bool // true until the first RetainKeys call
	numKeys int
}

// NewSliceKeySet wraps 'src' (read-only: SliceKeySet never writes
// through this slice) in a SliceKeySet with every key initially
// retained.
func NewSliceKeySet[K any](src []K) *SliceKeySet[K] {
	return &SliceKeySet[K]{src: src, all: true, numKeys: len(src)}
}

func (s *SliceKeySet[K]) Len() int { return s.numKeys }

func (s *SliceKeySet[K]) ForEachKey(f func(K)) {
	if s.all {
		for _, k := range s.src {
			f(k)
		}
		return
	}
	for _, c := range s.chunks {
		for _, off := range c.offsets {
			f(s.src[c.base+int(off)])
		}
	}
}

func (s *SliceKeySet[K]) HasParForEachKey() bool { return true }

func (s *SliceKeySet[K]) ParForEachKey(f func(K)) error {
	if s.all {
		n := len(s.src)
		if n == 0 {
			return nil
		}
		workers := parallelism()
		if workers > n {
			workers = n
		}
		chunkSz := (n + workers - 1) / workers

		var g errgroup.Group
		for start := 0; start < n; start += chunkSz {
			end := start + chunkSz
			if end > n {
				end = n
			}
			slice := s.src[start:end]
			g.Go(func() error {
				for _, k := range slice {
					f(k)
				}
				return nil
			})
		}
		return g.Wait()
	}

	var g errgroup.Group
	for _, c := range s.chunks {
		c := c
		g.Go(func() error {
			for _, off := range c.offsets {
				f(s.src[c.base+int(off)])
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *SliceKeySet[K]) RetainKeys(filter func(K) bool) {
	var newChunks []sliceChunk
	var count int

	addChunk := func(base int, offsets []uint32) {
		if len(offsets) > 0 {
			newChunks = append(newChunks, sliceChunk{base: base, offsets: offsets})
		}
	}

	if s.all {
		var cur []uint32
		base := 0
		for i, k := range s.src {
			if filter(k) {
				cur = append(cur, uint32(i-base))
				count++
			}
		}
		addChunk(base, cur)
	} else {
		for _, c := range s.chunks {
			var cur []uint32
			for _, off := range c.offsets {
				k := s.src[c.base+int(off)]
				if filter(k) {
					cur = append(cur, off)
					count++
				}
			}
			addChunk(c.base, cur)
		}
	}

	s.chunks = newChunks
	s.all = false
	s.numKeys = count
}

func (s *SliceKeySet[K]) RetainKeysWithIndices(filter func(idx int, key K) bool) {
	var newChunks []sliceChunk
	var count int
	idx := 0

	addChunk := func(base int, offsets []uint32) {
		if len(offsets) > 0 {
			newChunks = append(newChunks, sliceChunk{base: base, offsets: offsets})
		}
	}

	if s.all {
		var cur []uint32
		base := 0
		for i, k := range s.src {
			if filter(idx, k) {
				cur = append(cur, uint32(i-base))
				count++
			}
			idx++
		}
		addChunk(base, cur)
	} else {
		for _, c := range s.chunks {
			var cur []uint32
			for _, off := range c.offsets {
				k := s.src[c.base+int(off)]
				if filter(idx, k) {
					cur = append(cur, off)
					count++
				}
				idx++
			}
			addChunk(c.base, cur)
		}
	}

	s.chunks = newChunks
	s.all = false
	s.numKeys = count
}

// DynamicKeySet wraps a restartable key-producing iterator (a factory
// that returns a fresh closure visiting every original key in the same
// order every time it's called) with a known total length. It does not
// store retained keys: each RetainKeys/RetainKeysWithIndices call extends
// the retainedEarlier predicate, which is consulted on every later pass.
type DynamicKeySet[K any] struct {
	newIter        func() func(yield func(K))
	length         int
	retained       int
	retainedEarlier func(k K) bool
}

// NewDynamicKeySet builds a DynamicKeySet of 'length' keys, produced on
// demand by newIter. retainedEarlier must report whether a key produced
// by the iterator is still retained; it starts out as "always true" and
// is replaced by RetainKeys.
func NewDynamicKeySet[K any](length int, newIter func() func(yield func(K))) *DynamicKeySet[K] {
	return &DynamicKeySet[K]{
		newIter:         newIter,
		length:          length,
		retained:        length,
		retainedEarlier: func(K) bool { return true },
	}
}

func (d *DynamicKeySet[K]) Len() int { return d.retained }

func (d *DynamicKeySet[K]) ForEachKey(f func(K)) {
	pred := d.retainedEarlier
	d.newIter()(func(k K) {
		if pred(k) {
			f(k)
		}
	})
}

func (d *DynamicKeySet[K]) HasParForEachKey() bool { return false }

func (d *DynamicKeySet[K]) ParForEachKey(f func(K)) error {
	d.ForEachKey(f)
	return nil
}

func (d *DynamicKeySet[K]) RetainKeys(filter func(K) bool) {
	prevPred := d.retainedEarlier
	var count int
	d.retainedEarlier = func(k K) bool {
		if !prevPred(k) {
			return false
		}
		ok := filter(k)
		if ok {
			count++
		}
		return ok
	}
	// force materialization of the count by running one pass now, since
	// the wrapped predicate above is only evaluated lazily thereafter.
	count = 0
	pred := d.retainedEarlier
	d.newIter()(func(k K) { pred(k) })
	d.retained = count
}

func (d *DynamicKeySet[K]) RetainKeysWithIndices(filter func(idx int, key K) bool) {
	prevPred := d.retainedEarlier
	idx := 0
	var count int
	var keep []bool
	newPred := func(k K) bool {
		if !prevPred(k) {
			return false
		}
		i := idx
		idx++
		ok := filter(i, k)
		if ok {
			count++
		}
		keep = append(keep, ok)
		return ok
	}
	idx = 0
	count = 0
	d.newIter()(func(k K) { newPred(k) })
	// later passes replay the decisions recorded above, one per key that
	// prevPred retains, rather than calling filter with stale indices.
	j := 0
	d.retainedEarlier = func(k K) bool {
		if !prevPred(k) {
			return false
		}
		ok := keep[j]
		j = (j + 1) % len(keep)
		return ok
	}
	d.retained = count
}

// CachedKeySet wraps any KeySet; once its retained-key count drops
// below threshold (default defaultCacheThreshold), it copies the
// remaining keys into a VecKeySet and delegates to that from then on,
// trading a one-time materialization cost for cheap random access and
// guaranteed parallel iteration on later, smaller levels.
type CachedKeySet[K any] struct {
	inner     KeySet[K]
	threshold int
}

// NewCachedKeySet wraps ks with the default materialization threshold.
func NewCachedKeySet[K any](ks KeySet[K]) *CachedKeySet[K] {
	return NewCachedKeySetWithThreshold(ks, defaultCacheThreshold)
}

// NewCachedKeySetWithThreshold wraps ks with an explicit threshold.
func NewCachedKeySetWithThreshold[K any](ks KeySet[K], threshold int) *CachedKeySet[K] {
	return &CachedKeySet[K]{inner: ks, threshold: threshold}
}

func (c *CachedKeySet[K]) Len() int { return c.inner.Len() }

func (c *CachedKeySet[K]) ForEachKey(f func(K)) { c.inner.ForEachKey(f) }

func (c *CachedKeySet[K]) HasParForEachKey() bool { return c.inner.HasParForEachKey() }

func (c *CachedKeySet[K]) ParForEachKey(f func(K)) error { return c.inner.ParForEachKey(f) }

func (c *CachedKeySet[K]) maybeMaterialize() {
	if _, already := c.inner.(*VecKeySet[K]); already {
		return
	}
	if c.inner.Len() >= c.threshold {
		return
	}
	keys := make([]K, 0, c.inner.Len())
	c.inner.ForEachKey(func(k K) {
		keys = append(keys, k)
	})
	c.inner = NewVecKeySet(keys)
}

func (c *CachedKeySet[K]) RetainKeys(filter func(K) bool) {
	c.inner.RetainKeys(filter)
	c.maybeMaterialize()
}

func (c *CachedKeySet[K]) RetainKeysWithIndices(filter func(idx int, key K) bool) {
	c.inner.RetainKeysWithIndices(filter)
	c.maybeMaterialize()
}
