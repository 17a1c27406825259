// fmph_test.go -- test suite for FMPH construction, lookup, and the
// persisted on-disk format.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package fmph

import (
	"bytes"
	"testing"
)

func TestFMPHThreeKeys(t *testing.T) {
	assert := newAsserter(t)

	keys := []uint64{1, 2, 5}
	ks := NewVecKeySet(append([]uint64(nil), keys...))
	hasher := NewUint64Hasher()

	fn, err := Build[uint64](ks, DefaultConfig[uint64](hasher))
	assert(err == nil, "build failed: %s", err)
	assert(fn.Len() == 3, "exp 3 keys, saw %d", fn.Len())

	seen := map[uint64]bool{}
	for _, k := range keys {
		v, ok := fn.Get(k)
		assert(ok, "key %d did not resolve", k)
		assert(v < 3, "value %d out of range [0,3)", v)
		assert(!seen[v], "value %d assigned to two keys", v)
		seen[v] = true
	}
}

func TestFMPHTwoHundredKeys(t *testing.T) {
	assert := newAsserter(t)

	n := 200
	keys := make([]uint64, n)
	for i := range keys {
		keys[i] = uint64(i)*2654435761 + 1
	}
	ks := NewVecKeySet(append([]uint64(nil), keys...))
	hasher := NewUint64Hasher()

	fn, err := Build[uint64](ks, DefaultConfig[uint64](hasher))
	assert(err == nil, "build failed: %s", err)
	assert(fn.Len() == n, "exp %d keys, saw %d", n, fn.Len())

	seen := make([]bool, n)
	for _, k := range keys {
		v, ok := fn.Get(k)
		assert(ok, "key %d did not resolve", k)
		assert(int(v) < n, "value %d out of range [0,%d)", v, n)
		assert(!seen[v], "value %d assigned to two keys", v)
		seen[v] = true
	}
}

// TestFMPHSpaceBound checks the documented bits/key ceilings: at the
// default RelativeLevelSize (100), the persisted bit array must not
// exceed 2.9 bits/key; at RelativeLevelSize=200, it must not exceed
// 3.5 bits/key. A small key set is dominated by rounding to whole
// 64-bit words, so this uses enough keys for the asymptotic per-level
// overhead to dominate.
func TestFMPHSpaceBound(t *testing.T) {
	assert := newAsserter(t)

	n := 20000
	keys := make([]uint64, n)
	for i := range keys {
		keys[i] = uint64(i)*2654435761 + 1
	}
	hasher := NewUint64Hasher()

	bitsPerKey := func(fn *FMPH[uint64]) float64 {
		var totalWords uint64
		for _, sz := range fn.LevelSizes() {
			totalWords += sz
		}
		return float64(64*totalWords) / float64(fn.Len())
	}

	defCfg := DefaultConfig[uint64](hasher)
	defFn, err := Build[uint64](NewVecKeySet(append([]uint64(nil), keys...)), defCfg)
	assert(err == nil, "default-config build failed: %s", err)
	bpk := bitsPerKey(defFn)
	assert(bpk <= 2.9, "default RelativeLevelSize: %.3f bits/key exceeds 2.9 bound", bpk)

	wideCfg := DefaultConfig[uint64](hasher)
	wideCfg.RelativeLevelSize = 200
	wideFn, err := Build[uint64](NewVecKeySet(append([]uint64(nil), keys...)), wideCfg)
	assert(err == nil, "RelativeLevelSize=200 build failed: %s", err)
	bpk = bitsPerKey(wideFn)
	assert(bpk <= 3.5, "RelativeLevelSize=200: %.3f bits/key exceeds 3.5 bound", bpk)
}

func TestFMPHDuplicateKeyFails(t *testing.T) {
	assert := newAsserter(t)

	ks := NewVecKeySet([]uint64{1, 1})
	hasher := NewUint64Hasher()

	_, err := Build[uint64](ks, DefaultConfig[uint64](hasher))
	assert(err == ErrConstructionFailed, "exp ErrConstructionFailed, saw %s", err)
}

func TestFMPHBuildOrPartial(t *testing.T) {
	assert := newAsserter(t)

	ks := NewVecKeySet([]uint64{1, 2, 3, 1, 4})
	hasher := NewUint64Hasher()

	fn, residual, originalSize, err := BuildOrPartial[uint64](ks, DefaultConfig[uint64](hasher))
	assert(err == nil, "BuildOrPartial returned an error: %s", err)
	assert(originalSize == 5, "exp original size 5, saw %d", originalSize)
	assert(fn.Len() == 3, "exp 3 resolved keys, saw %d", fn.Len())

	assert(len(residual) == 2, "exp 2 residual keys, saw %d: %v", len(residual), residual)
	for _, k := range residual {
		assert(k == 1, "unexpected residual key %d", k)
	}

	seen := map[uint64]bool{}
	for _, k := range []uint64{2, 3, 4} {
		v, ok := fn.Get(k)
		assert(ok, "resolved key %d did not resolve in partial FMPH", k)
		assert(v < 3, "value %d out of range [0,3)", v)
		assert(!seen[v], "value %d assigned to two keys", v)
		seen[v] = true
	}
}

func TestFMPHEmptyKeySet(t *testing.T) {
	assert := newAsserter(t)

	ks := NewVecKeySet([]uint64{})
	hasher := NewUint64Hasher()

	_, err := Build[uint64](ks, DefaultConfig[uint64](hasher))
	assert(err == ErrEmptyKeySet, "exp ErrEmptyKeySet, saw %s", err)
}

func TestFMPHStringKeysRoundTrip(t *testing.T) {
	assert := newAsserter(t)

	ks := NewVecKeySet(append([]string(nil), keyw...))
	hasher := NewStringHasher()

	fn, err := Build[string](ks, DefaultConfig[string](hasher))
	assert(err == nil, "build failed: %s", err)
	assert(fn.Len() == len(keyw), "exp %d keys, saw %d", len(keyw), fn.Len())

	var buf bytes.Buffer
	_, err = fn.Write(&buf)
	assert(err == nil, "write failed: %s", err)

	fn2, err := ReadFMPH[string](&buf, hasher)
	assert(err == nil, "read failed: %s", err)

	for _, k := range keyw {
		want, ok := fn.Get(k)
		assert(ok, "original FMPH failed to resolve %q", k)
		got, ok := fn2.Get(k)
		assert(ok, "round-tripped FMPH failed to resolve %q", k)
		assert(got == want, "round-trip mismatch for %q: exp %d saw %d", k, want, got)
	}
}

func TestFMPHSequentialMatchesParallel(t *testing.T) {
	assert := newAsserter(t)

	n := 5000
	keys := make([]uint64, n)
	for i := range keys {
		keys[i] = uint64(i)*0x9e3779b97f4a7c15 + 7
	}
	hasher := NewUint64Hasher()

	seqCfg := DefaultConfig[uint64](hasher)
	seqCfg.Parallelism = 1
	seqFn, err := Build[uint64](NewVecKeySet(append([]uint64(nil), keys...)), seqCfg)
	assert(err == nil, "sequential build failed: %s", err)

	parCfg := DefaultConfig[uint64](hasher)
	parFn, err := Build[uint64](NewVecKeySet(append([]uint64(nil), keys...)), parCfg)
	assert(err == nil, "parallel build failed: %s", err)

	for _, k := range keys {
		v1, ok1 := seqFn.Get(k)
		v2, ok2 := parFn.Get(k)
		assert(ok1 && ok2, "key %d failed to resolve in one of the two builds", k)
		assert(v1 == v2, "sequential/parallel disagree for key %d: %d vs %d", k, v1, v2)
	}

	var seqBuf, parBuf bytes.Buffer
	_, err = seqFn.Write(&seqBuf)
	assert(err == nil, "sequential write failed: %s", err)
	_, err = parFn.Write(&parBuf)
	assert(err == nil, "parallel write failed: %s", err)
	assert(bytes.Equal(seqBuf.Bytes(), parBuf.Bytes()), "sequential and parallel builds serialize to different bytes for the same key set and seed")
}
