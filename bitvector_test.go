// bitvector_test.go -- test suite for BitVec
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package fmph

import (
	"bytes"
	"math/rand"
	"runtime"
	"sync"
	"testing"
)

func TestBV(t *testing.T) {
	assert := newAsserter(t)

	bv := NewBitVec(100)
	assert(bv.Size() == 128, "size mismatch; exp 128, saw %d", bv.Size())

	var i uint64
	for i = 0; i < bv.Size(); i++ {
		if 1 == (i & 1) {
			bv.Set(i)
		}
	}

	for i = 0; i < bv.Size(); i++ {
		if 1 == (i & 1) {
			assert(bv.Get64(i), "%d not set", i)
		} else {
			assert(!bv.Get64(i), "%d is set", i)
		}
	}
}

func TestBVConcurrentRandom(t *testing.T) {
	assert := newAsserter(t)
	ncpu := runtime.NumCPU() * 2

	br := NewBitVec(1000)
	bw := NewBitVec(1000)
	n := br.Size()

	for i := uint64(0); i < n; i++ {
		if 1 == (i & 1) {
			br.Set(i)
		}
	}

	verify := make([][]uint64, ncpu)
	var w sync.WaitGroup
	w.Add(ncpu)
	for i := 0; i < ncpu; i++ {
		go func(i int, a, b *BitVec) {
			defer w.Done()

			n := a.Size() * 16
			idx := make([]uint64, 0, n)
			sz := a.Size()

			for j := uint64(0); j < n; j++ {
				r := rand.Uint64() % sz
				if a.Get64(r) {
					b.AtomicSet(r)
					idx = append(idx, r)
				}
			}

			verify[i] = idx
		}(i, br, bw)
	}

	w.Wait()

	for _, v := range verify {
		for _, k := range v {
			assert(bw.Get64(k), "%d is not set", k)
		}
	}
}

func TestBVConcurrent(t *testing.T) {
	assert := newAsserter(t)
	ncpu := runtime.NumCPU()

	br := NewBitVec(1000)
	bw := NewBitVec(1000)
	n := br.Size()

	for i := uint64(0); i < n; i++ {
		if 1 == (i & 1) {
			br.Set(i)
		}
	}

	var w sync.WaitGroup
	w.Add(ncpu)
	for i := 0; i < ncpu; i++ {
		go func(i int, a, b *BitVec) {
			defer w.Done()

			n := a.Size()
			for j := uint64(0); j < n; j++ {
				if a.Get64(j) {
					b.AtomicSet(j)
				}
			}
		}(i, br, bw)
	}

	w.Wait()

	for i := uint64(0); i < n; i++ {
		if br.Get64(i) {
			assert(bw.Get64(i), "%d is not set", i)
		}
	}
}

func TestBVMarshal(t *testing.T) {
	assert := newAsserter(t)

	var b bytes.Buffer

	bv := NewBitVec(100)
	assert(bv.Size() == 128, "size mismatch; exp 128, saw %d", bv.Size())

	var i uint64
	for i = 0; i < bv.Size(); i++ {
		if 1 == (i & 1) {
			bv.Set(i)
		}
	}

	b.Write(wordsToLEBytes(bv.Raw()))
	expsz := 8 * bv.Words()
	assert(uint64(b.Len()) == expsz, "marshal size incorrect; exp %d, saw %d", expsz, b.Len())

	bn := NewBitVec(uint64(b.Len()) * 8)
	n := 8 * uint64(copy(bn.Raw(), leBytesToWords(b.Bytes())))
	assert(bn.Size() == bv.Size(), "unmarshal size error; exp %d, saw %d", bv.Size(), bn.Size())
	assert(n == uint64(b.Len()), "unmarshal: not enough bytes consumed; exp %d, saw %d", b.Len(), n)

	for i = 0; i < bv.Size(); i++ {
		if bv.Get64(i) {
			assert(bn.Get64(i), "unmarshal %d is unset", i)
		} else {
			assert(!bn.Get64(i), "unmarshal %d is set", i)
		}
	}
}

func TestBVPopCount(t *testing.T) {
	assert := newAsserter(t)

	bv := NewBitVec(256)
	var want uint64
	for i := uint64(0); i < 256; i += 3 {
		bv.Set(i)
		want++
	}
	assert(bv.PopCount() == want, "popcount mismatch; exp %d, saw %d", want, bv.PopCount())
}
