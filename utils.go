// utils.go -- utility functions
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package fmph

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"unsafe"
)

// mix is a 64-bit avalanche finalizer (Austin Appleby / Zi Long Tan style).
// It is used to decorrelate a key's base hash from a small integer
// (a level or seed number) before folding the two together.
func mix(h uint64) uint64 {
	h ^= h >> 23
	h *= 0x2127599bf4325c37
	h ^= h >> 47
	return h
}

func randbytes(n int) []byte {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		panic("fmph: can't read crypto/rand: " + err.Error())
	}
	return b
}

func rand32() uint32 {
	var b [4]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		panic("fmph: can't read crypto/rand: " + err.Error())
	}
	return binary.BigEndian.Uint32(b[:])
}

func rand64() uint64 {
	var b [8]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		panic("fmph: can't read crypto/rand: " + err.Error())
	}
	return binary.BigEndian.Uint64(b[:])
}

// u64sToByteSlice returns a zero-copy byte-slice view over a []uint64, in
// native byte order. Used to write bit-array words in bulk and to hand a
// contiguous view to mmap-backed readers.
func u64sToByteSlice(v []uint64) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*8)
}

// bsToUint64Slice is the inverse of u64sToByteSlice: a zero-copy view of a
// byte slice (whose length must be a multiple of 8) as a []uint64.
func bsToUint64Slice(b []byte) []uint64 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/8)
}

func u32sToByteSlice(v []uint32) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*4)
}

func bsToUint32Slice(b []byte) []uint32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}
