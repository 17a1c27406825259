// utils.go -- utility functions for the constdb on-disk format
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package constdb

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"unsafe"
)

func randbytes(n int) []byte {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		panic("constdb: can't read crypto/rand: " + err.Error())
	}
	return b
}

func randSuffix() uint32 {
	var b [4]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		panic("constdb: can't read crypto/rand: " + err.Error())
	}
	return binary.BigEndian.Uint32(b[:])
}

// u64sToByteSlice returns a zero-copy byte-slice view over a []uint64,
// in native byte order. The offset table is written and read back
// through this same view on every host, so no byte-swap is ever
// actually exercised; toLittleEndianUint64/32 below are kept only for
// symmetry with a hypothetical cross-endian reader.
func u64sToByteSlice(v []uint64) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*8)
}

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

func toLittleEndianUint64(v uint64) uint64 { return v }
func toLittleEndianUint32(v uint32) uint32 { return v }

// writeAll writes buf in full or returns an error.
func writeAll(w io.Writer, buf []byte) (int, error) {
	n, err := w.Write(buf)
	if err != nil {
		return n, err
	}
	if n != len(buf) {
		return n, errShortWrite("constdb", n, len(buf))
	}
	return n, nil
}
