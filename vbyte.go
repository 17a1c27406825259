// vbyte.go -- LEB128-style variable-byte integers, used throughout the
// persisted FMPH/FMPHGO format for level counts and level sizes.
//
// No third-party vbyte codec turned up anywhere in the retrieved
// reference repos, and LEB128 is a two-line loop either direction, so
// this one component is hand-rolled against the standard library
// rather than imported.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package fmph

import "io"

// putVbyte appends the LEB128 encoding of v to buf and returns the
// extended slice.
func putVbyte(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// getVbyte decodes a LEB128 integer from the front of buf, returning
// the value and the number of bytes consumed. ok is false if buf ends
// before a terminating byte (MSB clear) is seen, or if 10 or more
// continuation bytes are present (which could not represent a valid
// uint64).
func getVbyte(buf []byte) (v uint64, n int, ok bool) {
	var shift uint
	for n < len(buf) {
		b := buf[n]
		n++
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, n, true
		}
		shift += 7
		if shift >= 70 {
			return 0, 0, false
		}
	}
	return 0, 0, false
}

// writeVbyte writes the LEB128 encoding of v directly to w.
func writeVbyte(w io.Writer, v uint64) (int, error) {
	var tmp [10]byte
	buf := putVbyte(tmp[:0], v)
	return writeAll(w, buf)
}

// readVbyte reads one LEB128 integer from r, one byte at a time.
func readVbyte(r io.ByteReader) (uint64, error) {
	var v uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
		if shift >= 70 {
			return 0, ErrCorrupt
		}
	}
}
