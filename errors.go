// errors.go - public errors exposed by the fmph package
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package fmph

import (
	"errors"
	"fmt"
)

var (
	// ErrConstructionFailed is returned when the level-building loop detects
	// ten consecutive levels that fail to reduce the retained key count.
	// This usually indicates duplicate keys, or a hasher/key interaction
	// that produces colliding output at every seed available to it.
	ErrConstructionFailed = errors.New("fmph: construction failed: too many stagnant levels")

	// ErrEmptyKeySet is returned when Build is invoked with zero keys.
	ErrEmptyKeySet = errors.New("fmph: empty key set")

	// ErrTooSmall reports a marshaled buffer too short to hold a header.
	// ReadFMPH and ReadFMPHGO do not return it: they report truncated
	// input with the io error of the failed read.
	ErrTooSmall = errors.New("fmph: not enough data to unmarshal")

	// ErrBadParam is returned when a persisted FMPHGO carries a
	// bits-per-group or bits-per-seed byte outside the supported range,
	// or one that differs from the value the caller expects.
	ErrBadParam = errors.New("fmph: unsupported on-disk parameter")

	// ErrCorrupt is returned when a persisted stream carries an
	// implausible level count, a vbyte too long for a uint64, or an FMPHGO
	// level whose group count does not fill whole 64-bit words.
	ErrCorrupt = errors.New("fmph: corrupt or truncated stream")
)

func errShortWrite(who string, n, want int) error {
	return fmt.Errorf("%s: incomplete write; wanted %d, wrote %d", who, want, n)
}
