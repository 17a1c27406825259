// errors.go -- errors returned by the constdb package
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package constdb

import (
	"errors"
	"fmt"
)

var (
	// ErrFrozen is returned when attempting to add new records to an
	// already frozen DB, or to re-freeze one.
	ErrFrozen = errors.New("constdb: DB already frozen")

	// ErrValueTooLarge is returned if the value length is larger than
	// 2^32-1 bytes.
	ErrValueTooLarge = errors.New("constdb: value is larger than 2^32-1 bytes")

	// ErrExists is returned if a duplicate key is added to the DB.
	ErrExists = errors.New("constdb: key exists in DB")

	// ErrNoKey is returned when a key cannot be found in the DB.
	ErrNoKey = errors.New("constdb: no such key")
)

func errShortWrite(who string, n, want int) error {
	return fmt.Errorf("%s: incomplete write; wanted %d, wrote %d", who, want, n)
}
