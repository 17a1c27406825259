// dbwriter.go -- Constant DB built on top of FMPH/FMPHGO
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package constdb

import (
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/dchest/siphash"

	fmph "github.com/opencoff/go-succinct"
)

// The on-disk DB has the following general structure:
//   - 64 byte file header: big-endian encoding of all multibyte ints
//      * magic    [4]byte
//      * flags    uint32 (indicates if DB is keys-only or keys+vals)
//      * salt     [16]byte random salt for siphash record integrity
//      * nkeys    uint64  Number of keys in the DB
//      * offtbl   uint64  File offset of the offset table (page-aligned)
//
//   - Contiguous series of records; each record is a key/value pair:
//      * cksum    uint64  Siphash checksum of value, offset (big endian)
//      * val      []byte  value bytes
//
//   - Possibly a gap until the next PageSize boundary (4096 bytes)
//   - The offset table: interleaved (key, offset) uint64 pairs followed by
//     the value lengths ([]uint32), or just keys ([]uint64) for a keys-only
//     DB. Host byte order, meant to be memory mapped.
//   - Marshaled FMPH or FMPHGO table
//   - 32 bytes of strong checksum (SHA512_256) over the file header, offset
//     table and marshaled MPHF.
//
// Unlike the teacher's CHD/BBHash-backed DB, construction here is purely
// batch: FMPH/FMPHGO.Build consumes the full key set at once, so there is no
// incremental Add into the MPHF builder - AddKeyVals/Add just accumulate
// records in memory, and Freeze does the one build pass.

const (
	_DB_KeysOnly = 1 << iota

	_Magic_FMPH   = "FMP1"
	_Magic_FMPHGO = "FMP2"
)

type wstate int

const (
	_Aborted = -1
	_Open    = 0
	_Frozen  = 1
)

// value tracks what was written for one key.
type value struct {
	off  uint64
	vlen uint32
}

// mphf is the subset of FMPH/FMPHGO that DBWriter/DBReader need; both
// fmph.FMPH[uint64] and fmph.FMPHGO[uint64] satisfy it without any
// adapter boilerplate.
type mphf interface {
	Get(key uint64) (uint64, bool)
	Len() int
	Write(w io.Writer) (int, error)
}

// DBWriter builds a read-only constant database keyed by uint64 (the
// caller is expected to have already hashed or interned its natural
// keys down to uint64, exactly as the upstream MPH package did).
// Values are arbitrary byte sequences, stored sequentially and
// protected individually by a siphash-2-4 checksum; metadata and the
// MPHF table are protected together by SHA512-256.
type DBWriter struct {
	fd *os.File

	keymap map[uint64]*value

	salt []byte

	off     uint64
	valSize uint64

	fntmp string
	fn    string
	state wstate

	useGO        bool
	bitsPerGroup uint
	bitsPerSeed  uint
}

// NewDBWriter prepares file 'fn' to hold a constant DB built on FMPH.
func NewDBWriter(fn string) (*DBWriter, error) {
	return newDBWriter(fn, false, 0, 0)
}

// NewGODBWriter prepares file 'fn' to hold a constant DB built on
// FMPHGO with the given group/seed widths.
func NewGODBWriter(fn string, bitsPerGroup, bitsPerSeed uint) (*DBWriter, error) {
	return newDBWriter(fn, true, bitsPerGroup, bitsPerSeed)
}

func newDBWriter(fn string, useGO bool, bitsPerGroup, bitsPerSeed uint) (*DBWriter, error) {
	tmp := fmt.Sprintf("%s.tmp.%d", fn, randSuffix())
	fd, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}

	w := &DBWriter{
		fd:           fd,
		keymap:       make(map[uint64]*value),
		salt:         randbytes(16),
		off:          64,
		fn:           fn,
		fntmp:        tmp,
		useGO:        useGO,
		bitsPerGroup: bitsPerGroup,
		bitsPerSeed:  bitsPerSeed,
	}

	var z [64]byte
	if _, err := writeAll(fd, z[:]); err != nil {
		return nil, err
	}

	return w, nil
}

// Len returns the total number of distinct keys added so far.
func (w *DBWriter) Len() int {
	return len(w.keymap)
}

// Filename returns the final (post-Freeze) path of the database.
func (w *DBWriter) Filename() string {
	return w.fn
}

// AddKeyVals adds a series of key-value pairs. Records with duplicate
// keys are discarded. Returns the number of records added.
func (w *DBWriter) AddKeyVals(keys []uint64, vals [][]byte) (int, error) {
	if w.state != _Open {
		return 0, ErrFrozen
	}

	n := len(keys)
	if len(vals) < n {
		n = len(vals)
	}

	var z int
	for i := 0; i < n; i++ {
		ok, err := w.addRecord(keys[i], vals[i])
		if err == ErrExists {
			continue
		}
		if err != nil {
			return z, err
		}
		if ok {
			z++
		}
	}
	return z, nil
}

// Add adds a single key/value pair.
func (w *DBWriter) Add(key uint64, val []byte) error {
	if w.state != _Open {
		return ErrFrozen
	}
	_, err := w.addRecord(key, val)
	return err
}

// Abort discards the in-progress construction.
func (w *DBWriter) Abort() error {
	if w.state != _Open {
		return ErrFrozen
	}
	return w.abort()
}

func (w *DBWriter) abort() error {
	if err := os.Remove(w.fd.Name()); err != nil {
		return err
	}
	if err := w.fd.Close(); err != nil {
		return err
	}
	w.state = _Aborted
	return nil
}

// Freeze builds the minimal perfect hash over every added key, writes
// the DB and closes it.
func (w *DBWriter) Freeze() (err error) {
	defer func(e *error) {
		if *e != nil {
			w.abort()
		}
	}(&err)

	if w.state != _Open {
		return ErrFrozen
	}

	keys := make([]uint64, 0, len(w.keymap))
	for k := range w.keymap {
		keys = append(keys, k)
	}

	hasher := fmph.NewUint64Hasher()
	var mp mphf
	var magic string

	if w.useGO {
		cfg := fmph.DefaultGOConfig[uint64](hasher)
		if w.bitsPerGroup > 0 {
			cfg.BitsPerGroup = w.bitsPerGroup
		}
		if w.bitsPerSeed > 0 {
			cfg.BitsPerSeed = w.bitsPerSeed
		}
		mp, err = fmph.BuildGO[uint64](fmph.NewVecKeySet(keys), cfg)
		magic = _Magic_FMPHGO
		w.bitsPerGroup = cfg.BitsPerGroup
		w.bitsPerSeed = cfg.BitsPerSeed
	} else {
		mp, err = fmph.Build[uint64](fmph.NewVecKeySet(keys), fmph.DefaultConfig[uint64](hasher))
		magic = _Magic_FMPH
	}
	if err != nil {
		return err
	}

	h := sha512.New512_256()
	tee := io.MultiWriter(w.fd, h)

	pgsz := uint64(os.Getpagesize())
	pgszM1 := pgsz - 1
	offtbl := w.off + pgszM1
	offtbl &= ^pgszM1

	if offtbl > w.off {
		zeroes := make([]byte, offtbl-w.off)
		if _, err = writeAll(w.fd, zeroes); err != nil {
			return err
		}
		w.off = offtbl
	}

	var ehdr [64]byte
	be := binary.BigEndian
	copy(ehdr[:4], magic)

	i := 4
	if w.valSize == 0 {
		be.PutUint32(ehdr[i:i+4], uint32(_DB_KeysOnly))
	}
	i += 4

	i += copy(ehdr[i:], w.salt)
	be.PutUint64(ehdr[i:i+8], uint64(mp.Len()))
	i += 8
	be.PutUint64(ehdr[i:i+8], offtbl)
	i += 8

	if w.useGO {
		ehdr[i] = byte(w.bitsPerGroup)
		ehdr[i+1] = byte(w.bitsPerSeed)
	}

	h.Write(ehdr[:])

	if err := w.marshalOffsets(tee, mp); err != nil {
		return err
	}

	aligned := w.off + 7
	aligned &= ^uint64(7)
	if aligned > w.off {
		zeroes := make([]byte, aligned-w.off)
		if _, err = writeAll(tee, zeroes); err != nil {
			return err
		}
		w.off = aligned
	}

	var nw int
	nw, err = mp.Write(tee)
	if err != nil {
		return err
	}
	w.off += uint64(nw)

	cksum := h.Sum(nil)
	if _, err = writeAll(w.fd, cksum[:]); err != nil {
		return err
	}

	w.fd.Seek(0, 0)
	if _, err = writeAll(w.fd, ehdr[:]); err != nil {
		return err
	}

	if err = w.fd.Sync(); err != nil {
		return err
	}
	if err = w.fd.Close(); err != nil {
		return err
	}
	if err = os.Rename(w.fntmp, w.fn); err != nil {
		return err
	}
	w.state = _Frozen
	return nil
}

func (w *DBWriter) marshalOffsets(tee io.Writer, mp mphf) error {
	if w.valSize == 0 {
		return w.marshalKeys(tee, mp)
	}

	n := uint64(mp.Len())
	offset := make([]uint64, 2*n)
	vlen := make([]uint32, n)

	for k, r := range w.keymap {
		i, ok := mp.Get(k)
		if !ok {
			return fmt.Errorf("dbwriter: panic: can't find key %x", k)
		}

		vlen[i] = r.vlen
		j := i * 2
		offset[j] = k
		offset[j+1] = r.off
	}

	bs := u64sToByteSlice(offset)
	if _, err := writeAll(tee, bs); err != nil {
		return err
	}

	bs = u32sToByteSlice(vlen)
	if _, err := writeAll(tee, bs); err != nil {
		return err
	}

	w.off += n * (8 + 8 + 4)
	return nil
}

func (w *DBWriter) marshalKeys(tee io.Writer, mp mphf) error {
	n := uint64(mp.Len())
	offset := make([]uint64, n)
	for k := range w.keymap {
		i, ok := mp.Get(k)
		if !ok {
			return fmt.Errorf("dbwriter: panic: can't find key %x", k)
		}
		offset[i] = k
	}

	bs := u64sToByteSlice(offset)
	if _, err := writeAll(tee, bs); err != nil {
		return err
	}
	w.off += n * 8
	return nil
}

func (w *DBWriter) addRecord(key uint64, val []byte) (bool, error) {
	if uint64(len(val)) > uint64(1<<32)-1 {
		return false, ErrValueTooLarge
	}

	if _, ok := w.keymap[key]; ok {
		return false, ErrExists
	}

	v := &value{
		off:  w.off,
		vlen: uint32(len(val)),
	}
	w.keymap[key] = v

	if len(val) > 0 {
		if err := w.writeRecord(val, v.off); err != nil {
			return false, err
		}
		w.valSize += uint64(len(val))
	}

	return true, nil
}

func (w *DBWriter) writeRecord(val []byte, off uint64) error {
	var o [8]byte
	var c [8]byte

	be := binary.BigEndian
	be.PutUint64(o[:], off)

	h := siphash.New(w.salt)
	h.Write(o[:])
	h.Write(val)
	be.PutUint64(c[:], h.Sum64())

	if _, err := writeAll(w.fd, c[:]); err != nil {
		return err
	}
	if _, err := writeAll(w.fd, val); err != nil {
		return err
	}

	w.off += uint64(len(val)) + 8
	return nil
}
