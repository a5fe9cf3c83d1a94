// Package bitreader implements a big-endian, bit-position reader over
// an externally supplied byte slice, the foundation every AVS2 header
// and slice-data parser is built on.
//
// Its shape follows the teacher's h264parser's bit consumption idiom
// and the bit-oriented reader in deepteams-webp's internal/bitio:
// a small cursor type with fixed-width, Exp-Golomb, and alignment
// accessors, reporting overrun as an error value rather than a panic.
package bitreader

import (
	"github.com/avs2go/davs2/errs"
)

// Reader consumes a big-endian bit stream from a byte slice it does
// not own. It never copies the underlying data.
type Reader struct {
	data []byte
	pos  int // absolute bit position
}

// New wraps data for bit-at-a-time reading starting at bit 0.
func New(data []byte) *Reader {
	return &Reader{data: data}
}

// overrunErr returns the errs.KindStreamStructure error reported
// whenever a read would consume bits past the end of the buffer. Per spec, reading
// past the end is fatal for the *current picture*, not the process:
// callers must discard the in-progress unit and continue.
func overrunErr() error {
	return errs.New(errs.KindStreamStructure, "bitreader: read past end of buffer")
}

// BitPos returns the current absolute bit position.
func (r *Reader) BitPos() int { return r.pos }

// Len returns the total number of bits available.
func (r *Reader) Len() int { return len(r.data) * 8 }

// BytesLeft returns the number of whole bytes remaining from the
// current byte boundary (the bit cursor rounded down to a byte).
func (r *Reader) BytesLeft() int {
	bytePos := r.pos / 8
	if bytePos >= len(r.data) {
		return 0
	}
	return len(r.data) - bytePos
}

// ReadU reads the next n bits (1 <= n <= 32) as an unsigned integer.
func (r *Reader) ReadU(n int) (uint32, error) {
	if n <= 0 || n > 32 {
		return 0, errs.Newf(errs.KindStreamStructure, "bitreader: invalid width %d", n)
	}
	if r.pos+n > r.Len() {
		return 0, overrunErr()
	}
	var v uint32
	for i := 0; i < n; i++ {
		byteIdx := r.pos >> 3
		bitIdx := 7 - uint(r.pos&7)
		bit := (r.data[byteIdx] >> bitIdx) & 1
		v = (v << 1) | uint32(bit)
		r.pos++
	}
	return v, nil
}

// ReadFlag reads a single bit as a boolean.
func (r *Reader) ReadFlag() (bool, error) {
	v, err := r.ReadU(1)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ReadUE reads an unsigned Exp-Golomb code: count the leading zero
// bits k (k < 32), then read k+1 bits (the implicit terminating 1
// together with the k suffix bits) and return that value minus one.
func (r *Reader) ReadUE() (uint32, error) {
	leadingZeros := 0
	for {
		bit, err := r.ReadU(1)
		if err != nil {
			return 0, err
		}
		if bit != 0 {
			break
		}
		leadingZeros++
		if leadingZeros >= 32 {
			return 0, errs.New(errs.KindStreamStructure, "bitreader: exp-golomb prefix too long")
		}
	}
	if leadingZeros == 0 {
		return 0, nil
	}
	suffix, err := r.ReadU(leadingZeros)
	if err != nil {
		return 0, err
	}
	return (uint32(1)<<uint(leadingZeros) - 1) + suffix, nil
}

// ReadSE reads a signed Exp-Golomb code: decode read_ue() as v, then
// return ((v+1)/2) with sign (-1)^v.
func (r *Reader) ReadSE() (int32, error) {
	v, err := r.ReadUE()
	if err != nil {
		return 0, err
	}
	mag := int32((v + 1) / 2)
	if v%2 == 0 {
		return mag, nil
	}
	return -mag, nil
}

// AlignByte advances the bit cursor to the next byte boundary. It is
// a no-op if already aligned.
func (r *Reader) AlignByte() {
	r.pos = (r.pos + 7) &^ 7
}

// SkipToStartCode byte-aligns the cursor and scans forward for the
// next 00 00 01 start code, consuming through it and returning the
// classifier byte that follows. Used to locate slice headers embedded
// in a picture's entropy-coded payload: each slice (including the
// first) is its own start-code-prefixed unit within the payload, not
// laid out contiguously with the next slice's header. Returns false,
// leaving the cursor at the end of the buffer, if no start code is
// found.
func (r *Reader) SkipToStartCode() (byte, bool) {
	r.AlignByte()
	i := r.pos / 8
	for i+4 <= len(r.data) {
		if r.data[i] == 0 && r.data[i+1] == 0 && r.data[i+2] == 1 {
			classifier := r.data[i+3]
			r.pos = (i + 4) * 8
			return classifier, true
		}
		i++
	}
	r.pos = len(r.data) * 8
	return 0, false
}
