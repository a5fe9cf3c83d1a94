// Package nalu implements the AVS2 start-code framer and
// emulation-prevention-byte (EPB) stripper (spec §4.2).
//
// It is grounded on the teacher's media/codec/h264parser.SplitNALUs /
// DeEmulationPrevention pair, adapted to AVS2's distinct classifier
// byte set and its 2-bit (not whole-byte) emulation-prevention
// scheme, ported bit-for-bit from davs2's bs_dispose_pseudo_code
// (source/common/bitstream.cc) per spec §4.2's bit-exactness
// requirement.
package nalu

import (
	"github.com/avs2go/davs2/errs"
	"github.com/rs/zerolog"
)

// Kind classifies the byte that follows a 00 00 01 start code.
type Kind uint8

const (
	KindSequenceHeader Kind = 0xB0
	KindSequenceEnd    Kind = 0xB1
	KindUserData       Kind = 0xB2
	KindIntraPicture   Kind = 0xB3
	KindExtension      Kind = 0xB5
	KindInterPicture   Kind = 0xB6
	KindVideoEdit      Kind = 0xB7
	KindSliceMax       Kind = 0x8F
)

// Classify returns the Kind for a classifier byte. Any value in
// 0x00..0x8F is a slice; the rest are matched against the named
// constants by the caller via IsPictureOrSequenceStart, IsSlice, or
// isHeaderKind.
func Classify(b byte) Kind { return Kind(b) }

// IsSlice reports whether k is a slice start code (00..8F).
func (k Kind) IsSlice() bool { return uint8(k) <= uint8(KindSliceMax) }

// IsPictureOrSequenceStart reports whether k is one of the
// "picture or sequence" scan classifiers: sequence header, sequence
// end, intra picture, inter picture, or video edit.
func IsPictureOrSequenceStart(k Kind) bool {
	switch k {
	case KindSequenceHeader, KindSequenceEnd, KindIntraPicture, KindInterPicture, KindVideoEdit:
		return true
	default:
		return false
	}
}

// isHeaderKind reports whether k's payload is exempt from EPB
// stripping: sequence header, user data, and extension units carry
// their emulation-prevention bytes un-stripped.
func isHeaderKind(k Kind) bool {
	switch k {
	case KindSequenceHeader, KindUserData, KindExtension:
		return true
	default:
		return false
	}
}

// CodedUnit is a complete coded unit ready for header parsing or
// slice-data decoding (spec's EsUnit, §3.1). Its own start code is
// removed; its emulation-prevention bytes are stripped unless its kind
// is exempt (isHeaderKind). A picture unit's payload keeps the start
// codes of the slices embedded in it.
type CodedUnit struct {
	Kind    Kind
	Payload []byte
	PTS     int64
	DTS     int64
}

// Framer assembles a byte stream into CodedUnits. It tolerates start
// codes (and the classifier byte that follows them) being split
// across Push calls.
type Framer struct {
	log *zerolog.Logger

	carry  []byte // unresolved bytes that might be a start-code prefix
	active bool
	kind   Kind
	pts    int64
	dts    int64
	body   []byte

	queue []*CodedUnit // units completed within a single Push beyond the first
}

// New returns a Framer that logs diagnostic events (e.g. dropped
// pre-stream garbage) through log. log may be nil.
func New(log *zerolog.Logger) *Framer {
	return &Framer{log: log}
}

// Push appends bytes to the unit currently being assembled. When a
// new picture or sequence start code (IsPictureOrSequenceStart) is
// seen and a unit was already in progress, that
// unit is finalized (EPB-stripped if its kind requires it) and
// returned; bytes from the new start code onward begin the next
// unit. At most one finished unit is returned per call; additional
// units completed within the same call are queued and drained by
// subsequent Push/Flush calls returning them before looking at new
// data.
func (f *Framer) Push(data []byte, pts, dts int64) (*CodedUnit, error) {
	if len(data) == 0 {
		return nil, errs.New(errs.KindStreamStructure, "nalu: empty packet")
	}
	if len(data) < 4 && len(f.carry)+len(data) < 4 && !f.active {
		return nil, errs.New(errs.KindStreamStructure, "nalu: packet too short to contain a start code")
	}

	buf := data
	if len(f.carry) > 0 {
		buf = make([]byte, 0, len(f.carry)+len(data))
		buf = append(buf, f.carry...)
		buf = append(buf, data...)
		f.carry = nil
	}

	i := 0
	for i+4 <= len(buf) {
		if buf[i] == 0 && buf[i+1] == 0 && buf[i+2] == 1 {
			classifier := buf[i+3]
			kind := Kind(classifier)
			if IsPictureOrSequenceStart(kind) {
				if f.active {
					f.queue = append(f.queue, f.finalizeLocked())
				}
				f.active = true
				f.kind = kind
				f.pts, f.dts = pts, dts
				f.body = f.body[:0]
				i += 4
				continue
			}
			// Slice, user-data, and extension start codes do not begin a
			// new unit (DAVS2_ISUNIT); absorb the start code itself into
			// the unit already being assembled.
			if f.active {
				f.body = append(f.body, buf[i], buf[i+1], buf[i+2], buf[i+3])
			}
			i += 4
			continue
		}
		if f.active {
			f.body = append(f.body, buf[i])
		}
		i++
	}

	tail := buf[i:]
	keep := 0
	for k := len(tail); k > 0; k-- {
		if isStartCodePrefix(tail[len(tail)-k:]) {
			keep = k
			break
		}
	}
	rest := tail[:len(tail)-keep]
	if keep > 0 {
		f.carry = append([]byte(nil), tail[len(tail)-keep:]...)
	}
	if f.active {
		f.body = append(f.body, rest...)
	} else if f.log != nil && len(rest) > 0 {
		f.log.Debug().Int("bytes", len(rest)).Msg("nalu: dropping bytes before first start code")
	}

	return f.dequeue(), nil
}

// Pending drains a unit queued by a Push call that completed more
// than one unit at once, without requiring new input data. Callers
// should loop on Pending after each Push until it returns nil.
func (f *Framer) Pending() *CodedUnit {
	return f.dequeue()
}

// Flush finalizes and returns any unit still being assembled (used
// when the caller drains buffered bit-stream at end of input). It
// returns nil if nothing is in progress.
func (f *Framer) Flush() *CodedUnit {
	if u := f.dequeue(); u != nil {
		return u
	}
	if !f.active {
		return nil
	}
	if len(f.carry) > 0 {
		f.body = append(f.body, f.carry...)
		f.carry = nil
	}
	return f.finalizeLocked()
}

func (f *Framer) dequeue() *CodedUnit {
	if len(f.queue) == 0 {
		return nil
	}
	u := f.queue[0]
	f.queue = f.queue[1:]
	return u
}

func (f *Framer) finalizeLocked() *CodedUnit {
	payload := make([]byte, len(f.body))
	copy(payload, f.body)
	if !isHeaderKind(f.kind) {
		payload = stripEmulation(payload)
	}
	f.active = false
	return &CodedUnit{Kind: f.kind, Payload: payload, PTS: f.pts, DTS: f.dts}
}

// isStartCodePrefix reports whether tail (0..3 bytes) could be the
// unterminated prefix of a 00 00 01 XX start code.
func isStartCodePrefix(tail []byte) bool {
	switch len(tail) {
	case 0:
		return false
	case 1:
		return tail[0] == 0
	case 2:
		return tail[0] == 0 && tail[1] == 0
	case 3:
		return tail[0] == 0 && tail[1] == 0 && tail[2] == 1
	default:
		return false
	}
}

// bitmask mirrors davs2's BITMASK table: bitmask[n] keeps the top n
// bits of a byte set.
var bitmask = [8]byte{0x00, 0x00, 0xc0, 0x00, 0xf0, 0x00, 0xfc, 0x00}

// stripEmulation removes AVS2 emulation-prevention bytes from src,
// ported bit-for-bit from davs2's bs_dispose_pseudo_code. Inside a
// unit's payload, the only pattern that needs stripping is 00 00 02,
// whose 02 byte contributes only its top 6 bits to the output (its low
// two bits are dropped). A picture's
// payload legitimately contains embedded 00 00 01 slice start codes
// (the framer absorbs those rather than cutting a new unit there), so
// the general start-code re-detection logic stays live throughout the
// whole payload, not just at its start.
func stripEmulation(src []byte) []byte {
	var (
		foundStartCode bool
		leadingZeros   int
		lastBitCount   int
		dispose        = true
		lastByte       byte
	)
	dst := make([]byte, 0, len(src))
	for _, cur := range src {
		bitCount := 8
		switch cur {
		case 0:
			if foundStartCode {
				dispose = true
				foundStartCode = false
			}
			leadingZeros++
		case 1:
			if leadingZeros >= 2 {
				foundStartCode = true
				if lastBitCount != 0 {
					lastBitCount = 0
					dst = append(dst, 0)
				}
			}
			leadingZeros = 0
		case 2:
			if dispose && leadingZeros == 2 {
				bitCount = 6
			}
			leadingZeros = 0
		default:
			if foundStartCode {
				dispose = !isHeaderKind(Kind(cur))
				foundStartCode = false
			}
			leadingZeros = 0
		}

		if bitCount == 8 {
			if lastBitCount == 0 {
				dst = append(dst, cur)
			} else {
				dst = append(dst, (lastByte&bitmask[lastBitCount])|((cur&bitmask[8-lastBitCount])>>uint(lastBitCount)))
				lastByte = (cur << uint(8-lastBitCount)) & bitmask[lastBitCount]
			}
		} else {
			if lastBitCount == 0 {
				lastByte = cur
				lastBitCount = bitCount
			} else {
				dst = append(dst, (lastByte&bitmask[lastBitCount])|((cur&bitmask[8-lastBitCount])>>uint(lastBitCount)))
				lastByte = (cur << uint(8-lastBitCount)) & bitmask[lastBitCount-2]
				lastBitCount -= 2
			}
		}
	}
	if lastBitCount != 0 && lastByte != 0 {
		dst = append(dst, lastByte)
	}
	return dst
}
