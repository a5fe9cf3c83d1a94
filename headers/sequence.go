// Package headers parses the AVS2 sequence, picture, and slice headers
// (spec §4.3) from an already start-code-stripped nalu.CodedUnit
// payload (EPB-stripped for picture units; sequence header payloads
// keep their emulation-prevention bytes), and derives the quantities that fall out of
// those fields: frame rate, bit depth, and deblocking index offsets.
//
// Field order and widths are ported from davs2's
// source/common/header.cc so a conforming bitstream parses
// bit-for-bit the same way; validation rules are spec-sized rather
// than paranoid, matching the original's "log and clamp/reject"
// posture rather than davs2's mix of asserts and returns.
package headers

import (
	"github.com/avs2go/davs2/bitreader"
	"github.com/avs2go/davs2/errs"
)

// ChromaFormat mirrors davs2's CHROMA_400/CHROMA_420 enum.
type ChromaFormat uint8

const (
	Chroma400 ChromaFormat = 0
	Chroma420 ChromaFormat = 1
)

const (
	mainProfile   = 0x20
	main10Profile = 0x22

	maxRPSCount  = 32 // AVS2_GOP_NUM
	maxRefCount  = 4  // AVS2_MAX_REFS
	maxRemoveCnt = 8
)

// frameRateTable mirrors davs2's FRAME_RATE lookup indexed by
// frame_rate_code (1-based; index 0 is unused).
var frameRateTable = [9]float64{
	0,
	24000.0 / 1001.0,
	24.0,
	25.0,
	30000.0 / 1001.0,
	30.0,
	50.0,
	60000.0 / 1001.0,
	60.0,
}

// FrameRate returns the display frame rate for a frame_rate_code in
// [1,8], or 0 if code is out of range.
func FrameRate(code uint32) float64 {
	if code < 1 || int(code) >= len(frameRateTable) {
		return 0
	}
	return frameRateTable[code]
}

// ReferencePictureSet is one sequence- or picture-level RPS entry
// (spec §3.1's RPS, davs2's rps_t).
type ReferencePictureSet struct {
	ReferedByOthers bool
	RefDeltaCOI     []int // delta-COI of pictures to keep as references
	RemoveDeltaCOI  []int // delta-COI of pictures to drop from the DPB
}

// SequenceParameters is the decoded sequence header (spec §3.1's
// SequenceParameters).
type SequenceParameters struct {
	ProfileID uint8
	LevelID   uint8

	Progressive      bool
	FieldCodedStream bool // rejected by the decoder when the sequence header is handled

	Width  int
	Height int

	ChromaFormat ChromaFormat

	SamplePrecision   uint8
	EncodingPrecision uint8
	BitDepth          int // derived: 6 + 2*EncodingPrecision

	AspectRatio   uint8
	FrameRateCode uint32

	BitRateLower uint32
	BitRateUpper uint32

	LowDelay         bool
	TemporalIDExist  bool
	BBVBufferSize    uint32
	Log2LCUSize      uint8
	LCUSize          int
	EnableWeightedQuant bool
	WeightQuantMatrices [][]int32 // opaque coefficient rows, carried not interpreted

	EnableBackgroundPicture bool
	EnableMHPSkip           bool
	EnableDHP               bool
	EnableWSM               bool
	EnableAMP               bool
	EnableNSQT              bool
	EnableSDIP              bool
	Enable2ndTransform      bool
	EnableSAO               bool
	EnableALF               bool
	EnablePMVR              bool

	RPS []ReferencePictureSet

	PictureReorderDelay int // only present if !LowDelay

	CrossSliceLoopFilter bool
}

// ParseSequenceHeader decodes a sequence header payload per spec
// §4.3 / davs2's parse_sequence_header.
func ParseSequenceHeader(br *bitreader.Reader) (*SequenceParameters, error) {
	sp := &SequenceParameters{}

	v, err := readU(br, 8)
	if err != nil {
		return nil, err
	}
	sp.ProfileID = uint8(v)

	v, err = readU(br, 8)
	if err != nil {
		return nil, err
	}
	sp.LevelID = uint8(v)

	b, err := br.ReadFlag()
	if err != nil {
		return nil, err
	}
	sp.Progressive = b

	if b, err = br.ReadFlag(); err != nil {
		return nil, err
	}
	sp.FieldCodedStream = b

	v, err = readU(br, 14)
	if err != nil {
		return nil, err
	}
	sp.Width = int(v)
	if sp.Width < 16 {
		return nil, errs.Newf(errs.KindStreamStructure, "headers: width %d below minimum 16", sp.Width)
	}

	v, err = readU(br, 14)
	if err != nil {
		return nil, err
	}
	sp.Height = int(v)
	if sp.Height < 16 {
		return nil, errs.Newf(errs.KindStreamStructure, "headers: height %d below minimum 16", sp.Height)
	}

	v, err = readU(br, 2)
	if err != nil {
		return nil, err
	}
	sp.ChromaFormat = ChromaFormat(v)
	if sp.ChromaFormat != Chroma420 && sp.ChromaFormat != Chroma400 {
		return nil, errs.Newf(errs.KindStreamStructure, "headers: unsupported chroma_format %d", v)
	}

	v, err = readU(br, 3)
	if err != nil {
		return nil, err
	}
	sp.SamplePrecision = uint8(v)
	if sp.SamplePrecision < 1 || sp.SamplePrecision > 3 {
		return nil, errs.Newf(errs.KindStreamStructure, "headers: sample_precision %d out of range", sp.SamplePrecision)
	}

	if sp.ProfileID == main10Profile {
		v, err = readU(br, 3)
		if err != nil {
			return nil, err
		}
		sp.EncodingPrecision = uint8(v)
	} else {
		sp.EncodingPrecision = 1
	}
	if sp.EncodingPrecision < 1 || sp.EncodingPrecision > 3 {
		return nil, errs.Newf(errs.KindStreamStructure, "headers: encoding_precision %d out of range", sp.EncodingPrecision)
	}
	sp.BitDepth = 6 + 2*int(sp.EncodingPrecision)

	v, err = readU(br, 4)
	if err != nil {
		return nil, err
	}
	sp.AspectRatio = uint8(v)

	v, err = readU(br, 4)
	if err != nil {
		return nil, err
	}
	sp.FrameRateCode = v

	v, err = readU(br, 18)
	if err != nil {
		return nil, err
	}
	sp.BitRateLower = v
	if _, err = br.ReadFlag(); err != nil { // marker_bit
		return nil, err
	}
	v, err = readU(br, 12)
	if err != nil {
		return nil, err
	}
	sp.BitRateUpper = v

	if b, err = br.ReadFlag(); err != nil {
		return nil, err
	}
	sp.LowDelay = b
	if _, err = br.ReadFlag(); err != nil { // marker_bit
		return nil, err
	}

	if b, err = br.ReadFlag(); err != nil {
		return nil, err
	}
	sp.TemporalIDExist = b

	v, err = readU(br, 18)
	if err != nil {
		return nil, err
	}
	sp.BBVBufferSize = v

	v, err = readU(br, 3)
	if err != nil {
		return nil, err
	}
	sp.Log2LCUSize = uint8(v)
	if sp.Log2LCUSize < 4 || sp.Log2LCUSize > 6 {
		return nil, errs.Newf(errs.KindStreamStructure, "headers: log2_lcu_size %d out of range", sp.Log2LCUSize)
	}
	sp.LCUSize = 1 << sp.Log2LCUSize

	if b, err = br.ReadFlag(); err != nil {
		return nil, err
	}
	sp.EnableWeightedQuant = b
	if sp.EnableWeightedQuant {
		mats, err := readWeightQuantMatrices(br)
		if err != nil {
			return nil, err
		}
		sp.WeightQuantMatrices = mats
	}

	if b, err = br.ReadFlag(); err != nil {
		return nil, err
	}
	sp.EnableBackgroundPicture = !b // field is background_picture_disable

	for _, dst := range []*bool{
		&sp.EnableMHPSkip, &sp.EnableDHP, &sp.EnableWSM, &sp.EnableAMP,
		&sp.EnableNSQT, &sp.EnableSDIP, &sp.Enable2ndTransform,
		&sp.EnableSAO, &sp.EnableALF, &sp.EnablePMVR,
	} {
		if b, err = br.ReadFlag(); err != nil {
			return nil, err
		}
		*dst = b
	}

	if _, err = br.ReadFlag(); err != nil { // marker_bit
		return nil, err
	}

	v, err = br.ReadU(6)
	if err != nil {
		return nil, err
	}
	numRPS := int(v)
	if numRPS > maxRPSCount {
		return nil, errs.Newf(errs.KindStreamStructure, "headers: num_of_rps %d exceeds %d", numRPS, maxRPSCount)
	}
	sp.RPS = make([]ReferencePictureSet, numRPS)
	for i := range sp.RPS {
		rps, err := parseRPS(br)
		if err != nil {
			return nil, err
		}
		sp.RPS[i] = rps
	}

	if !sp.LowDelay {
		v, err = readU(br, 5)
		if err != nil {
			return nil, err
		}
		sp.PictureReorderDelay = int(v)
	}

	if b, err = br.ReadFlag(); err != nil {
		return nil, err
	}
	sp.CrossSliceLoopFilter = b

	if _, err = readU(br, 2); err != nil { // reserved_bits
		return nil, err
	}
	br.AlignByte()

	return sp, nil
}

func parseRPS(br *bitreader.Reader) (ReferencePictureSet, error) {
	var rps ReferencePictureSet

	b, err := br.ReadFlag()
	if err != nil {
		return rps, err
	}
	rps.ReferedByOthers = b

	v, err := br.ReadU(3)
	if err != nil {
		return rps, err
	}
	numRef := int(v)
	if numRef > maxRefCount {
		return rps, errs.Newf(errs.KindStreamStructure, "headers: num_of_ref %d exceeds %d", numRef, maxRefCount)
	}
	rps.RefDeltaCOI = make([]int, numRef)
	for i := range rps.RefDeltaCOI {
		d, err := br.ReadU(6)
		if err != nil {
			return rps, err
		}
		rps.RefDeltaCOI[i] = int(d)
	}

	v, err = br.ReadU(3)
	if err != nil {
		return rps, err
	}
	numRemove := int(v)
	if numRemove > maxRemoveCnt {
		return rps, errs.Newf(errs.KindStreamStructure, "headers: num_to_remove %d exceeds %d", numRemove, maxRemoveCnt)
	}
	rps.RemoveDeltaCOI = make([]int, numRemove)
	for i := range rps.RemoveDeltaCOI {
		d, err := br.ReadU(6)
		if err != nil {
			return rps, err
		}
		rps.RemoveDeltaCOI[i] = int(d)
	}

	if _, err = br.ReadFlag(); err != nil { // marker_bit
		return rps, err
	}
	return rps, nil
}

// readWeightQuantMatrices consumes the sequence-level weighting-quant
// coefficient block. The matrices are carried opaquely: interpreting
// their coefficients is numeric-kernel territory (spec's external
// collaborator boundary), not header-parsing.
func readWeightQuantMatrices(br *bitreader.Reader) ([][]int32, error) {
	sizeFlag, err := br.ReadFlag() // load_chroma_quant_data_flag-equivalent selector
	if err != nil {
		return nil, err
	}
	rows := 4
	if sizeFlag {
		rows = 8
	}
	mats := make([][]int32, rows)
	for i := range mats {
		row := make([]int32, rows)
		for j := range row {
			c, err := br.ReadSE()
			if err != nil {
				return nil, err
			}
			row[j] = c
		}
		mats[i] = row
	}
	return mats, nil
}

func readU(br *bitreader.Reader, n int) (uint32, error) {
	return br.ReadU(n)
}
