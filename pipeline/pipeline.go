// Package pipeline orchestrates one picture's LCU-row-by-row
// reconstruction: entropy decode, prediction, inverse transform, the
// two-pass (vertical-then-horizontal) deblocking filter, SAO/ALF, and
// border padding, driven row by row so later pictures' motion
// compensation can start reading completed rows before this picture
// finishes (spec §4.6-§4.9).
//
// None of the pixel math lives here; every per-block operation is a
// call through a kernels.Set. This package only owns sequencing: LCU
// traversal order, when a row is "done" for producer/consumer
// purposes, and when padding runs.
package pipeline

import (
	"github.com/avs2go/davs2/bitreader"
	"github.com/avs2go/davs2/dpb"
	"github.com/avs2go/davs2/errs"
	"github.com/avs2go/davs2/headers"
	"github.com/avs2go/davs2/kernels"
	"github.com/avs2go/davs2/nalu"
	"github.com/avs2go/davs2/padding"
	"github.com/avs2go/davs2/refpic"
	"github.com/rs/zerolog"
)

// State is a picture's reconstruction progress, tracked mostly for
// diagnostics and for the scheduler to know when a TaskSlot may be
// released.
type State int

const (
	StateParsing State = iota
	StatePendingReferences
	StateReconstructing
	StatePostFilter
	StateDone
)

// Picture drives one coded picture's reconstruction into Frame.
type Picture struct {
	Seq    *headers.SequenceParameters
	Header *headers.PictureHeader
	Slices []*headers.SliceHeader // accumulated as Decode parses each row's header
	Refs   []refpic.ResolvedRef

	Frame   *dpb.Frame
	Kernels kernels.Set

	log *zerolog.Logger

	State State

	lcuCols int
	lcuRows int
}

// New builds a Picture ready to reconstruct frame using k, once
// references (if any) have already been resolved. Slice headers are
// not supplied up front: each one is prefixed by its own start code
// inside the picture's entropy-coded payload and can only be located
// once the previous slice's entropy data has actually been consumed,
// so Decode parses them itself, one per LCU row, as it goes.
func New(log *zerolog.Logger, seq *headers.SequenceParameters, ph *headers.PictureHeader, refs []refpic.ResolvedRef, frame *dpb.Frame, k kernels.Set) *Picture {
	cols := (seq.Width + seq.LCUSize - 1) / seq.LCUSize
	rows := (seq.Height + seq.LCUSize - 1) / seq.LCUSize
	return &Picture{
		Seq: seq, Header: ph, Refs: refs,
		Frame: frame, Kernels: k, log: log,
		State: StatePendingReferences, lcuCols: cols, lcuRows: rows,
	}
}

// Decode reconstructs the whole picture. br is positioned just past
// the picture header; Decode scans forward for each LCU row's own
// slice start code and header before decoding that row's LCUs.
func (p *Picture) Decode(br *bitreader.Reader) error {
	p.State = StateReconstructing
	for y := 0; y < p.lcuRows; y++ {
		sh, err := p.nextSliceHeader(br)
		if err != nil {
			return err
		}
		p.Slices = append(p.Slices, sh)
		if err := p.decodeRow(br, y, sh); err != nil {
			return err
		}
	}
	p.State = StateDone
	p.Frame.CompleteAEC()
	return nil
}

// nextSliceHeader scans br for the start code introducing the next
// slice (this decoder supports exactly one slice per LCU row, so this
// is called once per row) and parses the header that follows it.
func (p *Picture) nextSliceHeader(br *bitreader.Reader) (*headers.SliceHeader, error) {
	classifier, ok := br.SkipToStartCode()
	if !ok {
		return nil, errs.New(errs.KindStreamStructure, "pipeline: missing slice start code before LCU row")
	}
	if !nalu.Kind(classifier).IsSlice() {
		return nil, errs.Newf(errs.KindStreamStructure, "pipeline: expected slice start code, got classifier %#x", classifier)
	}
	return headers.ParseSliceHeader(br, p.Seq, p.Header)
}

func (p *Picture) decodeRow(br *bitreader.Reader, y int, sh *headers.SliceHeader) error {
	for x := 0; x < p.lcuCols; x++ {
		if err := p.decodeLCU(br, x, y, sh); err != nil {
			return err
		}
	}
	p.deblockRow(y, sh)
	p.filterRow(y, sh)

	isFirst := y == 0
	isLast := y == p.lcuRows-1
	y0 := y * p.Seq.LCUSize
	y1 := y0 + p.Seq.LCUSize
	if y1 > p.Seq.Height {
		y1 = p.Seq.Height
	}
	padding.ApplyRowRange(&p.Frame.Y, y0, y1, isFirst, isLast)
	cy0, cy1 := y0/2, y1/2
	padding.ApplyRowRange(&p.Frame.U, cy0, cy1, isFirst, isLast)
	padding.ApplyRowRange(&p.Frame.V, cy0, cy1, isFirst, isLast)

	p.Frame.CompleteRow(y)
	return nil
}

func (p *Picture) decodeLCU(br *bitreader.Reader, x, y int, sh *headers.SliceHeader) error {
	_, err := p.Kernels.DecodeEntropy(br, x, y)
	if err != nil {
		return err
	}

	blk := kernels.Block{PlaneY: true, X: x * p.Seq.LCUSize, Y: y * p.Seq.LCUSize, Width: p.Seq.LCUSize, Height: p.Seq.LCUSize}
	if err := p.predict(blk); err != nil {
		return err
	}
	return p.Kernels.InverseTransform(blk)
}

func (p *Picture) predict(blk kernels.Block) error {
	if p.Header.Type == headers.PictureI || p.Header.Type == headers.PictureG || p.Header.Type == headers.PictureGB {
		return p.Kernels.PredictIntra(blk, 0)
	}
	mvs := make([]kernels.MotionVector, 0, len(p.Refs))
	for i := range p.Refs {
		mvs = append(mvs, kernels.MotionVector{RefIdx: i})
	}
	return p.Kernels.PredictInter(blk, mvs)
}

// deblockRow applies the vertical-edge pass across the whole row
// before the horizontal-edge pass, per spec's ordering requirement:
// a horizontal edge at the top of an LCU depends on that LCU's
// left/right vertical edges already being filtered.
func (p *Picture) deblockRow(y int, sh *headers.SliceHeader) {
	if p.Header.LoopFilter.Disabled {
		return
	}
	qp := int(p.Header.QP)
	if sh != nil && !sh.FixedQP {
		qp = int(sh.QP)
	}
	alphaIdx, betaIdx := headers.DeblockIndices(qp, p.Seq.BitDepth, p.Header.LoopFilter.AlphaOffset, p.Header.LoopFilter.BetaOffset)
	for x := 0; x < p.lcuCols; x++ {
		_ = p.Kernels.DeblockEdge(x, y, true, alphaIdx, betaIdx)
	}
	for x := 0; x < p.lcuCols; x++ {
		_ = p.Kernels.DeblockEdge(x, y, false, alphaIdx, betaIdx)
	}
}

func (p *Picture) filterRow(y int, sh *headers.SliceHeader) {
	if p.Seq.EnableSAO && sh != nil {
		for x := 0; x < p.lcuCols; x++ {
			_ = p.Kernels.ApplySAO(x, y, sh.SAOEnabledY, sh.SAOEnabledCb, sh.SAOEnabledCr)
		}
	}
	if p.Seq.EnableALF {
		for x := 0; x < p.lcuCols; x++ {
			_ = p.Kernels.ApplyALF(x, y)
		}
	}
}
