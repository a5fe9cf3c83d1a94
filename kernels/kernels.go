// Package kernels declares the boundary between the decoding
// pipeline's control flow (header parsing, reference management,
// scheduling, row synchronization) and the numeric work that actually
// produces pixels: intra/inter prediction, inverse transform, loop
// filtering, and entropy decoding.
//
// None of that numeric work is implemented here. Set is a flat
// dispatch table, the shape deepteams-webp's internal/dsp table uses
// to let a platform-tuned implementation be swapped in without the
// caller caring, except here the indirection also exists so the
// pipeline package can be tested against a MockSet (mock_kernels.go) without a real
// codec kernel.
package kernels

import "github.com/avs2go/davs2/bitreader"

// Block carries the minimal per-transform-unit addressing a kernel
// call needs: which picture plane, and the pixel origin and size of
// the block being processed. Kernels resolve neighbor availability,
// reference pixels, and coefficients from the decoder state they were
// constructed against; Block only tells them where to write.
type Block struct {
	PlaneY  bool // true for luma, false for the chroma plane pair
	X, Y    int
	Width   int
	Height  int
}

// MotionVector is a quarter-pel motion vector plus the reference
// index it is relative to.
type MotionVector struct {
	X, Y   int32
	RefIdx int
}

// Set is the full collection of numeric operations a picture's
// reconstruction pipeline calls into. Every method is expected to be
// safe to call concurrently for blocks that do not share
// dependencies; the pipeline package is responsible for respecting
// the row-by-row availability order the bitstream implies.
type Set interface {
	// DecodeEntropy parses one LCU's coefficients and coding-mode
	// syntax from br into the implementation's own internal residual
	// and mode buffers, returning the quadtree depth actually coded.
	DecodeEntropy(br *bitreader.Reader, lcuX, lcuY int) (depth int, err error)

	// PredictIntra fills blk with an intra prediction from already
	// reconstructed neighbor pixels.
	PredictIntra(blk Block, mode int) error

	// PredictInter fills blk with a motion-compensated prediction
	// built from one or two reference pictures.
	PredictInter(blk Block, mvs []MotionVector) error

	// InverseTransform adds the reconstructed residual for blk to
	// whatever prediction is already written there.
	InverseTransform(blk Block) error

	// DeblockEdge filters one LCU edge. vertical selects the edge
	// orientation the spec's two-pass (vertical-then-horizontal)
	// ordering requires.
	DeblockEdge(lcuX, lcuY int, vertical bool, alphaIndex, betaIndex int) error

	// ApplySAO applies sample-adaptive offset to one LCU, gated by
	// the slice header's per-plane enable flags.
	ApplySAO(lcuX, lcuY int, enableY, enableCb, enableCr bool) error

	// ApplyALF applies the adaptive loop filter to one LCU using
	// filter coefficients already parsed from the picture's ALF
	// parameter bitstream by this same implementation.
	ApplyALF(lcuX, lcuY int) error
}
