package headers

// clip restricts v to [lo, hi].
func clip(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DeblockIndices derives the alpha/beta table indices for the
// deblocking filter: each index is QP minus 8·(bit_depth−8) plus the
// loop-filter offset, clipped to [0, 63]. The shift by bit_depth−8 is
// applied to the values looked up in the alpha/beta tables, which,
// with the pixel filtering math, live behind the numeric-kernel boundary;
// this is purely the index arithmetic that belongs with header
// parsing because it is fixed once QP, bit depth, and the picture's
// loop-filter offsets are known.
func DeblockIndices(qp int, bitDepth int, alphaOffset, betaOffset int32) (alphaIndex, betaIndex int) {
	depthAdjust := 8 * (bitDepth - 8)
	alphaIndex = clip(qp-depthAdjust+int(alphaOffset), 0, 63)
	betaIndex = clip(qp-depthAdjust+int(betaOffset), 0, 63)
	return alphaIndex, betaIndex
}
