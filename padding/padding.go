// Package padding implements the border-replication math applied to
// a reference-capable Frame's planes after each LCU row's
// deblock/SAO/ALF post-filtering completes (spec §4.9).
//
// This is pure pixel arithmetic with no control flow of its own: the
// pipeline package decides when a row is ready and calls these
// functions once per plane per row.
package padding

import "github.com/avs2go/davs2/dpb"

// Row extends the left and right borders of one plane row range
// [y0, y1) by replicating the first and last real-sample pixel
// Pad times on each side.
func Row(pl *dpb.Plane, y0, y1 int) {
	for y := y0; y < y1; y++ {
		base := pl.At(0, y)
		left := pl.Data[base]
		right := pl.Data[base+pl.Width-1]
		for k := 1; k <= pl.Pad; k++ {
			pl.Data[base-k] = left
			pl.Data[base+pl.Width-1+k] = right
		}
	}
}

// Top replicates the (already horizontally padded) first real row
// upward into the top border, Pad times.
func Top(pl *dpb.Plane) {
	srcStart := pl.At(-pl.Pad, 0)
	rowLen := pl.Stride
	for k := 1; k <= pl.Pad; k++ {
		dstStart := pl.At(-pl.Pad, -k)
		copy(pl.Data[dstStart:dstStart+rowLen], pl.Data[srcStart:srcStart+rowLen])
	}
}

// Bottom replicates the (already horizontally padded) last real row
// downward into the bottom border, Pad times.
func Bottom(pl *dpb.Plane) {
	lastRow := pl.Height - 1
	srcStart := pl.At(-pl.Pad, lastRow)
	rowLen := pl.Stride
	for k := 1; k <= pl.Pad; k++ {
		dstStart := pl.At(-pl.Pad, lastRow+k)
		copy(pl.Data[dstStart:dstStart+rowLen], pl.Data[srcStart:srcStart+rowLen])
	}
}

// ApplyRowRange pads one reconstructed row range on a single plane,
// including the vertical borders when that range covers the frame's
// first or last row.
func ApplyRowRange(pl *dpb.Plane, y0, y1 int, isFirstRange, isLastRange bool) {
	Row(pl, y0, y1)
	if isFirstRange {
		Top(pl)
	}
	if isLastRange {
		Bottom(pl)
	}
}
