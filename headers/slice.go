package headers

import "github.com/avs2go/davs2/bitreader"

// SliceHeader is the decoded slice header (spec §3.1, davs2's
// parse_slice_header). Slice data itself (CU quadtree, residuals) is
// not header-parser territory; it is handed to the numeric-kernel
// boundary once the header fields below are known.
type SliceHeader struct {
	LCURowStart int // slice_vertical_position, in LCU rows
	LCUColStart int // slice_horizontal_position, in LCU columns

	FixedQP bool // per-slice override of the picture's fixed_picture_qp
	QP      uint8
	DQPUsed bool // true when per-LCU delta QP may appear in slice data

	SAOEnabledY  bool
	SAOEnabledCb bool
	SAOEnabledCr bool
}

// ParseSliceHeader decodes a slice header given the owning picture's
// header and sequence parameters, which gate several conditional
// fields (extended position bits for large pictures, SAO flags, and
// whether a per-slice QP override is even legal).
func ParseSliceHeader(br *bitreader.Reader, sp *SequenceParameters, ph *PictureHeader) (*SliceHeader, error) {
	sh := &SliceHeader{}

	v, err := br.ReadU(8)
	if err != nil {
		return nil, err
	}
	row := int(v)
	if sp.Height > 144*sp.LCUSize {
		ext, err := br.ReadU(3)
		if err != nil {
			return nil, err
		}
		row |= int(ext) << 8
	}
	sh.LCURowStart = row

	v, err = br.ReadU(8)
	if err != nil {
		return nil, err
	}
	col := int(v)
	if sp.Width > 255*sp.LCUSize {
		ext, err := br.ReadU(2)
		if err != nil {
			return nil, err
		}
		col |= int(ext) << 8
	}
	sh.LCUColStart = col

	if !ph.FixedQP {
		fixed, err := br.ReadFlag()
		if err != nil {
			return nil, err
		}
		sh.FixedQP = fixed
		qp, err := br.ReadU(7)
		if err != nil {
			return nil, err
		}
		sh.QP = uint8(qp)
		sh.DQPUsed = !fixed
	} else {
		sh.FixedQP = true
		sh.QP = ph.QP
		sh.DQPUsed = false
	}

	if sp.EnableSAO {
		b, err := br.ReadFlag()
		if err != nil {
			return nil, err
		}
		sh.SAOEnabledY = b
		if b, err = br.ReadFlag(); err != nil {
			return nil, err
		}
		sh.SAOEnabledCb = b
		if b, err = br.ReadFlag(); err != nil {
			return nil, err
		}
		sh.SAOEnabledCr = b
	}

	return sh, nil
}
