// Package refpic implements the reference-picture-set processing that
// runs once a picture header's RPS is known: removing pictures the
// RPS says are no longer needed, resolving the pictures it asks to
// keep as references, enforcing the B-picture forward/backward
// ordering invariant, and computing the per-reference distance and
// scale factors motion-vector prediction needs (spec §3.2, §4.4).
package refpic

import (
	"github.com/avs2go/davs2/dpb"
	"github.com/avs2go/davs2/errs"
	"github.com/avs2go/davs2/headers"
)

// B-picture reference indices. The reference decoder's array layout
// is fref[0] = backward, fref[1] = forward, the opposite of what the
// B_FWD/B_BWD names suggest; this package keeps that same index
// assignment so any ported motion-vector scaling math lines up
// without an extra transposition. See DESIGN.md.
const (
	BBwd = 0
	BFwd = 1
)

// MaxPOCDistance is AVS2's clip bound for a reference's POC distance.
const MaxPOCDistance = 128

// Multi is the fixed-point scale used for distance-based MV scaling.
const Multi = 16384

// ResolvedRef is one reference successfully looked up in the DPB,
// with its motion-scaling factors precomputed.
type ResolvedRef struct {
	Frame      *dpb.Frame
	DeltaCOI   int
	Dist       int
	DistScale  int
}

// Manager resolves a picture's RPS against a DPB pool.
type Manager struct {
	pool *dpb.Pool
}

// NewManager returns a Manager operating against pool.
func NewManager(pool *dpb.Pool) *Manager {
	return &Manager{pool: pool}
}

// Apply runs the full RPS sequence for a picture at currentCOI/fdecPOC
// with currentCOI already unwrapped by headers.COITracker: remove,
// resolve references, and compute distance/scale for each. It does
// not enforce B-picture ordering; call EnforceBOrdering separately
// once the picture's type is known to be B.
func (m *Manager) Apply(currentCOI, fdecPOC int, rps headers.ReferencePictureSet) ([]ResolvedRef, error) {
	removeCOIs := make([]int, len(rps.RemoveDeltaCOI))
	for i, d := range rps.RemoveDeltaCOI {
		removeCOIs[i] = currentCOI - d
	}
	m.pool.RemoveByCOI(removeCOIs)

	refs := make([]ResolvedRef, 0, len(rps.RefDeltaCOI))
	for _, delta := range rps.RefDeltaCOI {
		target := currentCOI - delta
		f := m.pool.FindByCOI(target)
		if f == nil {
			return nil, errs.Newf(errs.KindStreamStructure, "refpic: no referenced picture with coi=%d (delta=%d)", target, delta)
		}
		dist, scale, err := DistanceAndScale(fdecPOC, f.POC)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ResolvedRef{Frame: f, DeltaCOI: delta, Dist: dist, DistScale: scale})
	}
	return refs, nil
}

// DistanceAndScale computes a single reference's MV-scaling distance
// and scale factor per spec §3.2: dist = clip(2*(fdecPOC-frefPOC),
// [1, MaxPOCDistance]), scale = Multi/dist. Both must come out
// strictly positive; a non-positive raw distance is a stream error
// rather than something to silently clip away, since it means the
// reference is not actually in the past relative to fdec.
func DistanceAndScale(fdecPOC, frefPOC int) (dist, scale int, err error) {
	raw := 2 * (fdecPOC - frefPOC)
	if raw <= 0 {
		return 0, 0, errs.Newf(errs.KindStreamStructure, "refpic: non-positive reference distance (fdec=%d fref=%d)", fdecPOC, frefPOC)
	}
	dist = raw
	if dist > MaxPOCDistance {
		dist = MaxPOCDistance
	}
	scale = Multi / dist
	return dist, scale, nil
}

// EnforceBOrdering validates that refs holds exactly two references
// for a B picture and returns them ordered by the BBwd/BFwd index
// convention: refs[BFwd].Frame.POC < fdecPOC < refs[BBwd].Frame.POC
// (the lower-POC, past reference is "forward"; the higher-POC,
// future reference is "backward").
func EnforceBOrdering(refs []ResolvedRef, fdecPOC int) (ordered [2]ResolvedRef, err error) {
	if len(refs) != 2 {
		return ordered, errs.Newf(errs.KindStreamStructure, "refpic: B picture requires exactly 2 references, got %d", len(refs))
	}
	a, b := refs[0], refs[1]
	switch {
	case a.Frame.POC < fdecPOC && fdecPOC < b.Frame.POC:
		ordered[BFwd], ordered[BBwd] = a, b
	case b.Frame.POC < fdecPOC && fdecPOC < a.Frame.POC:
		ordered[BFwd], ordered[BBwd] = b, a
	default:
		return ordered, errs.Newf(errs.KindStreamStructure,
			"refpic: B picture references do not straddle POC %d (got %d, %d)", fdecPOC, a.Frame.POC, b.Frame.POC)
	}
	return ordered, nil
}
