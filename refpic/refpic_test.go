package refpic

import (
	"testing"

	"github.com/avs2go/davs2/dpb"
	"github.com/avs2go/davs2/headers"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *dpb.Pool) {
	t.Helper()
	pool := dpb.NewPool(nil, 4, 64, 64, 32, 32, 2)
	return NewManager(pool), pool
}

func TestDistanceAndScale(t *testing.T) {
	dist, scale, err := DistanceAndScale(10, 8)
	require.NoError(t, err)
	require.Equal(t, 4, dist)
	require.Equal(t, Multi/4, scale)
}

func TestDistanceAndScaleClipsToMax(t *testing.T) {
	dist, _, err := DistanceAndScale(1000, 0)
	require.NoError(t, err)
	require.Equal(t, MaxPOCDistance, dist)
}

func TestDistanceAndScaleRejectsNonPositive(t *testing.T) {
	_, _, err := DistanceAndScale(5, 5)
	require.Error(t, err)
	_, _, err = DistanceAndScale(5, 8)
	require.Error(t, err)
}

func TestApplyResolvesReferences(t *testing.T) {
	m, pool := newTestManager(t)

	f, err := pool.AcquireReconstructionSlot(true)
	require.NoError(t, err)
	f.COI = 10
	f.POC = 10
	f.SetReferedByOthers(true)

	rps := headers.ReferencePictureSet{RefDeltaCOI: []int{2}}
	refs, err := m.Apply(12, 14, rps)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Same(t, f, refs[0].Frame)
	require.Equal(t, 8, refs[0].Dist)
}

func TestApplyFailsOnMissingReference(t *testing.T) {
	m, _ := newTestManager(t)
	rps := headers.ReferencePictureSet{RefDeltaCOI: []int{2}}
	_, err := m.Apply(12, 14, rps)
	require.Error(t, err)
}

func TestApplyRemovesByDeltaCOI(t *testing.T) {
	m, pool := newTestManager(t)
	f, err := pool.AcquireReconstructionSlot(true)
	require.NoError(t, err)
	f.COI = 5
	f.SetReferedByOthers(true)
	pool.Release(f)
	pool.Release(f)

	rps := headers.ReferencePictureSet{RemoveDeltaCOI: []int{5}}
	_, err = m.Apply(10, 20, rps)
	require.NoError(t, err)
	require.Nil(t, pool.FindByCOI(5))
}

func frameWithPOC(poc int) ResolvedRef {
	f := &dpb.Frame{}
	f.POC = poc
	return ResolvedRef{Frame: f}
}

func TestEnforceBOrderingOrdersByPOC(t *testing.T) {
	fwd := frameWithPOC(8)  // past, lower POC
	bwd := frameWithPOC(16) // future, higher POC

	ordered, err := EnforceBOrdering([]ResolvedRef{bwd, fwd}, 12)
	require.NoError(t, err)
	require.Equal(t, 8, ordered[BFwd].Frame.POC)
	require.Equal(t, 16, ordered[BBwd].Frame.POC)
}

func TestEnforceBOrderingRejectsNonStraddling(t *testing.T) {
	a := frameWithPOC(4)
	b := frameWithPOC(6)
	_, err := EnforceBOrdering([]ResolvedRef{a, b}, 12)
	require.Error(t, err)
}

func TestEnforceBOrderingRejectsWrongCount(t *testing.T) {
	_, err := EnforceBOrdering([]ResolvedRef{frameWithPOC(1)}, 12)
	require.Error(t, err)
}
