package dpb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	return NewPool(nil, 4, 64, 64, 32, 32, 2)
}

func TestAcquireReconstructionSlotAndRelease(t *testing.T) {
	p := newTestPool(t)
	f, err := p.AcquireReconstructionSlot(true)
	require.NoError(t, err)
	require.Equal(t, 2, f.RefCount())

	p.Release(f)
	require.Equal(t, 1, f.RefCount())
	p.Release(f)
	require.Equal(t, 0, f.RefCount())
}

func TestAcquireReconstructionSlotMarksCleanWhenNotReferenced(t *testing.T) {
	p := newTestPool(t)
	f, err := p.AcquireReconstructionSlot(false)
	require.NoError(t, err)
	p.Release(f)
	p.Release(f)
	require.Equal(t, 0, f.RefCount())
}

func TestAcquireReconstructionSlotExhaustion(t *testing.T) {
	p := newTestPool(t)
	for i := 0; i < p.Capacity(); i++ {
		_, err := p.AcquireReconstructionSlot(true)
		require.NoError(t, err)
	}
	_, err := p.AcquireReconstructionSlot(true)
	require.Error(t, err)
}

func TestRemoveByCOIResetsUnreferencedFrame(t *testing.T) {
	p := newTestPool(t)
	f, err := p.AcquireReconstructionSlot(true)
	require.NoError(t, err)
	f.COI = 5
	f.SetReferedByOthers(true)
	p.Release(f)
	p.Release(f)
	require.Equal(t, 0, f.RefCount())

	p.RemoveByCOI([]int{5})
	require.Equal(t, invalidOrder, f.COI)
}

func TestRemoveByCOIMarksCleanWhenStillReferenced(t *testing.T) {
	p := newTestPool(t)
	f, err := p.AcquireReconstructionSlot(true)
	require.NoError(t, err)
	f.COI = 5
	f.SetReferedByOthers(true)

	p.RemoveByCOI([]int{5})
	require.Equal(t, 5, f.COI, "still referenced, frame must not be reset yet")

	p.Release(f)
	p.Release(f)
	require.Equal(t, invalidOrder, f.COI, "last release must recycle a clean-when-unreferenced frame")
}

func TestFindByCOIRequiresReferedByOthers(t *testing.T) {
	p := newTestPool(t)
	f, err := p.AcquireReconstructionSlot(true)
	require.NoError(t, err)
	f.COI = 9

	require.Nil(t, p.FindByCOI(9), "not yet marked referedByOthers")
	f.SetReferedByOthers(true)
	require.Same(t, f, p.FindByCOI(9))
}

func TestReclaimLowestPOC(t *testing.T) {
	p := newTestPool(t)
	a, err := p.AcquireReconstructionSlot(true)
	require.NoError(t, err)
	a.POC = 10
	p.Release(a)
	p.Release(a)

	b, err := p.AcquireReconstructionSlot(true)
	require.NoError(t, err)
	b.POC = 3
	p.Release(b)
	p.Release(b)

	reclaimed := p.ReclaimLowestPOC()
	require.NotNil(t, reclaimed)
	require.Equal(t, invalidOrder, reclaimed.COI)
}

func TestRowProducerConsumer(t *testing.T) {
	f := newFrame(nil, 64, 64, 32, 32, 4)
	done := make(chan struct{})
	go func() {
		f.WaitForRow(2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("consumer woke before row was completed")
	case <-time.After(20 * time.Millisecond):
	}

	f.CompleteRow(2)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer never woke after CompleteRow")
	}
	require.Equal(t, 2, f.DecodedLine())
}

func TestPlaneAtAccountsForPadding(t *testing.T) {
	pl := allocPlane(16, 16, 4)
	require.Equal(t, 24, pl.Stride)
	require.Equal(t, pl.Pad*pl.Stride+pl.Pad, pl.At(0, 0))
}
