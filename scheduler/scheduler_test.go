package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewComputesPoolSizes(t *testing.T) {
	s, err := New(8, nil)
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, (8+1)/2+1, s.NumParseSlots())
}

func TestNewRejectsZeroThreads(t *testing.T) {
	_, err := New(0, nil)
	require.Error(t, err)
}

func TestAcquireAndReleaseSlot(t *testing.T) {
	s, err := New(4, nil)
	require.NoError(t, err)
	defer s.Close()

	slot, err := s.AcquireSlot()
	require.NoError(t, err)
	require.NotNil(t, slot)
	s.ReleaseSlot(slot)
}

func TestAcquireSlotBlocksUntilRelease(t *testing.T) {
	s, err := New(1, nil)
	require.NoError(t, err)
	defer s.Close()

	first, err := s.AcquireSlot()
	require.NoError(t, err)

	got := make(chan *TaskSlot)
	go func() {
		slot, err := s.AcquireSlot()
		require.NoError(t, err)
		got <- slot
	}()

	select {
	case <-got:
		t.Fatal("second acquire must block while the only slot is busy")
	case <-time.After(20 * time.Millisecond):
	}

	s.ReleaseSlot(first)
	select {
	case slot := <-got:
		require.NotNil(t, slot)
	case <-time.After(time.Second):
		t.Fatal("second acquire never woke after release")
	}
}

func TestParseUnderAECSerializes(t *testing.T) {
	s, err := New(4, nil)
	require.NoError(t, err)
	defer s.Close()

	var active int32
	var maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.ParseUnderAEC(func() error {
				n := atomic.AddInt32(&active, 1)
				if n > atomic.LoadInt32(&maxActive) {
					atomic.StoreInt32(&maxActive, n)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestSubmitReconstructionRunsJob(t *testing.T) {
	s, err := New(4, nil)
	require.NoError(t, err)
	defer s.Close()

	done := make(chan struct{})
	err = s.SubmitReconstruction(func() { close(done) })
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconstruction job never ran")
	}
}

func TestCloseUnblocksWaitersAndRejectsNewWork(t *testing.T) {
	s, err := New(1, nil)
	require.NoError(t, err)

	slot, err := s.AcquireSlot()
	require.NoError(t, err)
	_ = slot

	errc := make(chan error, 1)
	go func() {
		_, err := s.AcquireSlot()
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)

	s.Close()

	select {
	case err := <-errc:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("AcquireSlot never unblocked after Close")
	}

	require.Error(t, s.SubmitReconstruction(func() {}))
}
