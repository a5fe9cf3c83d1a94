// Package dpb implements the decoded picture buffer: a fixed-capacity
// pool of reference-counted Frames, the reconstruction pipeline's
// producer/consumer row synchronization, and the pixel storage those
// two things share.
//
// The pool and its per-frame locking follow the shape of the
// teacher's media/slice.Queue: a sync.Mutex paired with one
// or more sync.Cond built on that mutex's locker, rather than
// channels, because row-completion is level-triggered state
// ("decoded through row N") and multiple waiters need to re-check it
// independently.
package dpb

import (
	"sync"

	"github.com/avs2go/davs2/errs"
	"github.com/avs2go/davs2/headers"
	"github.com/rs/zerolog"
)

// AVS2Pad is the border width, in luma samples, replicated on every
// side of a reference-capable Frame's planes. Chroma uses half this.
const AVS2Pad = 80

// Disposable is a Frame's release policy once its reference count
// reaches zero.
type Disposable int

const (
	// Keep leaves the frame as-is when refcount reaches zero; it stays
	// in place until RemoveByCOI or ReclaimLowestPOC resets it.
	Keep Disposable = iota
	// CleanWhenUnreferenced marks the frame for return to the free
	// pool once refcount drops to zero, without destroying its pixel
	// storage.
	CleanWhenUnreferenced
	// DestroyWhenUnreferenced is handled by Pool.Release exactly like
	// CleanWhenUnreferenced: the frame is reset once refcount drops to
	// zero and its pixel storage is not freed.
	DestroyWhenUnreferenced
)

const invalidOrder = -1

// Plane is one decoded color-component buffer with replicated
// borders on every side.
type Plane struct {
	Data   []byte
	Stride int
	Width  int
	Height int
	Pad    int
}

// At returns the byte offset of pixel (x, y) within Data, where (0,0)
// is the first real (non-border) sample.
func (p *Plane) At(x, y int) int {
	return (y+p.Pad)*p.Stride + (x + p.Pad)
}

// Frame is one slot in the DPB: pixel planes, motion data, and the
// reference-lifetime bookkeeping spec's Frame entity describes.
type Frame struct {
	mu   sync.Mutex
	cond []*sync.Cond // one per LCU row, index 0..lcuRows-1
	aec  *sync.Cond   // broadcast once the whole frame's entropy decode is done

	log *zerolog.Logger

	Y, U, V Plane

	// MVGrid and RefIdxGrid are indexed by 4x4 block position
	// (row*cols + col); they are allocated for every pool frame.
	MVGrid     []MotionVector
	RefIdxGrid []int8

	refcount   int
	disposable Disposable
	referedByOthers bool

	decodedLine int // highest fully reconstructed LCU row, -1 if none

	COI  int
	POC  int
	PTS  int64
	DTS  int64
	Type headers.PictureType
	QP   uint8
}

// MotionVector is the per-4x4-block stored motion vector, kept
// separate from kernels.MotionVector (the kernel-facing type) so the
// DPB's storage layout does not leak into the kernel interface.
type MotionVector struct {
	X, Y int32
}

func newFrame(log *zerolog.Logger, width, height, chromaWidth, chromaHeight, lcuRows int) *Frame {
	f := &Frame{log: log, COI: invalidOrder, POC: invalidOrder, decodedLine: -1}
	f.cond = make([]*sync.Cond, lcuRows)
	for i := range f.cond {
		f.cond[i] = sync.NewCond(&f.mu)
	}
	f.aec = sync.NewCond(&f.mu)
	f.Y = allocPlane(width, height, AVS2Pad)
	f.U = allocPlane(chromaWidth, chromaHeight, AVS2Pad/2)
	f.V = allocPlane(chromaWidth, chromaHeight, AVS2Pad/2)
	blocks4x4 := ((width + 3) / 4) * ((height + 3) / 4)
	f.MVGrid = make([]MotionVector, blocks4x4)
	f.RefIdxGrid = make([]int8, blocks4x4)
	return f
}

func allocPlane(width, height, pad int) Plane {
	stride := width + 2*pad
	rows := height + 2*pad
	return Plane{
		Data:   make([]byte, stride*rows),
		Stride: stride,
		Width:  width,
		Height: height,
		Pad:    pad,
	}
}

// acquire increments the frame's reference count by n under the
// frame's own mutex. Pool methods call it with the pool lock held,
// because refcount participates in pool-wide slot-selection decisions.
func (f *Frame) acquire(n int) {
	f.mu.Lock()
	f.refcount += n
	f.mu.Unlock()
}

// Release decrements the frame's reference count by one. If it drops
// to zero and the frame is marked for disposal, the caller (Pool)
// is responsible for resetting it back into the free state; Release
// itself only reports whether that follow-up is needed.
func (f *Frame) release() (shouldReclaim bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refcount--
	if f.refcount < 0 {
		f.refcount = 0
	}
	return f.refcount == 0 && f.disposable != Keep
}

// RefCount returns the current reference count.
func (f *Frame) RefCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refcount
}

// ReferedByOthers reports whether this frame is eligible to serve as
// a motion-compensation reference.
func (f *Frame) ReferedByOthers() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.referedByOthers
}

// SetReferedByOthers is set from the owning picture's RPS once header
// parsing determines whether later pictures may reference it.
func (f *Frame) SetReferedByOthers(v bool) {
	f.mu.Lock()
	f.referedByOthers = v
	f.mu.Unlock()
}

// MarkDisposable records the release policy to apply once refcount
// reaches zero.
func (f *Frame) MarkDisposable(d Disposable) {
	f.mu.Lock()
	f.disposable = d
	f.mu.Unlock()
}

// CompleteRow records that LCU row y has been fully reconstructed and
// post-filtered, and wakes any frame waiting on that row (motion
// compensation readers) or on any earlier row (a reader that issued
// its wait before this row, or any, completed).
func (f *Frame) CompleteRow(y int) {
	f.mu.Lock()
	f.decodedLine = y
	f.mu.Unlock()
	for i := 0; i <= y && i < len(f.cond); i++ {
		f.cond[i].Broadcast()
	}
}

// WaitForRow blocks until row y has been completed (or the frame is
// already past it). It is the consumer side of CompleteRow.
func (f *Frame) WaitForRow(y int) {
	if y < 0 || y >= len(f.cond) {
		return
	}
	f.mu.Lock()
	for f.decodedLine < y {
		f.cond[y].Wait()
	}
	f.mu.Unlock()
}

// DecodedLine returns the highest fully reconstructed LCU row, or -1.
func (f *Frame) DecodedLine() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decodedLine
}

// CompleteAEC signals that entropy decoding for the whole picture has
// finished; reconstruction workers waiting for AEC completion (rather
// than a specific row) wake here.
func (f *Frame) CompleteAEC() {
	f.aec.Broadcast()
}

// WaitForAEC blocks until CompleteAEC has been called for this frame.
// done is a caller-supplied predicate since AEC completion is a
// one-shot event with no stored boolean on Frame; callers track that
// externally (e.g. the scheduler's TaskSlot state).
func (f *Frame) WaitForAEC(done func() bool) {
	f.mu.Lock()
	for !done() {
		f.aec.Wait()
	}
	f.mu.Unlock()
}

// reset returns the frame to the unused state, ready for reuse by a
// new picture. Pixel storage is kept (not reallocated).
func (f *Frame) reset() {
	f.mu.Lock()
	f.refcount = 0
	f.disposable = Keep
	f.referedByOthers = false
	f.decodedLine = -1
	f.COI = invalidOrder
	f.POC = invalidOrder
	f.mu.Unlock()
}

// Pool is the fixed-capacity DPB: num_decoders + picture_reorder_delay
// + slack frames, created on the first sequence header and torn down
// on resolution change or Close.
type Pool struct {
	mu     sync.Mutex
	log    *zerolog.Logger
	frames []*Frame

	width, height           int
	chromaWidth, chromaHeight int
	lcuRows                 int
}

// NewPool allocates capacity Frames sized for width x height (luma)
// with the given chroma plane dimensions and LCU row count (for the
// per-row condition variables).
func NewPool(log *zerolog.Logger, capacity, width, height, chromaWidth, chromaHeight, lcuRows int) *Pool {
	p := &Pool{
		log: log, width: width, height: height,
		chromaWidth: chromaWidth, chromaHeight: chromaHeight, lcuRows: lcuRows,
	}
	p.frames = make([]*Frame, capacity)
	for i := range p.frames {
		p.frames[i] = newFrame(log, width, height, chromaWidth, chromaHeight, lcuRows)
	}
	return p
}

// Capacity returns the pool's fixed frame count.
func (p *Pool) Capacity() int { return len(p.frames) }

// RemoveByCOI clears or marks-clean-when-unreferenced every frame
// whose effective COI matches one of the given removal COIs (spec
// §4.4 step 1).
func (p *Pool) RemoveByCOI(cois []int) {
	if len(cois) == 0 {
		return
	}
	want := make(map[int]bool, len(cois))
	for _, c := range cois {
		want[c] = true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.frames {
		f.mu.Lock()
		coi := f.COI
		f.mu.Unlock()
		if !want[coi] {
			continue
		}
		if f.RefCount() == 0 {
			f.reset()
		} else {
			f.MarkDisposable(CleanWhenUnreferenced)
		}
	}
}

// FindByCOI returns the frame whose effective COI equals coi and
// which is eligible to serve as a reference, or nil.
func (p *Pool) FindByCOI(coi int) *Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.frames {
		f.mu.Lock()
		match := f.COI == coi
		refable := f.referedByOthers
		f.mu.Unlock()
		if match && refable {
			return f
		}
	}
	return nil
}

// AcquireReconstructionSlot implements spec §4.4's slot selection: any
// frame with refcount 0 and referedByOthers == false. On success the
// frame's refcount is bumped by 2 (decoder + output queue) and, if
// willBeReferenced is false, it is marked clean-when-unreferenced so
// a later RemoveByCOI or natural refcount drop recycles it promptly.
//
// When no frame is free it returns a KindResource error; the caller
// may then use ReclaimLowestPOC and try again.
func (p *Pool) AcquireReconstructionSlot(willBeReferenced bool) (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.findFreeSlotLocked()
	if f == nil {
		return nil, errs.New(errs.KindResource, "dpb: no free reconstruction slot")
	}
	f.acquire(2)
	if !willBeReferenced {
		f.MarkDisposable(CleanWhenUnreferenced)
	}
	return f, nil
}

func (p *Pool) findFreeSlotLocked() *Frame {
	for _, f := range p.frames {
		if f.RefCount() == 0 && !f.ReferedByOthers() {
			return f
		}
	}
	return nil
}

// ReclaimLowestPOC forcibly resets the unreferenced frame with the
// lowest POC (spec §4.4's last-resort reclamation), returning it
// ready for reuse, or nil if every frame is still referenced.
func (p *Pool) ReclaimLowestPOC() *Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	var best *Frame
	bestPOC := int(^uint(0) >> 1)
	for _, f := range p.frames {
		if f.RefCount() > 0 {
			continue
		}
		f.mu.Lock()
		poc := f.POC
		f.mu.Unlock()
		if poc != invalidOrder && poc < bestPOC {
			best, bestPOC = f, poc
		}
	}
	if best != nil {
		best.reset()
	}
	return best
}

// Release drops one reference on f, recycling it into the free state
// if that was the last one and it is marked for disposal.
func (p *Pool) Release(f *Frame) {
	if f.release() {
		f.reset()
	}
}

// Frames returns every frame in the pool, for diagnostics/stats.
func (p *Pool) Frames() []*Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Frame, len(p.frames))
	copy(out, p.frames)
	return out
}
