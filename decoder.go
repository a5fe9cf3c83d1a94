// Package avs2 is the control-API surface of the decoder: Open,
// SendPacket, RecvFrame, Flush, FrameUnref, Close, wiring together the
// start-code framer, header parsers, DPB, reference-picture-set
// manager, dual thread-pool scheduler, per-picture pipeline, and
// output reorderer declared in this module's subpackages (spec §6).
package avs2

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/avs2go/davs2/bitreader"
	"github.com/avs2go/davs2/dpb"
	"github.com/avs2go/davs2/errs"
	"github.com/avs2go/davs2/headers"
	"github.com/avs2go/davs2/kernels"
	"github.com/avs2go/davs2/nalu"
	"github.com/avs2go/davs2/pipeline"
	"github.com/avs2go/davs2/refpic"
	"github.com/avs2go/davs2/reorder"
	"github.com/avs2go/davs2/scheduler"
	"github.com/avs2go/davs2/stats"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
)

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.999Z0700"
}

// KernelsFactory builds the numeric-kernel implementation for one
// sequence's geometry and bit depth. Supplied by the caller through
// WithKernelsFactory; the decoder never ships a kernel implementation
// of its own.
type KernelsFactory func(seq *headers.SequenceParameters, disableAVX bool, flags CPUFlags) (kernels.Set, error)

// Status mirrors spec §6's control-API status enum.
type Status int

const (
	StatusDefault Status = iota
	StatusGotHeader
	StatusGotFrame
	StatusError
	StatusEnd
)

func (s Status) String() string {
	switch s {
	case StatusDefault:
		return "default"
	case StatusGotHeader:
		return "got-header"
	case StatusGotFrame:
		return "got-frame"
	case StatusError:
		return "error"
	case StatusEnd:
		return "end"
	default:
		return "unknown"
	}
}

// OutputFrame is the frame structure handed back by RecvFrame/Flush
// (spec §6's "returned frame structure").
type OutputFrame struct {
	Y, U, V dpb.Plane

	BytesPerSample int
	BitDepth       int

	POC  int
	Type headers.PictureType
	QP   uint8

	PTS, DTS int64

	DecodeError bool

	frame *dpb.Frame // opaque handle consumed by FrameUnref
}

// inFlight tracks one picture between SendPacket acceptance and its
// reconstruction job finishing, so the reorderer's AdvanceIfBlocked
// can tell a still-decoding POC apart from one that will never arrive.
type inFlight struct {
	poc int
}

// Decoder is one open decoding session. Every field is private; the
// caller only ever holds a *Decoder returned by Open.
type Decoder struct {
	log *zerolog.Logger

	opts Options

	framer *nalu.Framer
	coi    headers.COITracker

	seq *headers.SequenceParameters

	pool       *dpb.Pool
	refs       *refpic.Manager
	sched      *scheduler.Scheduler
	reorderer  *reorder.Queue
	kernels    kernels.Set

	counters stats.Counters

	mu        sync.Mutex
	inFlight  map[*dpb.Frame]*inFlight
	haveIntra bool
	exit      bool

	flushed []*dpb.Frame
}

// Open allocates a decoder handle: resolves the thread budget,
// constructs a per-handle logger (never the package-global one, so
// multiple handles in one process keep independent log streams), and
// starts the scheduler's worker pools. The DPB and kernel set are not
// built until the first sequence header arrives, since both depend on
// picture geometry.
func Open(opts ...Option) (*Decoder, error) {
	o := Options{LogLevel: zerolog.InfoLevel}
	for _, fn := range opts {
		fn(&o)
	}
	if o.NewKernels == nil {
		return nil, errs.New(errs.KindFatalConfig, "avs2: WithKernelsFactory is required")
	}
	threads := resolveThreads(o.Threads)
	o.Threads = threads

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339Nano}
	instance := zerolog.New(writer).With().Timestamp().Logger().Level(o.LogLevel)

	sched, err := scheduler.New(threads, &instance)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindFatalConfig, "avs2: scheduler init failed")
	}

	d := &Decoder{
		log:       &instance,
		opts:      o,
		framer:    nalu.New(&instance),
		reorderer: reorder.New(&instance),
		sched:     sched,
		inFlight:  make(map[*dpb.Frame]*inFlight),
	}
	d.log.Info().Int("threads", threads).Msg("avs2: decoder opened")
	return d, nil
}

// SendPacket feeds one transport packet into the framer and drives
// whatever coded units it completes, per spec §6. A unit that fails is
// logged and dropped and the remaining units are still handled; the
// first such error is returned with StatusError.
func (d *Decoder) SendPacket(data []byte, pts, dts int64) (Status, error) {
	if d.exit {
		return StatusError, errs.New(errs.KindResource, "avs2: decoder is closed")
	}
	unit, err := d.framer.Push(data, pts, dts)
	if err != nil {
		return StatusError, err
	}
	status := StatusDefault
	var firstErr error
	for unit != nil {
		st, uErr := d.handleUnit(unit)
		if uErr != nil {
			d.log.Warn().Err(uErr).Str("kind", fmt.Sprintf("%#x", uint8(unit.Kind))).Msg("avs2: dropping coded unit")
			if errs.KindOf(uErr) == errs.KindResource {
				return StatusError, uErr
			}
			status = StatusError
			if firstErr == nil {
				firstErr = uErr
			}
		} else if st > status {
			status = st
		}
		unit = d.framer.Pending()
	}
	return status, firstErr
}

func (d *Decoder) handleUnit(u *nalu.CodedUnit) (Status, error) {
	switch u.Kind {
	case nalu.KindSequenceHeader:
		return d.handleSequenceHeader(u)
	case nalu.KindIntraPicture:
		return d.handlePicture(u, true)
	case nalu.KindInterPicture:
		return d.handlePicture(u, false)
	default:
		// Slice, user-data, and extension classifiers never reach here:
		// the framer absorbs them into whatever picture/sequence unit is
		// already being assembled (DAVS2_ISUNIT). Only sequence-end and
		// video-edit units fall through with nothing to do.
		return StatusDefault, nil
	}
}

func (d *Decoder) handleSequenceHeader(u *nalu.CodedUnit) (Status, error) {
	br := bitreader.New(u.Payload)
	sp, err := headers.ParseSequenceHeader(br)
	if err != nil {
		d.counters.AddDropped()
		return StatusError, err
	}
	if sp.FieldCodedStream {
		d.counters.AddDropped()
		return StatusError, errs.New(errs.KindStreamStructure, "avs2: field-coded streams are not supported")
	}
	if sp.ChromaFormat != headers.Chroma420 && sp.ChromaFormat != headers.Chroma400 {
		d.counters.AddDropped()
		return StatusError, errs.New(errs.KindStreamStructure, "avs2: unsupported chroma format")
	}

	k, err := d.opts.NewKernels(sp, d.opts.DisableAVX, CPUFlags(0))
	if err != nil {
		return StatusError, errs.Wrap(err, errs.KindFatalConfig, "avs2: kernel construction failed")
	}

	capacity := d.opts.Threads + sp.PictureReorderDelay + 4
	lcuRows := (sp.Height + sp.LCUSize - 1) / sp.LCUSize
	chromaWidth, chromaHeight := sp.Width, sp.Height
	if sp.ChromaFormat == headers.Chroma420 {
		chromaWidth, chromaHeight = sp.Width/2, sp.Height/2
	}

	d.seq = sp
	d.pool = dpb.NewPool(d.log, capacity, sp.Width, sp.Height, chromaWidth, chromaHeight, lcuRows)
	d.refs = refpic.NewManager(d.pool)
	d.kernels = k
	d.coi = headers.COITracker{}
	d.haveIntra = false

	d.log.Info().Int("width", sp.Width).Int("height", sp.Height).Int("bit_depth", sp.BitDepth).Msg("avs2: sequence header parsed")
	return StatusGotHeader, nil
}

func (d *Decoder) handlePicture(u *nalu.CodedUnit, intra bool) (Status, error) {
	if d.seq == nil {
		return StatusError, errs.New(errs.KindStreamStructure, "avs2: picture unit before sequence header")
	}
	if !intra && !d.haveIntra {
		d.counters.AddSequenceMismatch()
		return StatusError, errs.New(errs.KindSequenceMismatch, "avs2: first picture after open/flush must be intra")
	}

	br := bitreader.New(u.Payload)

	var ph *headers.PictureHeader
	var err error
	parseErr := d.sched.ParseUnderAEC(func() error {
		if intra {
			ph, err = headers.ParseIntraPictureHeader(br, d.seq)
		} else {
			ph, err = headers.ParseInterPictureHeader(br, d.seq)
		}
		return err
	})
	if parseErr != nil {
		d.counters.AddDropped()
		return StatusError, parseErr
	}

	ph.EffectiveCOI = d.coi.Next(ph.COI)
	ph.POC = headers.DerivePOC(ph.EffectiveCOI, ph.PictureOutputDelay, d.seq.PictureReorderDelay, d.seq.LowDelay)

	refsResolved, err := d.refs.Apply(ph.EffectiveCOI, ph.POC, ph.RPS)
	if err != nil {
		d.counters.AddDropped()
		return StatusError, err
	}
	if !intra && ph.Type == headers.PictureB {
		ordered, err := refpic.EnforceBOrdering(refsResolved, ph.POC)
		if err != nil {
			d.counters.AddDropped()
			return StatusError, err
		}
		refsResolved = ordered[:]
	}

	frame, err := d.pool.AcquireReconstructionSlot(ph.RPS.ReferedByOthers)
	if err != nil {
		if reclaimed := d.pool.ReclaimLowestPOC(); reclaimed != nil {
			reclaimed.MarkDisposable(dpb.Keep)
			frame, err = d.pool.AcquireReconstructionSlot(ph.RPS.ReferedByOthers)
		}
	}
	if err != nil {
		d.counters.AddResourceError()
		return StatusError, err
	}
	frame.COI = ph.EffectiveCOI
	frame.POC = ph.POC
	frame.PTS, frame.DTS = u.PTS, u.DTS
	frame.Type = ph.Type
	frame.QP = ph.QP
	frame.SetReferedByOthers(ph.RPS.ReferedByOthers)

	slot, err := d.sched.AcquireSlot()
	if err != nil {
		d.pool.Release(frame)
		d.counters.AddResourceError()
		return StatusError, err
	}

	// Slice headers are not parsed here: each is prefixed by its own
	// start code inside the picture's entropy-coded payload and can
	// only be located once the previous slice's entropy data has been
	// consumed, so pic.Decode scans for and parses them itself, one per
	// LCU row, as reconstruction proceeds.
	pic := pipeline.New(d.log, d.seq, ph, refsResolved, frame, d.kernels)

	d.markInFlight(frame, ph.POC)
	d.counters.AddFrameIn()
	if intra {
		d.haveIntra = true
	}

	err = d.sched.SubmitReconstruction(func() {
		defer d.sched.ReleaseSlot(slot)
		if decErr := pic.Decode(br); decErr != nil {
			d.log.Warn().Err(decErr).Int("poc", ph.POC).Msg("avs2: picture reconstruction failed")
		}
		d.finishInFlight(frame)
		if ph.Type.Output() {
			d.reorderer.Push(frame)
		} else {
			d.pool.Release(frame)
		}
		// Drop the decoder's own hold; an output frame keeps the
		// output queue's hold until FrameUnref.
		d.pool.Release(frame)
	})
	if err != nil {
		d.sched.ReleaseSlot(slot)
		d.finishInFlight(frame)
		d.pool.Release(frame)
		d.counters.AddResourceError()
		return StatusError, err
	}

	return StatusDefault, nil
}

func (d *Decoder) markInFlight(f *dpb.Frame, poc int) {
	d.mu.Lock()
	d.inFlight[f] = &inFlight{poc: poc}
	d.mu.Unlock()
}

func (d *Decoder) finishInFlight(f *dpb.Frame) {
	d.mu.Lock()
	delete(d.inFlight, f)
	d.mu.Unlock()
}

// isPending reports whether some in-flight picture still being
// reconstructed carries the given POC, the callback reorder.Queue's
// AdvanceIfBlocked needs to distinguish "still coming" from "never
// coming".
func (d *Decoder) isPending(poc int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range d.inFlight {
		if f.poc == poc {
			return true
		}
	}
	return false
}

// RecvFrame returns the next frame in display order if one is ready.
func (d *Decoder) RecvFrame() (*OutputFrame, Status, error) {
	if f, ok := d.reorderer.Pop(); ok {
		return d.toOutputFrame(f), StatusGotFrame, nil
	}
	if f, ok := d.reorderer.AdvanceIfBlocked(d.isPending); ok {
		return d.toOutputFrame(f), StatusGotFrame, nil
	}
	return nil, StatusDefault, nil
}

// Flush drains every buffered coded unit and queued frame, returning
// one frame per call until StatusEnd.
func (d *Decoder) Flush() (*OutputFrame, Status, error) {
	if u := d.framer.Flush(); u != nil {
		if _, err := d.handleUnit(u); err != nil {
			d.log.Warn().Err(err).Msg("avs2: error flushing trailing coded unit")
		}
	}
	if d.flushed == nil {
		d.flushed = d.reorderer.Flush()
	}
	if len(d.flushed) == 0 {
		return nil, StatusEnd, nil
	}
	f := d.flushed[0]
	d.flushed = d.flushed[1:]
	return d.toOutputFrame(f), StatusGotFrame, nil
}

func (d *Decoder) toOutputFrame(f *dpb.Frame) *OutputFrame {
	d.counters.AddFrameOut()
	bytesPerSample := 1
	if d.seq != nil && d.seq.BitDepth > 8 {
		bytesPerSample = 2
	}
	return &OutputFrame{
		Y: f.Y, U: f.U, V: f.V,
		BytesPerSample: bytesPerSample,
		BitDepth:       bitDepthOf(d.seq),
		POC:            f.POC,
		Type:           f.Type,
		QP:             f.QP,
		PTS:            f.PTS,
		DTS:            f.DTS,
		frame:          f,
	}
}

func bitDepthOf(sp *headers.SequenceParameters) int {
	if sp == nil {
		return 8
	}
	return sp.BitDepth
}

// FrameUnref releases the caller's reference on an output frame. The
// frame returns to the free pool once every other reference (the
// pipeline's own hold, already dropped at reconstruction end) is
// also gone.
func (d *Decoder) FrameUnref(f *OutputFrame) {
	if f == nil || f.frame == nil {
		return
	}
	d.pool.Release(f.frame)
	f.frame = nil
}

// UserData returns the opaque value supplied via WithUserData at Open,
// or nil if none was set.
func (d *Decoder) UserData() interface{} { return d.opts.UserData }

// Stats returns a point-in-time snapshot of this handle's counters.
func (d *Decoder) Stats() stats.Snapshot {
	occupied, capacity := 0, 0
	if d.pool != nil {
		capacity = d.pool.Capacity()
		for _, fr := range d.pool.Frames() {
			if fr.RefCount() > 0 {
				occupied++
			}
		}
	}
	return d.counters.Snapshot(occupied, capacity)
}

// Close sets the exit flag and joins every worker. It does not release
// the DPB.
func (d *Decoder) Close() {
	if d.exit {
		return
	}
	d.exit = true
	d.sched.Close()
	d.log.Info().Msg("avs2: decoder closed")
}
