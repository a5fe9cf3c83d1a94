// Package stats collects per-decoder-handle diagnostic counters:
// pictures pushed in, frames emitted, pictures dropped by kind of
// error, and DPB occupancy. It mirrors the shape of the teacher's
// statistics package (one small struct per metric, aggregated into a
// snapshot), but counters here are atomic rather than single-threaded
// since a decoder handle's workers update them concurrently.
package stats

import (
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
)

// Counters tracks cumulative events for one decoder handle.
type Counters struct {
	framesIn          int64
	framesOut         int64
	picturesDropped   int64
	streamErrors      int64
	resourceErrors    int64
	sequenceMismatches int64
}

// AddFrameIn records one coded picture accepted by SendPacket.
func (c *Counters) AddFrameIn() { atomic.AddInt64(&c.framesIn, 1) }

// AddFrameOut records one frame released by RecvFrame or Flush.
func (c *Counters) AddFrameOut() { atomic.AddInt64(&c.framesOut, 1) }

// AddDropped records one picture discarded due to a stream-structure
// error (spec's recoverable per-picture failure class).
func (c *Counters) AddDropped() {
	atomic.AddInt64(&c.picturesDropped, 1)
	atomic.AddInt64(&c.streamErrors, 1)
}

// AddResourceError records one call that failed due to DPB exhaustion
// or allocation failure.
func (c *Counters) AddResourceError() { atomic.AddInt64(&c.resourceErrors, 1) }

// AddSequenceMismatch records one rejected non-intra first picture.
func (c *Counters) AddSequenceMismatch() { atomic.AddInt64(&c.sequenceMismatches, 1) }

// Snapshot is a point-in-time, JSON-serializable view of Counters
// plus live DPB occupancy supplied by the caller.
type Snapshot struct {
	FramesIn           int64 `json:"frames_in"`
	FramesOut          int64 `json:"frames_out"`
	PicturesDropped    int64 `json:"pictures_dropped"`
	StreamErrors       int64 `json:"stream_errors"`
	ResourceErrors     int64 `json:"resource_errors"`
	SequenceMismatches int64 `json:"sequence_mismatches"`
	DPBOccupied        int   `json:"dpb_occupied"`
	DPBCapacity        int   `json:"dpb_capacity"`
}

// Snapshot takes a consistent-enough (not transactional, just atomic
// per-field) read of the counters.
func (c *Counters) Snapshot(dpbOccupied, dpbCapacity int) Snapshot {
	return Snapshot{
		FramesIn:           atomic.LoadInt64(&c.framesIn),
		FramesOut:          atomic.LoadInt64(&c.framesOut),
		PicturesDropped:    atomic.LoadInt64(&c.picturesDropped),
		StreamErrors:       atomic.LoadInt64(&c.streamErrors),
		ResourceErrors:     atomic.LoadInt64(&c.resourceErrors),
		SequenceMismatches: atomic.LoadInt64(&c.sequenceMismatches),
		DPBOccupied:        dpbOccupied,
		DPBCapacity:        dpbCapacity,
	}
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// MarshalJSON lets a Snapshot be logged or exposed directly through
// jsoniter, matching the library the rest of this module uses for
// wire-adjacent serialization.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type alias Snapshot
	return jsonAPI.Marshal(alias(s))
}
