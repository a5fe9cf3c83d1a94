// Package reorder implements the output reorderer: a POC-sorted
// holding queue that only releases a frame once it is the next
// expected display-order picture, detecting and logging the
// structural-deadlock case spec §4.4 describes instead of blocking
// forever.
//
// The "track what we expected next, compare against what showed up"
// shape mirrors ausocean-av's DiscontinuityRepairer, adapted from a
// continuity-counter check to a POC continuity check.
package reorder

import (
	"github.com/avs2go/davs2/dpb"
	"github.com/rs/zerolog"
)

// Queue holds decoded frames until they can be released in increasing
// POC order.
type Queue struct {
	log     *zerolog.Logger
	pending map[int]*dpb.Frame

	nextPOC  int
	started  bool
}

// New returns an empty output queue.
func New(log *zerolog.Logger) *Queue {
	return &Queue{log: log, pending: make(map[int]*dpb.Frame)}
}

// Push holds a newly reconstructed frame, keyed by its POC, for
// later release in display order.
func (q *Queue) Push(f *dpb.Frame) {
	q.pending[f.POC] = f
	if !q.started {
		q.nextPOC = f.POC
		q.started = true
	}
}

// Len returns the number of frames currently held.
func (q *Queue) Len() int { return len(q.pending) }

// Pop releases the next frame in display order if it is already
// held, advancing the expected POC. It returns false if the expected
// next frame has not arrived yet.
func (q *Queue) Pop() (*dpb.Frame, bool) {
	f, ok := q.pending[q.nextPOC]
	if !ok {
		return nil, false
	}
	delete(q.pending, q.nextPOC)
	q.nextPOC++
	return f, true
}

// AdvanceIfBlocked implements spec §4.4's structural-deadlock
// recovery: when the expected next POC is neither held nor still
// being decoded (isPending returns false for it), jump the expected
// POC forward to the smallest one actually held and release that
// frame instead, logging the gap.
func (q *Queue) AdvanceIfBlocked(isPending func(poc int) bool) (*dpb.Frame, bool) {
	if len(q.pending) == 0 {
		return nil, false
	}
	if _, ok := q.pending[q.nextPOC]; ok {
		return q.Pop()
	}
	if isPending(q.nextPOC) {
		return nil, false
	}

	smallest := 0
	have := false
	for poc := range q.pending {
		if !have || poc < smallest {
			smallest, have = poc, true
		}
	}
	if !have {
		return nil, false
	}
	if q.log != nil {
		q.log.Warn().Int("expected_poc", q.nextPOC).Int("released_poc", smallest).
			Msg("reorder: output pointer stalled, advancing past missing picture")
	}
	f := q.pending[smallest]
	delete(q.pending, smallest)
	q.nextPOC = smallest + 1
	return f, true
}

// Flush drains every held frame in ascending POC order, for use at
// end-of-stream or before a resolution change; frames are released
// even though the normal "next expected POC" gate would otherwise
// withhold them.
func (q *Queue) Flush() []*dpb.Frame {
	out := make([]*dpb.Frame, 0, len(q.pending))
	for len(q.pending) > 0 {
		smallest := 0
		have := false
		for poc := range q.pending {
			if !have || poc < smallest {
				smallest, have = poc, true
			}
		}
		out = append(out, q.pending[smallest])
		delete(q.pending, smallest)
	}
	q.nextPOC = 0
	q.started = false
	return out
}
