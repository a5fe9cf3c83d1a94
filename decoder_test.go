package avs2

import (
	"testing"

	"github.com/avs2go/davs2/bitreader"
	"github.com/avs2go/davs2/headers"
	"github.com/avs2go/davs2/kernels"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

// seqBitWriter is a mechanical bit packer mirroring headers' own
// test-only bitWriter: WriteU packs MSB-first to match bitreader.ReadU,
// WriteUE mirrors ReadUE's decode exactly. Kept local since headers'
// copy is unexported to its package.
type seqBitWriter struct{ bits []bool }

func (w *seqBitWriter) WriteU(n int, v uint32) {
	for i := n - 1; i >= 0; i-- {
		w.bits = append(w.bits, (v>>uint(i))&1 != 0)
	}
}
func (w *seqBitWriter) WriteFlag(b bool) { w.bits = append(w.bits, b) }
func (w *seqBitWriter) Bytes() []byte {
	n := (len(w.bits) + 7) / 8
	out := make([]byte, n)
	for i, b := range w.bits {
		if b {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

// minimalSequenceHeaderPayload builds a low-delay main-profile,
// single-RPS sequence header payload, matching
// headers.ParseSequenceHeader's expected field order exactly (see
// headers/headers_test.go's writeMinimalSequenceHeader, which this
// mirrors). Sequence-header units are exempt from emulation-prevention
// stripping, so no byte-pattern collision risk exists here regardless
// of field values chosen.
func minimalSequenceHeaderPayload(width, height, log2LCU int) []byte {
	w := &seqBitWriter{}
	w.WriteU(8, 0x20) // main profile
	w.WriteU(8, 0x10) // level_id
	w.WriteFlag(true)  // progressive
	w.WriteFlag(false) // field_coded_stream
	w.WriteU(14, uint32(width))
	w.WriteU(14, uint32(height))
	w.WriteU(2, 1) // chroma_format: 4:2:0
	w.WriteU(3, 1) // sample_precision
	w.WriteU(4, 1) // aspect_ratio
	w.WriteU(4, 3) // frame_rate_code -> 25.0
	w.WriteU(18, 5000)
	w.WriteFlag(true) // marker
	w.WriteU(12, 10)
	w.WriteFlag(true)  // low_delay
	w.WriteFlag(true)  // marker
	w.WriteFlag(false) // temporal_id_exist
	w.WriteU(18, 20000)
	w.WriteU(3, uint32(log2LCU))
	w.WriteFlag(false) // enable_weighted_quant
	w.WriteFlag(true)  // background_picture_disable
	for i := 0; i < 10; i++ {
		w.WriteFlag(false)
	}
	w.WriteFlag(true) // marker
	w.WriteU(6, 1)    // num_of_rps
	w.WriteFlag(true) // RPS[0].referedByOthers
	w.WriteU(3, 0)    // num_of_ref
	w.WriteU(3, 0)    // num_to_remove
	w.WriteFlag(true) // marker
	// low_delay == true -> no picture_reorder_delay field
	w.WriteFlag(false) // cross_slice_loop_filter
	w.WriteU(2, 0)      // reserved
	return w.Bytes()
}

func startCodeUnit(classifier byte, payload []byte) []byte {
	out := make([]byte, 0, 4+len(payload))
	out = append(out, 0, 0, 1, classifier)
	return append(out, payload...)
}

func nopKernelsFactory(seq *headers.SequenceParameters, disableAVX bool, flags CPUFlags) (kernels.Set, error) {
	return nil, nil
}

func TestOpenRequiresKernelsFactory(t *testing.T) {
	_, err := Open()
	require.Error(t, err)
}

func TestOpenSucceedsWithKernelsFactory(t *testing.T) {
	d, err := Open(WithKernelsFactory(nopKernelsFactory), WithThreads(2))
	require.NoError(t, err)
	defer d.Close()
	require.NotNil(t, d)
}

func TestSendPacketRejectsEmptyPacket(t *testing.T) {
	d, err := Open(WithKernelsFactory(nopKernelsFactory))
	require.NoError(t, err)
	defer d.Close()

	status, err := d.SendPacket(nil, 0, 0)
	require.Error(t, err)
	require.Equal(t, StatusError, status)
}

func TestSendPacketRejectsTooShortPacket(t *testing.T) {
	d, err := Open(WithKernelsFactory(nopKernelsFactory))
	require.NoError(t, err)
	defer d.Close()

	status, err := d.SendPacket([]byte{0, 0, 1}, 0, 0)
	require.Error(t, err)
	require.Equal(t, StatusError, status)
}

func TestSendPacketAcceptsSequenceHeaderAndReportsGotHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockSet := kernels.NewMockSet(ctrl)

	d, err := Open(WithKernelsFactory(func(seq *headers.SequenceParameters, disableAVX bool, flags CPUFlags) (kernels.Set, error) {
		return mockSet, nil
	}))
	require.NoError(t, err)
	defer d.Close()

	payload := minimalSequenceHeaderPayload(32, 32, 4)
	packet := startCodeUnit(0xB0, payload)
	// A trailing start code is required for the framer to finalize the
	// sequence-header unit from a single Push.
	packet = append(packet, 0, 0, 1, 0xB3)

	status, err := d.SendPacket(packet, 100, 100)
	require.NoError(t, err)
	require.Equal(t, StatusGotHeader, status)
	require.Equal(t, 32, d.seq.Width)
	require.Equal(t, 32, d.seq.Height)
}

func TestHandlePictureBeforeSequenceHeaderIsRejected(t *testing.T) {
	d, err := Open(WithKernelsFactory(nopKernelsFactory))
	require.NoError(t, err)
	defer d.Close()

	packet := startCodeUnit(0xB3, []byte{0, 0, 0, 0})
	packet = append(packet, 0, 0, 1, 0xB1)
	status, err := d.SendPacket(packet, 0, 0)
	require.Error(t, err)
	require.Equal(t, StatusError, status)
}

func TestRecvFrameOnEmptyDecoderReturnsDefault(t *testing.T) {
	d, err := Open(WithKernelsFactory(nopKernelsFactory))
	require.NoError(t, err)
	defer d.Close()

	f, status, err := d.RecvFrame()
	require.NoError(t, err)
	require.Nil(t, f)
	require.Equal(t, StatusDefault, status)
}

func TestFlushOnEmptyDecoderReturnsEnd(t *testing.T) {
	d, err := Open(WithKernelsFactory(nopKernelsFactory))
	require.NoError(t, err)
	defer d.Close()

	f, status, err := d.Flush()
	require.NoError(t, err)
	require.Nil(t, f)
	require.Equal(t, StatusEnd, status)
}

func TestUserDataRoundTrip(t *testing.T) {
	type handle struct{ id int }
	h := &handle{id: 7}
	d, err := Open(WithKernelsFactory(nopKernelsFactory), WithUserData(h))
	require.NoError(t, err)
	defer d.Close()
	require.Same(t, h, d.UserData())
}

func TestStatsReflectsFramesIn(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockSet := kernels.NewMockSet(ctrl)

	d, err := Open(WithKernelsFactory(func(seq *headers.SequenceParameters, disableAVX bool, flags CPUFlags) (kernels.Set, error) {
		return mockSet, nil
	}))
	require.NoError(t, err)
	defer d.Close()

	payload := minimalSequenceHeaderPayload(32, 32, 4)
	packet := startCodeUnit(0xB0, payload)
	packet = append(packet, 0, 0, 1, 0xB3)
	_, err = d.SendPacket(packet, 0, 0)
	require.NoError(t, err)

	snap := d.Stats()
	require.Equal(t, int64(0), snap.FramesIn)
	require.Equal(t, d.pool.Capacity(), snap.DPBCapacity)
}

// bitreaderFromBytes is a tiny helper kept local to this file so tests
// that want to sanity-check a hand-built payload against the headers
// parser directly can do so without going through the framer.
func bitreaderFromBytes(b []byte) *bitreader.Reader { return bitreader.New(b) }

func TestMinimalSequenceHeaderPayloadParsesDirectly(t *testing.T) {
	payload := minimalSequenceHeaderPayload(64, 48, 4)
	sp, err := headers.ParseSequenceHeader(bitreaderFromBytes(payload))
	require.NoError(t, err)
	require.Equal(t, 64, sp.Width)
	require.Equal(t, 48, sp.Height)
	require.Equal(t, 16, sp.LCUSize)
	require.True(t, sp.LowDelay)
}
