package nalu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyAndPictureScan(t *testing.T) {
	require.True(t, IsPictureOrSequenceStart(Classify(0xB0)))
	require.True(t, IsPictureOrSequenceStart(Classify(0xB3)))
	require.True(t, IsPictureOrSequenceStart(Classify(0xB6)))
	require.False(t, IsPictureOrSequenceStart(Classify(0xB2)))
	require.True(t, Classify(0x05).IsSlice())
	require.False(t, Classify(0xB0).IsSlice())
}

func TestStripEmulationNoPattern(t *testing.T) {
	src := []byte{0x01, 0x02, 0x03, 0x00, 0x01, 0x00, 0x00, 0x03}
	require.Equal(t, src, stripEmulation(append([]byte(nil), src...)))
}

func TestStripEmulationExactBytes(t *testing.T) {
	src := []byte{0xAB, 0x00, 0x00, 0x02, 0xCD}
	want := []byte{0xAB, 0x00, 0x00, 0x03, 0x34}
	require.Equal(t, want, stripEmulation(src))
}

func TestStripEmulationIdempotent(t *testing.T) {
	src := []byte{0xAB, 0x00, 0x00, 0x02, 0xCD, 0x00, 0x00, 0x02, 0x11}
	once := stripEmulation(src)
	twice := stripEmulation(append([]byte(nil), once...))
	require.Equal(t, once, twice)
}

func TestFramerSingleUnit(t *testing.T) {
	f := New(nil)
	data := []byte{0x00, 0x00, 0x01, 0xB3, 0x11, 0x22, 0x00, 0x00, 0x01, 0xB6, 0x33}
	u, err := f.Push(data, 1, 1)
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, KindIntraPicture, u.Kind)
	require.Equal(t, []byte{0x11, 0x22}, u.Payload)

	last := f.Flush()
	require.NotNil(t, last)
	require.Equal(t, KindInterPicture, last.Kind)
	require.Equal(t, []byte{0x33}, last.Payload)
}

func TestFramerSplitAcrossPushCalls(t *testing.T) {
	f := New(nil)
	_, err := f.Push([]byte{0x00, 0x00, 0x01, 0xB0, 0xAA}, 0, 0)
	require.NoError(t, err)
	_, err = f.Push([]byte{0xBB, 0x00, 0x00}, 0, 0)
	require.NoError(t, err)
	u, err := f.Push([]byte{0x01, 0xB3, 0xCC}, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, KindSequenceHeader, u.Kind)
	require.Equal(t, []byte{0xAA, 0xBB}, u.Payload)
}

func TestFramerMultipleUnitsInOnePush(t *testing.T) {
	f := New(nil)
	data := []byte{
		0x00, 0x00, 0x01, 0xB3, 0x01,
		0x00, 0x00, 0x01, 0xB6, 0x02,
		0x00, 0x00, 0x01, 0xB3, 0x03,
	}
	u1, err := f.Push(data, 0, 0)
	require.NoError(t, err)
	require.Equal(t, KindIntraPicture, u1.Kind)
	require.Equal(t, []byte{0x01}, u1.Payload)

	u2 := f.Pending()
	require.NotNil(t, u2)
	require.Equal(t, KindInterPicture, u2.Kind)
	require.Equal(t, []byte{0x02}, u2.Payload)

	require.Nil(t, f.Pending())

	last := f.Flush()
	require.NotNil(t, last)
	require.Equal(t, KindIntraPicture, last.Kind)
	require.Equal(t, []byte{0x03}, last.Payload)
}

func TestFramerEmptyPacketIsError(t *testing.T) {
	f := New(nil)
	_, err := f.Push(nil, 0, 0)
	require.Error(t, err)
}

func TestFramerAbsorbsSliceStartCodesIntoPicturePayload(t *testing.T) {
	f := New(nil)
	// A picture header byte, then two slice start codes (classifiers
	// 0x10 and 0x20, both <= KindSliceMax) each with one payload byte,
	// followed by the next picture's start code. Per DAVS2_ISUNIT, only
	// B0/B1/B3/B6/B7 classifiers begin a new unit; slice start codes
	// must be absorbed into the picture payload being assembled.
	data := []byte{
		0x00, 0x00, 0x01, 0xB3, 0xAA,
		0x00, 0x00, 0x01, 0x10, 0x11,
		0x00, 0x00, 0x01, 0x20, 0x22,
		0x00, 0x00, 0x01, 0xB6, 0xFF,
	}
	u, err := f.Push(data, 0, 0)
	require.NoError(t, err)
	require.Equal(t, KindIntraPicture, u.Kind)
	require.Equal(t, []byte{
		0xAA,
		0x00, 0x00, 0x01, 0x10, 0x11,
		0x00, 0x00, 0x01, 0x20, 0x22,
	}, u.Payload)
}
