package bitreader

import (
	"testing"

	"github.com/avs2go/davs2/errs"
	"github.com/stretchr/testify/require"
)

func TestReadU(t *testing.T) {
	// 1011 0110  1100 0000
	r := New([]byte{0xB6, 0xC0})
	v, err := r.ReadU(4)
	require.NoError(t, err)
	require.Equal(t, uint32(0xB), v)

	v, err = r.ReadU(4)
	require.NoError(t, err)
	require.Equal(t, uint32(0x6), v)

	v, err = r.ReadU(2)
	require.NoError(t, err)
	require.Equal(t, uint32(0x3), v)
}

func TestReadFlag(t *testing.T) {
	r := New([]byte{0x80})
	b, err := r.ReadFlag()
	require.NoError(t, err)
	require.True(t, b)
	b, err = r.ReadFlag()
	require.NoError(t, err)
	require.False(t, b)
}

func TestReadUE(t *testing.T) {
	// codeNum 0 -> "1"
	// codeNum 1 -> "010"
	// codeNum 2 -> "011"
	// codeNum 3 -> "00100"
	cases := []struct {
		bits string
		want uint32
	}{
		{"1", 0},
		{"010", 1},
		{"011", 2},
		{"00100", 3},
		{"00101", 4},
	}
	for _, c := range cases {
		r := New(bitsToBytes(c.bits))
		got, err := r.ReadUE()
		require.NoError(t, err)
		require.Equal(t, c.want, got, "bits=%s", c.bits)
	}
}

func TestReadSE(t *testing.T) {
	// ue(v)=0 -> se=0 ; ue=1 -> se=-1 ; ue=2 -> se=1 ; ue=3 -> se=-2 ; ue=4 -> se=2
	cases := []struct {
		bits string
		want int32
	}{
		{"1", 0},
		{"010", -1},
		{"011", 1},
		{"00100", -2},
		{"00101", 2},
	}
	for _, c := range cases {
		r := New(bitsToBytes(c.bits))
		got, err := r.ReadSE()
		require.NoError(t, err)
		require.Equal(t, c.want, got, "bits=%s", c.bits)
	}
}

func TestAlignByteAndBytesLeft(t *testing.T) {
	r := New([]byte{0xFF, 0xAA, 0x55})
	_, _ = r.ReadU(3)
	require.Equal(t, 3, r.BytesLeft())
	r.AlignByte()
	require.Equal(t, 2, r.BytesLeft())
	_, err := r.ReadU(16)
	require.NoError(t, err)
	require.Equal(t, 0, r.BytesLeft())
}

func TestOverrun(t *testing.T) {
	r := New([]byte{0xFF})
	_, err := r.ReadU(9)
	require.Error(t, err)
	require.Equal(t, errs.KindStreamStructure, errs.KindOf(err))
}

// bitsToBytes pads a string of '0'/'1' characters to a whole number
// of bytes with trailing zero bits and packs it big-endian.
func bitsToBytes(bits string) []byte {
	for len(bits)%8 != 0 {
		bits += "0"
	}
	out := make([]byte, len(bits)/8)
	for i, c := range bits {
		if c == '1' {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}
