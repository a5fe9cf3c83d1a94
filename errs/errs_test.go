package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := New(KindStreamStructure, "missing start code")
	require.Equal(t, KindStreamStructure, KindOf(err))
	require.False(t, IsFatal(err))

	fatal := New(KindFatalConfig, "bad thread count")
	require.True(t, IsFatal(fatal))

	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("eof")
	wrapped := Wrap(cause, KindResource, "dpb exhausted")
	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, KindResource, KindOf(wrapped))
	require.Nil(t, Wrap(nil, KindResource, "no-op"))
}
