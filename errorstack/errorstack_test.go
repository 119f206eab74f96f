package errorstack

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackCapturesFrame(t *testing.T) {
	err := Stack(CodeNoFreePages)
	require.Equal(t, CodeNoFreePages, err.Code)
	require.Len(t, err.Frames(), 1)
	require.Contains(t, err.Frames()[0].Function, "TestStackCapturesFrame")
}

func TestWrapPreservesCodeAndAppendsFrame(t *testing.T) {
	inner := Stack(CodeOutOfPages)

	wrap := func(e error) error {
		return Wrap(e, "while grabbing a page")
	}
	wrapped := wrap(inner)

	e, ok := wrapped.(*Error)
	require.True(t, ok)
	require.Equal(t, CodeOutOfPages, e.Code)
	require.Len(t, e.Frames(), 2)
	require.Contains(t, e.Message, "while grabbing a page")
}

func TestWrapNonErrorDefaultsCode(t *testing.T) {
	plain := errors.New("disk exploded")
	var wrapped error = Wrap(plain, "reading snapshot")
	e, ok := wrapped.(*Error)
	require.True(t, ok)
	require.Equal(t, CodeNotImplemented, e.Code)
	require.Equal(t, plain, e.Cause)
	require.ErrorIs(t, wrapped, plain)
}

func TestWrapNil(t *testing.T) {
	require.Nil(t, Wrap(nil, "anything"))
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, CodeOK, CodeOf(nil))
	require.Equal(t, CodeNoFreePages, CodeOf(Stack(CodeNoFreePages)))
	require.Equal(t, CodeNotImplemented, CodeOf(errors.New("boom")))
}

func TestBatchSummarize(t *testing.T) {
	var b Batch
	require.True(t, b.Empty())
	require.Nil(t, b.Summarize())

	b.Add(nil)
	require.True(t, b.Empty())

	b.Add(Stack(CodeOutOfMemory))
	b.Add(Stack(CodeBadAlignment))
	require.False(t, b.Empty())

	err := b.Summarize()
	require.Error(t, err)
	require.Contains(t, err.Error(), "OUT_OF_MEMORY")
	require.Contains(t, err.Error(), "BAD_ALIGNMENT")
}

func TestCodeStringUnknown(t *testing.T) {
	require.Contains(t, Code(9999).String(), "UNKNOWN_CODE")
}
