package assorted

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlign8(t *testing.T) {
	cases := map[uint64]uint64{
		0: 0, 1: 8, 7: 8, 8: 8, 9: 16, 16: 16, 17: 24, 32: 32,
	}
	for in, want := range cases {
		require.Equal(t, want, Align8(in), "Align8(%d)", in)
	}
}

func TestIntDivCeil(t *testing.T) {
	require.Equal(t, uint64(0), IntDivCeil(0, 10))
	require.Equal(t, uint64(1), IntDivCeil(1, 10))
	require.Equal(t, uint64(1), IntDivCeil(10, 10))
	require.Equal(t, uint64(2), IntDivCeil(11, 10))
	require.Equal(t, uint64(0), IntDivCeil(5, 0))
}
