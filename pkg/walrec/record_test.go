package walrec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cobaltdb/txnmanager/pkg/lsn"
)

func TestRoundTrip(t *testing.T) {
	cases := []Record{
		{TxnID: lsn.Unknown, State: Begin},
		{TxnID: lsn.LSN(42), State: Commit},
		{TxnID: lsn.LSN(7), State: Abort},
	}

	for _, want := range cases {
		buf := Encode(want)
		require.Len(t, buf, Size)
		got, err := Decode(buf)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	buf := Encode(Record{TxnID: lsn.LSN(1), State: Commit})
	buf[len(buf)-1] ^= 0xFF

	_, err := Decode(buf)
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "BEGIN", Begin.String())
	require.Equal(t, "COMMIT", Commit.String())
	require.Equal(t, "ABORT", Abort.String())
	require.Equal(t, "UNKNOWN", State(99).String())
}
