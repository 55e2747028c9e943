package txn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cobaltdb/txnmanager/pkg/storage"
)

func TestReconstructRecoveryShapeClassifiesOutcomes(t *testing.T) {
	backend := storage.NewMemory()
	l, err := storage.OpenLog(backend)
	require.NoError(t, err)

	m := NewManager[string](l, EntityIDCodec[string]{Compare: StringComparator, Serializer: MsgpackIDSerializer[string]{}},
		NewDefaultVerifier[string](WriteSetOnly, MsgpackIDSerializer[string]{}), nil)
	ctx := context.Background()

	committedCtx, err := m.Begin(ctx, false)
	require.NoError(t, err)
	committed := m.mustCurrentRW(t, committedCtx)
	require.NoError(t, committed.AddEdit("a", []byte("1")))
	require.NoError(t, m.Commit(committedCtx))

	abortedCtx, err := m.Begin(ctx, false)
	require.NoError(t, err)
	aborted := m.mustCurrentRW(t, abortedCtx)
	require.NoError(t, aborted.AddEdit("b", []byte("2")))
	require.NoError(t, m.Abort(abortedCtx))

	danglingCtx, err := m.Begin(ctx, false)
	require.NoError(t, err)
	dangling := m.mustCurrentRW(t, danglingCtx)
	danglingStart := dangling.StartLSN()

	shape, err := ReconstructRecoveryShape(l)
	require.NoError(t, err)

	require.Equal(t, committed.CommitLSN(), shape.Committed[committed.StartLSN()])
	require.Contains(t, shape.Aborted, aborted.StartLSN())
	require.Contains(t, shape.Dangling, danglingStart)
	require.NotContains(t, shape.Dangling, committed.StartLSN())
	require.NotContains(t, shape.Dangling, aborted.StartLSN())
}
