package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecorder_IncAndSnapshot(t *testing.T) {
	r := New()
	r.Inc(BogusInstrs)
	r.Inc(BogusInstrs)
	r.Add(FakeLoops, 5)
	r.Add(ConstObfs, 0)
	r.Add(AntiDebug, -3)

	snap := r.Snapshot()
	require.EqualValues(t, 2, snap[BogusInstrs])
	require.EqualValues(t, 5, snap[FakeLoops])
	require.EqualValues(t, 0, snap[ConstObfs])
	require.EqualValues(t, 0, snap[AntiDebug])
	require.Len(t, snap, len(Keys()))
}

func TestRecorder_TwoInstancesIndependent(t *testing.T) {
	a := New()
	b := New()
	a.Inc(Cycles)
	require.EqualValues(t, 1, a.Snapshot()[Cycles])
	require.EqualValues(t, 0, b.Snapshot()[Cycles])
}
