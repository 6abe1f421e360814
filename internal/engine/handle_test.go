package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandle_ReplaceRetiresForOneTick(t *testing.T) {
	old := newFixture(t, DefaultOptions())
	old.eng.SetTarget(200)
	old.eng.SetMode(old.at(0), ModeOn)
	old.eng.Poll(old.at(1))
	require.True(t, old.heater.on)

	next := newFixture(t, DefaultOptions())
	h := NewHandle(old.eng)
	require.Same(t, old.eng, h.Current())

	h.Replace(next.eng)
	require.Same(t, next.eng, h.Current())
	require.Equal(t, 1, h.Retired())
	require.False(t, old.heater.on, "retired engine must drive its heater off")

	oldReads := old.sensor.reads
	h.Poll(next.at(2))
	require.Equal(t, 0, h.Retired())
	require.Equal(t, 1, next.sensor.reads)
	require.Equal(t, oldReads, old.sensor.reads, "retired engine is no longer polled")
}

func TestHandle_ReplaceWithSameEngineIsNoop(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	h := NewHandle(f.eng)
	h.Replace(f.eng)
	require.Equal(t, 0, h.Retired())
}

func TestHandle_ReplaceTwiceBeforePoll(t *testing.T) {
	a := newFixture(t, DefaultOptions())
	b := newFixture(t, DefaultOptions())
	c := newFixture(t, DefaultOptions())
	h := NewHandle(a.eng)
	h.Replace(b.eng)
	h.Replace(c.eng)
	require.Equal(t, 2, h.Retired())
	h.Poll(c.at(1))
	require.Equal(t, 0, h.Retired())
}
