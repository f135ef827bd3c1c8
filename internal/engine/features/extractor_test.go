package features

import (
	"Go2NetSDN/internal/model"
	"Go2NetSDN/internal/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(packets, bytes uint64, dur time.Duration) model.FlowCounterSample {
	return model.FlowCounterSample{
		DPID:        1,
		Priority:    model.PriorityL2,
		Match:       model.Match{InPort: 1, EthSrc: testutil.MustMAC("00:00:00:00:00:01")},
		PacketCount: packets,
		ByteCount:   bytes,
		Duration:    dur,
	}
}

func TestCompute(t *testing.T) {
	fv := Compute(sample(100, 6400, 10*time.Second))
	assert.InDelta(t, 10.0, fv.PacketRate, 1e-9)
	assert.InDelta(t, 640.0, fv.ByteRate, 1e-9)
	assert.InDelta(t, 64.0, fv.MeanPacketSize, 1e-9)
	assert.Equal(t, []float64{10, 640, 64, 100, 6400}, fv.Values())

	zero := Compute(sample(0, 0, 0))
	assert.Zero(t, zero.PacketRate)
	assert.Zero(t, zero.ByteRate)
	assert.Zero(t, zero.MeanPacketSize)

	noDuration := Compute(sample(10, 100, 0))
	assert.Zero(t, noDuration.PacketRate)
	assert.InDelta(t, 10.0, noDuration.MeanPacketSize, 1e-9)
}

func TestExtract_SkipsAdministrativeEntries(t *testing.T) {
	e := New(0, false)
	for _, prio := range []uint16{model.PriorityTableMiss, model.PriorityMax} {
		s := sample(1000, 1000, time.Second)
		s.Priority = prio
		_, out := e.Extract(s)
		assert.Equal(t, SkippedAdministrative, out)
	}
	assert.Zero(t, e.Tracked())

	drop := sample(1000, 1000, time.Second)
	drop.Priority = model.PriorityDrop
	_, out := e.Extract(drop)
	assert.Equal(t, Emitted, out, "drop rules are classified unless skipped")

	_, out = New(0, true).Extract(drop)
	assert.Equal(t, SkippedAdministrative, out)
}

func TestExtract_Debounce(t *testing.T) {
	e := New(0, false)

	fv, out := e.Extract(sample(50, 5000, 5*time.Second))
	require.Equal(t, Emitted, out)
	assert.Equal(t, uint64(50), fv.DeltaPackets, "first sighting counts the full value")

	_, out = e.Extract(sample(50, 5000, 7*time.Second))
	assert.Equal(t, Debounced, out, "unchanged count")

	_, out = e.Extract(sample(40, 4000, 8*time.Second))
	assert.Equal(t, Debounced, out, "lower count")

	// After the reset the baseline is 40, not 50.
	fv, out = e.Extract(sample(45, 4500, 9*time.Second))
	require.Equal(t, Emitted, out)
	assert.Equal(t, uint64(5), fv.DeltaPackets)
	assert.Equal(t, uint64(500), fv.DeltaBytes)
}

func TestExtract_KeysAreIndependent(t *testing.T) {
	e := New(0, false)
	a := sample(10, 100, time.Second)
	b := sample(10, 100, time.Second)
	b.DPID = 2
	c := sample(10, 100, time.Second)
	c.Match.EthSrc = testutil.MustMAC("00:00:00:00:00:02")

	for _, s := range []model.FlowCounterSample{a, b, c} {
		_, out := e.Extract(s)
		assert.Equal(t, Emitted, out)
	}
	assert.Equal(t, 3, e.Tracked())

	e.Forget(2)
	assert.Equal(t, 2, e.Tracked())
	_, out := e.Extract(b)
	assert.Equal(t, Emitted, out, "forgotten flow is a first sighting again")
}

func TestExtract_RateGate(t *testing.T) {
	e := New(5, false)

	_, out := e.Extract(sample(4, 400, time.Second))
	assert.Equal(t, BelowRate, out)

	// The baseline still advances, so the next increase is measured from 4.
	fv, out := e.Extract(sample(60, 6000, 2*time.Second))
	require.Equal(t, Emitted, out)
	assert.Equal(t, uint64(56), fv.DeltaPackets)
	assert.InDelta(t, 30.0, fv.PacketRate, 1e-9)
}
