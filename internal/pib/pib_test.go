package pib

import (
	"rtb-engine/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	p := New()

	enabled, err := p.Get(RangingEnabled)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), enabled)

	start, _ := p.Get(PMUFreqStart)
	stop, _ := p.Get(PMUFreqStop)
	step, _ := p.Get(PMUFreqStep)
	assert.Equal(t, uint32(2403), start)
	assert.Equal(t, uint32(2443), stop)
	assert.Equal(t, uint32(2), step)

	values := p.Snapshot()
	assert.Equal(t, 2.0, values.StepMHz())
	assert.NoError(t, values.Validate())
}

func TestFrequencyBounds(t *testing.T) {
	p := New()

	assert.ErrorIs(t, p.Set(PMUFreqStart, 2300), ErrOutOfRange)
	assert.ErrorIs(t, p.Set(PMUFreqStop, 2600), ErrOutOfRange)
	assert.ErrorIs(t, p.Set(PMUFreqStart, 70000), ErrOutOfRange)

	// start must stay more than 4 MHz below stop
	assert.ErrorIs(t, p.Set(PMUFreqStart, 2439), ErrOutOfRange)
	assert.NoError(t, p.Set(PMUFreqStart, 2438))

	assert.ErrorIs(t, p.Set(PMUFreqStop, 2442), ErrOutOfRange)
	assert.NoError(t, p.Set(PMUFreqStop, 2500))

	start, _ := p.Get(PMUFreqStart)
	assert.Equal(t, uint32(2438), start)
}

func TestReadOnlyAndUnknown(t *testing.T) {
	p := New()

	assert.ErrorIs(t, p.Set(RangingMethod, 2), ErrReadOnly)
	assert.ErrorIs(t, p.Set(Attribute(99), 1), ErrUnsupportedAttribute)

	_, err := p.Get(Attribute(99))
	assert.ErrorIs(t, err, ErrUnsupportedAttribute)

	_, err = ParseAttribute("NoSuchThing")
	assert.ErrorIs(t, err, ErrUnsupportedAttribute)

	attr, err := ParseAttribute("pmufreqstart")
	require.NoError(t, err)
	assert.Equal(t, PMUFreqStart, attr)
}

func TestBooleanAttributes(t *testing.T) {
	p := New()

	assert.ErrorIs(t, p.Set(RangingEnabled, 2), ErrOutOfRange)
	require.NoError(t, p.Set(RangingEnabled, 0))
	assert.False(t, p.Snapshot().RangingEnabled)

	require.NoError(t, p.Set(ProvideAntennaDivResults, 1))
	assert.True(t, p.Snapshot().ProvideAntennaDivResults)
}

func TestSnapshotIsolation(t *testing.T) {
	p := New()
	before := p.Snapshot()

	require.NoError(t, p.Set(PMUFreqStep, 3))
	assert.Equal(t, uint8(2), before.FreqStep)
	assert.Equal(t, uint8(3), p.Snapshot().FreqStep)
}

func TestPeerOverrides(t *testing.T) {
	p := New()
	peer := models.PeerAddress(0x1234)

	require.NoError(t, p.SetFor(peer, PMUFreqStep, 1))
	assert.Equal(t, uint8(1), p.SnapshotFor(peer).FreqStep)
	assert.Equal(t, uint8(2), p.Snapshot().FreqStep)

	value, err := p.GetFor(peer, PMUFreqStep)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), value)

	p.ResetPeer(peer)
	assert.Equal(t, uint8(2), p.SnapshotFor(peer).FreqStep)
}

func TestReset(t *testing.T) {
	p := New()
	require.NoError(t, p.Set(PMUVerboseLevel, 3))
	require.NoError(t, p.SetFor(models.PeerAddress(7), DefaultAntenna, 1))

	p.Reset()

	assert.Equal(t, Defaults(), p.Snapshot())
	assert.Equal(t, Defaults(), p.SnapshotFor(models.PeerAddress(7)))
}

func TestAntennaCount(t *testing.T) {
	values := Defaults()
	assert.Equal(t, 1, values.AntennaCount(false))
	assert.Equal(t, 2, values.AntennaCount(true))

	values.EnableAntennaDiv = true
	assert.Equal(t, 2, values.AntennaCount(false))
	assert.Equal(t, 4, values.AntennaCount(true))
}
