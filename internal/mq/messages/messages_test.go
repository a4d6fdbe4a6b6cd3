package messages

import (
	"rtb-engine/internal/models"
	"rtb-engine/internal/ranging"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSamples(t *testing.T) {
	samples, err := DecodeSamples([]byte(`{"sequence":4,"antenna":1,"frequency_mhz":2411,"phase":-1.5,"amplitude":0.8}`))
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, models.PmuSample{Sequence: 4, Antenna: 1, Frequency: 2411, Phase: -1.5, Amplitude: 0.8}, samples[0])

	samples, err = DecodeSamples([]byte("\n[{\"sequence\":1},{\"sequence\":2}]"))
	require.NoError(t, err)
	assert.Len(t, samples, 2)

	_, err = DecodeSamples([]byte("   "))
	assert.Error(t, err)
	_, err = DecodeSamples([]byte(`[{"sequence":"x"}]`))
	assert.Error(t, err)
}

func TestRangeRequestDefaults(t *testing.T) {
	dto := RangeRequestDto{RequestID: "r", Peer: "0x0A01"}

	req, err := dto.ToModel()
	require.NoError(t, err)
	assert.Equal(t, models.PeerAddress(0x0A01), req.Peer)
	assert.Zero(t, req.Initiator)
	assert.Zero(t, req.Method)
	assert.Nil(t, req.Config)
}

func TestRangeRequestInvalid(t *testing.T) {
	for name, dto := range map[string]RangeRequestDto{
		"peer":      {Peer: ""},
		"initiator": {Peer: "0a01", Initiator: "g"},
		"method":    {Peer: "0a01", Method: "tof"},
	} {
		_, err := dto.ToModel()
		assert.ErrorIs(t, err, ranging.ErrInvalidParameter, name)
	}
}

func TestResetRequest(t *testing.T) {
	req, err := (&ResetRequestDto{RequestID: "x", Peer: "0a01"}).ToModel()
	require.NoError(t, err)
	require.NotNil(t, req.Peer)
	assert.Equal(t, models.PeerAddress(0x0A01), *req.Peer)

	_, err = (&ResetRequestDto{Peer: "-"}).ToModel()
	assert.ErrorIs(t, err, ranging.ErrInvalidParameter)
}
