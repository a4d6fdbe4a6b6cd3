package frames

import (
	"rtb-engine/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHeader = Header{TxID: 42, Src: models.PeerAddress(0x0001), Dst: models.PeerAddress(0xBEEF)}

func TestRangeRequestLayout(t *testing.T) {
	power := uint8(7)
	frame := &RangeRequest{
		Header:        testHeader,
		Method:        models.MethodPMU233R,
		Config:        PmuConfig{FreqStart: 2403, FreqStep: 2, FreqStop: 2443},
		Caps:          CapInitiatorAntennaDiv,
		TransmitPower: &power,
	}

	data, err := Encode(frame)
	require.NoError(t, err)

	assert.Equal(t, []byte("RTB"), data[:3])
	assert.Equal(t, byte(CmdRangeRequest), data[3])
	assert.Equal(t, byte(42), data[4])
	// payload: version, method, fstart LE, fstep, fstop LE, caps, IE
	assert.Equal(t, []byte{0x01, 0x01, 0x63, 0x09, 0x02, 0x8B, 0x09, 0x01, 0x01, 0x07}, data[headerLen:])

	decoded, err := Decode(data)
	require.NoError(t, err)

	request, ok := decoded.(*RangeRequest)
	require.True(t, ok)
	assert.Equal(t, testHeader, request.Header)
	assert.Equal(t, ProtocolVersion, request.Version)
	assert.Equal(t, frame.Config, request.Config)
	assert.True(t, request.Caps.Has(CapInitiatorAntennaDiv))
	assert.False(t, request.Caps.Has(CapReflectorAntennaDiv))
	require.NotNil(t, request.TransmitPower)
	assert.Equal(t, uint8(7), *request.TransmitPower)
}

func TestRangeRequestWithoutTransmitPower(t *testing.T) {
	data, err := Encode(RangeRequest{Header: testHeader, Method: models.MethodPMU233R})
	require.NoError(t, err)
	assert.Len(t, data, headerLen+8)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Nil(t, decoded.(*RangeRequest).TransmitPower)
}

func TestRangeAnswer(t *testing.T) {
	frame := &RangeAnswer{
		Header:   testHeader,
		Accepted: false,
		Reason:   RejectBusy,
		Method:   models.MethodPMU233R,
		Config:   PmuConfig{FreqStart: 2403, FreqStep: 1, FreqStop: 2480},
	}

	data, err := Encode(frame)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, frame, decoded)
}

func TestRemoteFrames(t *testing.T) {
	request := &RemoteRequest{
		Header:    testHeader,
		Reflector: models.PeerAddress(0x00124B0001020304),
		Method:    models.MethodPMU233R,
		Caps:      CapReflectorAntennaDiv,
		Config:    PmuConfig{FreqStart: 2403, FreqStep: 2, FreqStop: 2443},
	}
	data, err := Encode(request)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, request, decoded)

	confirm := &RemoteConfirm{
		Header:    testHeader,
		Status:    models.StatusSuccess,
		Reflector: request.Reflector,
		Distance:  1234,
		Quality:   88,
		Antennas: []AntennaResult{
			{Antenna: 0, Distance: 1230, Quality: 90},
			{Antenna: 1, Distance: 1238, Quality: 86},
		},
	}
	data, err = Encode(confirm)
	require.NoError(t, err)
	decoded, err = Decode(data)
	require.NoError(t, err)
	assert.Equal(t, confirm, decoded)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte("RTB"))
	assert.ErrorIs(t, err, ErrShortFrame)

	valid, err := Encode(&RangeAnswer{Header: testHeader, Accepted: true})
	require.NoError(t, err)

	bad := append([]byte(nil), valid...)
	bad[0] = 'X'
	_, err = Decode(bad)
	assert.ErrorIs(t, err, ErrBadMagic)

	bad = append([]byte(nil), valid...)
	bad[3] = 0x7F
	_, err = Decode(bad)
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = Decode(valid[:len(valid)-1])
	assert.ErrorIs(t, err, ErrShortFrame)

	_, err = Decode(append(valid, 0x00))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncodeRejectsTooManyAntennas(t *testing.T) {
	_, err := Encode(&RemoteConfirm{Header: testHeader, Antennas: make([]AntennaResult, 5)})
	assert.ErrorIs(t, err, ErrMalformed)
}
