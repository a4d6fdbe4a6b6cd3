package mq

import (
	"errors"
	"rtb-engine/internal/frames"
	"rtb-engine/internal/models"
	"rtb-engine/internal/mq/mqtest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRadioPublishesEncodedFrame(t *testing.T) {
	client := mqtest.NewClient()
	radio := NewRadio(client, NewTopicManager("rtb", zerolog.Nop()), zerolog.Nop())

	frame := &frames.RangeAnswer{
		Header:   frames.Header{TxID: 7, Src: 0x0001, Dst: 0x0A01},
		Accepted: true,
		Method:   models.MethodPMU233R,
		Config:   frames.PmuConfig{FreqStart: 2403, FreqStep: 2, FreqStop: 2443},
	}

	var mu sync.Mutex
	var results []error
	radio.SendFrame(frame, func(err error) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, err)
	})
	radio.Wait()

	require.Len(t, results, 1)
	assert.NoError(t, results[0])

	published := client.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "rtb/v1/radio/0000000000000a01/tx", published[0].Topic)

	decoded, err := frames.Decode(published[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, frame, decoded)
}

func TestRadioReportsPublishFailure(t *testing.T) {
	client := mqtest.NewClient()
	client.Err = errors.New("broker gone")
	radio := NewRadio(client, NewTopicManager("rtb", zerolog.Nop()), zerolog.Nop())

	done := make(chan error, 1)
	radio.SendFrame(&frames.RemoteRequest{Header: frames.Header{Src: 1, Dst: 2}, Reflector: 3}, func(err error) {
		done <- err
	})
	radio.Wait()

	assert.EqualError(t, <-done, "broker gone")
}

func TestRadioReportsEncodeFailure(t *testing.T) {
	client := mqtest.NewClient()
	radio := NewRadio(client, NewTopicManager("rtb", zerolog.Nop()), zerolog.Nop())

	frame := &frames.RemoteConfirm{
		Header:   frames.Header{Src: 1, Dst: 2},
		Antennas: make([]frames.AntennaResult, 5),
	}

	var got error
	radio.SendFrame(frame, func(err error) { got = err })

	assert.Error(t, got)
	assert.Empty(t, client.Published())
}
