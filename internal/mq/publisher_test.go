package mq

import (
	"encoding/json"
	"rtb-engine/internal/models"
	"rtb-engine/internal/mq/mqtest"
	"rtb-engine/internal/ranging"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishConfirm(t *testing.T) {
	client := mqtest.NewClient()
	publisher := NewPublisher(client, NewTopicManager("rtb", zerolog.Nop()), zerolog.Nop())

	peer := models.PeerAddress(0x0A01)
	require.NoError(t, publisher.PublishConfirm(ranging.Confirm{
		Primitive: ranging.PrimitiveRange,
		RequestID: "req-1",
		Status:    models.StatusTimedOut,
		Peer:      &peer,
	}))

	published := client.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "rtb/v1/confirms/range", published[0].Topic)
	assert.False(t, published[0].Retained)

	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(published[0].Payload, &envelope))
	assert.Equal(t, "TIMED_OUT", envelope.Data["status"])
	assert.Equal(t, "0000000000000a01", envelope.Data["peer"])
}

func TestPublishAndClearResult(t *testing.T) {
	client := mqtest.NewClient()
	publisher := NewPublisher(client, NewTopicManager("rtb", zerolog.Nop()), zerolog.Nop())

	peer := models.PeerAddress(0x0A01)
	require.NoError(t, publisher.PublishResult(peer, models.OriginRemote, models.RangingResult{Distance: 4.2, Quality: 90}))
	require.NoError(t, publisher.ClearResult(peer, models.OriginRemote))

	published := client.Published()
	require.Len(t, published, 2)
	for _, p := range published {
		assert.Equal(t, "rtb/v1/results/0000000000000a01/remote", p.Topic)
		assert.True(t, p.Retained)
	}
	assert.NotEmpty(t, published[0].Payload)
	assert.Empty(t, published[1].Payload)
}
