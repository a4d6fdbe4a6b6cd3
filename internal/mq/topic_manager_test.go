package mq

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicsFromBase(t *testing.T) {
	m := NewTopicManager("rtb/", zerolog.Nop())

	assert.Equal(t, "rtb", m.GetBaseTopic())
	assert.Equal(t, "rtb/v1/radio/+/rx", m.GetRadioRxTopic())
	assert.Equal(t, "rtb/v1/pmu/+/samples", m.GetPmuSamplesTopic())
	assert.Equal(t, "rtb/v1/pmu/+/complete", m.GetPmuCompleteTopic())
	assert.Equal(t, "rtb/v1/requests/+", m.GetRequestTopic())

	assert.Equal(t, "rtb/v1/radio/0a01/tx", m.RadioTxTopic("0a01"))
	assert.Equal(t, "rtb/v1/confirms/range", m.ConfirmTopic("RANGE"))
	assert.Equal(t, "rtb/v1/results/0a01/remote", m.ResultTopic("0a01", "REMOTE"))
	assert.Equal(t, "rtb/v1/events/ranging_results/insert", m.EventTopic("ranging_results", "INSERT"))
}

func TestExtractParams(t *testing.T) {
	m := NewTopicManager("site.a", zerolog.Nop())

	params, err := m.ExtractParams("site.a/v1/results/0a01/local", ResultTopicTemplate)
	require.NoError(t, err)
	assert.Equal(t, []string{"0a01", "local"}, params)

	kind, err := m.ExtractRequestKind("site.a/v1/requests/range")
	require.NoError(t, err)
	assert.Equal(t, "range", kind)

	peer, err := m.ExtractRadioPeer("site.a/v1/radio/0001/rx")
	require.NoError(t, err)
	assert.Equal(t, "0001", peer)
}

func TestExtractParamsRejectsForeignTopics(t *testing.T) {
	m := NewTopicManager("site.a", zerolog.Nop())

	for _, topic := range []string{
		"siteXa/v1/requests/range",
		"site.a/v1/requests/range/extra",
		"site.a/v1/requests/",
		"other/v1/requests/range",
	} {
		_, err := m.ExtractRequestKind(topic)
		assert.Error(t, err, topic)
	}
}
