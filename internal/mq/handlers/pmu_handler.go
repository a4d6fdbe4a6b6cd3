package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"rtb-engine/internal/models"
	"rtb-engine/internal/mq"
	"rtb-engine/internal/mq/messages"
)

// PmuHandler feeds phase samples and measurement completion events into the
// engine.
type PmuHandler struct {
	engine       Engine
	logger       zerolog.Logger
	topicManager *mq.TopicManager
}

func NewPmuHandler(topicManager *mq.TopicManager, engine Engine, logger zerolog.Logger) *PmuHandler {
	return &PmuHandler{
		engine:       engine,
		logger:       logger,
		topicManager: topicManager,
	}
}

func (h *PmuHandler) Topics() []string {
	return []string{
		h.topicManager.GetPmuSamplesTopic(),
		h.topicManager.GetPmuCompleteTopic(),
	}
}

func (h *PmuHandler) Process(ctx context.Context, msg mqtt.Message) error {
	topic := msg.Topic()

	if params, err := h.topicManager.ExtractParams(topic, mq.PmuSamplesTopicTemplate); err == nil {
		peer, err := models.ParsePeerAddress(params[0])
		if err != nil {
			return fmt.Errorf("invalid peer in topic %s: %w", topic, err)
		}
		return h.processSamples(peer, msg.Payload())
	}

	params, err := h.topicManager.ExtractParams(topic, mq.PmuCompleteTopicTemplate)
	if err != nil {
		return err
	}

	peer, err := models.ParsePeerAddress(params[0])
	if err != nil {
		return fmt.Errorf("invalid peer in topic %s: %w", topic, err)
	}

	var complete messages.CompleteMessage
	if err := json.Unmarshal(msg.Payload(), &complete); err != nil {
		return fmt.Errorf("could not parse completion for %s: %w", peer, err)
	}

	h.engine.HandlePmuComplete(peer, complete.TxID)
	return nil
}

func (h *PmuHandler) processSamples(peer models.PeerAddress, payload []byte) error {
	samples, err := messages.DecodeSamples(payload)
	if err != nil {
		return fmt.Errorf("samples for %s: %w", peer, err)
	}

	h.logger.Trace().
		Str("peer", peer.String()).
		Int("count", len(samples)).
		Msg("Received PMU samples")

	for _, sample := range samples {
		h.engine.HandlePmuSample(peer, sample)
	}
	return nil
}
