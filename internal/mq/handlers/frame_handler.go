package handlers

import (
	"context"
	"fmt"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"rtb-engine/internal/frames"
	"rtb-engine/internal/mq"
)

// FrameHandler decodes frames received by the radio gateway.
type FrameHandler struct {
	engine       Engine
	logger       zerolog.Logger
	topicManager *mq.TopicManager
}

func NewFrameHandler(topicManager *mq.TopicManager, engine Engine, logger zerolog.Logger) *FrameHandler {
	return &FrameHandler{
		engine:       engine,
		logger:       logger,
		topicManager: topicManager,
	}
}

func (h *FrameHandler) Topics() []string {
	return []string{h.topicManager.GetRadioRxTopic()}
}

func (h *FrameHandler) Process(ctx context.Context, msg mqtt.Message) error {
	payload := msg.Payload()
	if len(payload) == 0 {
		return nil
	}

	frame, err := frames.Decode(payload)
	if err != nil {
		return fmt.Errorf("could not decode frame on %s: %w", msg.Topic(), err)
	}

	header := frame.FrameHeader()
	h.logger.Debug().
		Str("command", frame.Command().String()).
		Str("src", header.Src.String()).
		Str("dst", header.Dst.String()).
		Uint8("tx_id", header.TxID).
		Msg("Received frame")

	h.engine.HandleFrame(frame)
	return nil
}
