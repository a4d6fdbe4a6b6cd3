package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"rtb-engine/internal/mq"
	"rtb-engine/internal/mq/messages"
	"rtb-engine/internal/ranging"
	"strings"
	"time"
)

// RequestHandler turns JSON API requests into engine primitives. Requests
// that cannot be parsed are answered through reject so every request still
// gets exactly one confirmation.
type RequestHandler struct {
	engine       Engine
	reject       ranging.ConfirmHandler
	logger       zerolog.Logger
	topicManager *mq.TopicManager
}

func NewRequestHandler(topicManager *mq.TopicManager, engine Engine, reject ranging.ConfirmHandler, logger zerolog.Logger) *RequestHandler {
	return &RequestHandler{
		engine:       engine,
		reject:       reject,
		logger:       logger,
		topicManager: topicManager,
	}
}

func (h *RequestHandler) Topics() []string {
	return []string{h.topicManager.GetRequestTopic()}
}

func (h *RequestHandler) Process(ctx context.Context, msg mqtt.Message) error {
	topic := msg.Topic()
	payload := msg.Payload()

	if len(payload) == 0 {
		return nil
	}

	kind, err := h.topicManager.ExtractRequestKind(topic)
	if err != nil {
		return err
	}

	var requestMessage messages.RequestMessage
	if err := json.Unmarshal(payload, &requestMessage); err != nil {
		return fmt.Errorf("could not parse request on %s: %w", topic, err)
	}

	if requestMessage.Source == mq.SourceName {
		h.logger.Debug().
			Str("source", requestMessage.Source).
			Msg("Ignoring own request message")
		return nil
	}

	primitive := ranging.Primitive(strings.ToUpper(kind))
	requestID, err := h.dispatch(primitive, requestMessage.Data)
	if err != nil {
		h.logger.Warn().Err(err).
			Str("primitive", string(primitive)).
			Str("request_id", requestID).
			Msg("Rejected malformed request")

		h.reject(ranging.Confirm{
			Primitive: primitive,
			RequestID: requestID,
			Status:    ranging.StatusFromError(err),
			Reason:    err.Error(),
			Timestamp: time.Now(),
		})
		return nil
	}

	h.logger.Debug().
		Str("primitive", string(primitive)).
		Str("request_id", requestID).
		Msg("Request dispatched")

	return nil
}

// dispatch returns the request id the engine will confirm, or the id of the
// malformed request together with the reason it was refused.
func (h *RequestHandler) dispatch(primitive ranging.Primitive, data json.RawMessage) (string, error) {
	switch primitive {
	case ranging.PrimitiveRange:
		var dto messages.RangeRequestDto
		if err := decode(data, &dto); err != nil {
			return "", err
		}
		req, err := dto.ToModel()
		if err != nil {
			return dto.RequestID, err
		}
		return h.engine.RangeRequest(req), nil

	case ranging.PrimitiveSet:
		var dto messages.AttributeRequestDto
		if err := decode(data, &dto); err != nil {
			return "", err
		}
		req, err := dto.ToSetRequest()
		if err != nil {
			return dto.RequestID, err
		}
		return h.engine.SetRequest(req), nil

	case ranging.PrimitiveGet:
		var dto messages.AttributeRequestDto
		if err := decode(data, &dto); err != nil {
			return "", err
		}
		req, err := dto.ToGetRequest()
		if err != nil {
			return dto.RequestID, err
		}
		return h.engine.GetRequest(req), nil

	case ranging.PrimitiveReset:
		var dto messages.ResetRequestDto
		if err := decode(data, &dto); err != nil {
			return "", err
		}
		req, err := dto.ToModel()
		if err != nil {
			return dto.RequestID, err
		}
		return h.engine.ResetRequest(req), nil
	}

	return "", fmt.Errorf("%w: unknown request kind %q", ranging.ErrInvalidParameter, primitive)
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: request without data", ranging.ErrInvalidParameter)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ranging.ErrInvalidParameter, err)
	}
	return nil
}
