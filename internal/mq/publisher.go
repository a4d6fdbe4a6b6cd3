package mq

import (
	"fmt"
	"github.com/rs/zerolog"
	"rtb-engine/internal/interfaces"
	"rtb-engine/internal/models"
	"rtb-engine/internal/ranging"
)

type Publisher interface {
	PublishConfirm(confirm ranging.Confirm) error
	PublishResult(peer models.PeerAddress, origin models.Origin, result models.RangingResult) error
	ClearResult(peer models.PeerAddress, origin models.Origin) error
}

type PublisherImpl struct {
	client       interfaces.IMqClient
	topicManager *TopicManager
	logger       zerolog.Logger
}

func NewPublisher(client interfaces.IMqClient, topicManager *TopicManager, logger zerolog.Logger) *PublisherImpl {
	return &PublisherImpl{
		client:       client,
		topicManager: topicManager,
		logger:       logger.With().Str("component", "publisher").Logger(),
	}
}

func (p *PublisherImpl) PublishConfirm(confirm ranging.Confirm) error {
	topic := p.topicManager.ConfirmTopic(string(confirm.Primitive))

	if err := p.client.PublishJson(topic, confirm); err != nil {
		return fmt.Errorf("failed to publish %s confirm: %w", confirm.Primitive, err)
	}

	return nil
}

// PublishResult keeps the latest result per peer and origin as a retained
// message.
func (p *PublisherImpl) PublishResult(peer models.PeerAddress, origin models.Origin, result models.RangingResult) error {
	topic := p.topicManager.ResultTopic(peer.String(), string(origin))

	if err := p.client.PublishRetained(topic, result); err != nil {
		return fmt.Errorf("failed to publish result for %s: %w", peer, err)
	}

	return nil
}

func (p *PublisherImpl) ClearResult(peer models.PeerAddress, origin models.Origin) error {
	return p.client.PublishRetained(p.topicManager.ResultTopic(peer.String(), string(origin)), nil)
}

var _ Publisher = (*PublisherImpl)(nil)
