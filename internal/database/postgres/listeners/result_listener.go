package listeners

import (
	"context"
	"fmt"
	"github.com/rs/zerolog"
	"rtb-engine/internal/interfaces"
	"rtb-engine/internal/models"
	"rtb-engine/internal/mq"
)

type ResultClearer interface {
	ClearResult(peer models.PeerAddress, origin models.Origin) error
}

// ResultTableListener republishes changes of the stored results as MQTT
// events and drops the retained result topic when a row is deleted.
type ResultTableListener struct {
	*BaseTableListener
	logger       zerolog.Logger
	mqttClient   interfaces.IMqClient
	topicManager *mq.TopicManager
	clearer      ResultClearer
}

func NewResultTableListener(
	logger zerolog.Logger,
	mqttClient interfaces.IMqClient,
	topicManager *mq.TopicManager,
	clearer ResultClearer,
) *ResultTableListener {
	return &ResultTableListener{
		BaseTableListener: NewBaseTableListener(models.RangingResultTable),
		logger:            logger,
		mqttClient:        mqttClient,
		topicManager:      topicManager,
		clearer:           clearer,
	}
}

func (l *ResultTableListener) HandleChange(ctx context.Context, event *interfaces.TableChangeEvent) error {
	l.logger.Debug().
		Str("operation", string(event.Operation)).
		Str("table", event.Table).
		Time("timestamp", event.Timestamp).
		Msg("Result table change detected")

	switch event.Operation {
	case interfaces.InsertOperation, interfaces.UpdateOperation:
		return l.publish(event, event.NewData)
	case interfaces.DeleteOperation:
		if err := l.publish(event, event.OldData); err != nil {
			return err
		}
		return l.clear(event.OldData)
	default:
		return fmt.Errorf("unknown operation: %s", event.Operation)
	}
}

func (l *ResultTableListener) publish(event *interfaces.TableChangeEvent, row map[string]interface{}) error {
	peer, origin, err := rowKey(row)
	if err != nil {
		return err
	}

	topic := l.topicManager.EventTopic(event.Table, string(event.Operation))
	if err := l.mqttClient.PublishJson(topic, map[string]interface{}{
		"peer":      peer.String(),
		"origin":    origin,
		"row":       row,
		"timestamp": event.Timestamp,
	}); err != nil {
		l.logger.Error().Err(err).
			Str("topic", topic).
			Msg("Failed to publish result change event")
	}

	return nil
}

func (l *ResultTableListener) clear(row map[string]interface{}) error {
	peer, origin, err := rowKey(row)
	if err != nil {
		return err
	}

	if err := l.clearer.ClearResult(peer, origin); err != nil {
		return fmt.Errorf("failed to clear retained result of %s: %w", peer, err)
	}

	l.logger.Info().
		Str("peer", peer.String()).
		Str("origin", string(origin)).
		Msg("Stored result deleted, retained result cleared")

	return nil
}

func rowKey(row map[string]interface{}) (models.PeerAddress, models.Origin, error) {
	rawPeer, _ := row["peer"].(string)
	rawOrigin, _ := row["origin"].(string)

	peer, err := models.ParsePeerAddress(rawPeer)
	if err != nil {
		return 0, "", fmt.Errorf("result row without valid peer: %w", err)
	}

	origin := models.Origin(rawOrigin)
	if !origin.Valid() {
		return 0, "", fmt.Errorf("result row with unknown origin %q", rawOrigin)
	}

	return peer, origin, nil
}

var _ interfaces.ITableListener = (*ResultTableListener)(nil)
