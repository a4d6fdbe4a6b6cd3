package mq

import (
	"fmt"
	"github.com/rs/zerolog"
	"rtb-engine/internal/frames"
	"rtb-engine/internal/interfaces"
	"rtb-engine/internal/ranging"
	"sync"
)

// Radio bridges the engine to the radio gateway. Each frame is published as
// its binary encoding to the tx topic of the destination peer.
type Radio struct {
	client       interfaces.IMqClient
	topicManager *TopicManager
	logger       zerolog.Logger
	wg           sync.WaitGroup
}

func NewRadio(client interfaces.IMqClient, topicManager *TopicManager, logger zerolog.Logger) *Radio {
	return &Radio{
		client:       client,
		topicManager: topicManager,
		logger:       logger.With().Str("component", "radio").Logger(),
	}
}

func (r *Radio) SendFrame(frame frames.Frame, done func(error)) {
	payload, err := frames.Encode(frame)
	if err != nil {
		done(fmt.Errorf("encode %s: %w", frame.Command(), err))
		return
	}

	header := frame.FrameHeader()
	topic := r.topicManager.RadioTxTopic(header.Dst.String())

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		err := r.client.Publish(topic, payload)
		if err != nil {
			r.logger.Warn().Err(err).
				Str("topic", topic).
				Str("command", frame.Command().String()).
				Msg("Frame transmission failed")
		} else {
			r.logger.Debug().
				Str("topic", topic).
				Str("command", frame.Command().String()).
				Uint8("tx_id", header.TxID).
				Msg("Frame transmitted")
		}
		done(err)
	}()
}

// Wait blocks until every pending transmission has completed.
func (r *Radio) Wait() {
	r.wg.Wait()
}

var _ ranging.Radio = (*Radio)(nil)
