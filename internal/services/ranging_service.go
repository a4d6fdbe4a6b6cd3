package services

import (
	"context"
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"rtb-engine/internal/models"
	"rtb-engine/internal/ranging"
	"sync/atomic"
	"time"
)

type ConfirmPublisher interface {
	PublishConfirm(confirm ranging.Confirm) error
	PublishResult(peer models.PeerAddress, origin models.Origin, result models.RangingResult) error
}

type HistoryWriter interface {
	WriteResult(ctx context.Context, peer models.PeerAddress, origin models.Origin, result models.RangingResult) error
}

type Broadcaster interface {
	Broadcast(v interface{}) error
}

type StoredResult struct {
	Peer   models.PeerAddress
	Origin models.Origin
	Result models.RangingResult
}

// RangingService takes confirmations off the dispatcher lanes and fans them
// out: MQTT confirm topic, retained result topic, result history and the
// websocket feed. History and feed are optional.
type RangingService struct {
	publisher ConfirmPublisher
	history   HistoryWriter
	feed      Broadcaster
	logger    zerolog.Logger

	confirms chan ranging.Confirm
	stopped  chan struct{}
	stopOnce atomic.Bool

	processed atomic.Uint64
	failed    atomic.Uint64
}

func NewRangingService(
	publisher ConfirmPublisher,
	history HistoryWriter,
	feed Broadcaster,
	queueSize int,
	logger zerolog.Logger,
) *RangingService {
	if queueSize <= 0 {
		queueSize = 1
	}

	return &RangingService{
		publisher: publisher,
		history:   history,
		feed:      feed,
		logger:    logger,
		confirms:  make(chan ranging.Confirm, queueSize),
		stopped:   make(chan struct{}),
	}
}

// HandleConfirm queues a confirmation. It only blocks while the queue is
// full and returns immediately once the service stopped.
func (s *RangingService) HandleConfirm(confirm ranging.Confirm) {
	select {
	case s.confirms <- confirm:
	case <-s.stopped:
		s.logger.Warn().
			Str("primitive", string(confirm.Primitive)).
			Str("request_id", confirm.RequestID).
			Msg("Confirmation after shutdown not delivered")
	}
}

// Run processes queued confirmations until ctx ends, then drains what is
// already queued.
func (s *RangingService) Run(ctx context.Context) error {
	for {
		select {
		case confirm := <-s.confirms:
			s.process(ctx, confirm)
		case <-ctx.Done():
			s.stop()
			s.drain()
			return nil
		}
	}
}

func (s *RangingService) stop() {
	if s.stopOnce.CompareAndSwap(false, true) {
		close(s.stopped)
	}
}

func (s *RangingService) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case confirm := <-s.confirms:
			s.process(ctx, confirm)
		default:
			return
		}
	}
}

func (s *RangingService) process(ctx context.Context, confirm ranging.Confirm) {
	if err := s.ProcessConfirm(ctx, confirm); err != nil {
		s.failed.Add(1)
		s.logger.Error().Err(err).
			Str("primitive", string(confirm.Primitive)).
			Str("request_id", confirm.RequestID).
			Msg("Could not deliver confirmation")
		return
	}
	s.processed.Add(1)
}

// ProcessConfirm delivers a single confirmation synchronously.
func (s *RangingService) ProcessConfirm(ctx context.Context, confirm ranging.Confirm) error {
	var errs []error

	if err := s.publisher.PublishConfirm(confirm); err != nil {
		errs = append(errs, err)
	}

	if s.feed != nil {
		if err := s.feed.Broadcast(confirm); err != nil {
			errs = append(errs, fmt.Errorf("feed: %w", err))
		}
	}

	if stored, ok := storedResult(confirm); ok {
		if err := s.publisher.PublishResult(stored.Peer, stored.Origin, stored.Result); err != nil {
			errs = append(errs, err)
		}

		if s.history != nil {
			if err := s.history.WriteResult(ctx, stored.Peer, stored.Origin, stored.Result); err != nil {
				errs = append(errs, fmt.Errorf("history: %w", err))
			}
		}

		s.logger.Info().
			Str("peer", stored.Peer.String()).
			Str("origin", string(stored.Origin)).
			Float64("distance", stored.Result.Distance).
			Uint8("quality", stored.Result.Quality).
			Msg("Ranging result published")
	}

	return errors.Join(errs...)
}

// Republish publishes previously stored results as retained messages, so
// subscribers see them after a restart.
func (s *RangingService) Republish(results []StoredResult) error {
	var errs []error
	for _, stored := range results {
		if err := s.publisher.PublishResult(stored.Peer, stored.Origin, stored.Result); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Info().
		Int("results", len(results)).
		Int("failed", len(errs)).
		Msg("Republished stored results")

	return errors.Join(errs...)
}

// Stats returns how many confirmations were delivered and how many failed.
func (s *RangingService) Stats() (processed, failed uint64) {
	return s.processed.Load(), s.failed.Load()
}

// storedResult reports the result a successful range confirmation put into
// the result store.
func storedResult(confirm ranging.Confirm) (StoredResult, bool) {
	if confirm.Primitive != ranging.PrimitiveRange || confirm.Status != models.StatusSuccess {
		return StoredResult{}, false
	}
	if confirm.Result == nil || confirm.Peer == nil {
		return StoredResult{}, false
	}

	origin := confirm.Origin
	if !origin.Valid() {
		origin = models.OriginLocal
	}

	return StoredResult{Peer: *confirm.Peer, Origin: origin, Result: *confirm.Result}, true
}
