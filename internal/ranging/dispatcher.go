package ranging

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"rtb-engine/internal/frames"
	"rtb-engine/internal/models"
	"rtb-engine/internal/pib"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var errClosed = errors.New("dispatcher is closed")

type Options struct {
	LocalAddress models.PeerAddress
	// ResponseTimeout bounds the wait for a range or remote answer.
	ResponseTimeout time.Duration
	// MeasurementWindow is the span in which PMU samples are accepted.
	MeasurementWindow time.Duration
	// MeasurementGuard is added to the window before a measurement times out.
	MeasurementGuard time.Duration
	MinSamples       int
	DefaultStrategy  Strategy
	Strategies       map[models.Method]Strategy
	AntennaThreshold float64
	DQFThreshold     uint8
	QualityScale     float64
	StoreTimeout     time.Duration
}

func DefaultOptions() Options {
	return Options{
		ResponseTimeout:   500 * time.Millisecond,
		MeasurementWindow: time.Second,
		MeasurementGuard:  250 * time.Millisecond,
		MinSamples:        5,
		DefaultStrategy:   averageStrategy{},
		AntennaThreshold:  0.5,
		DQFThreshold:      10,
		QualityScale:      1.0,
		StoreTimeout:      5 * time.Second,
	}
}

type Option func(*Dispatcher)

func WithClock(clock Clock) Option {
	return func(d *Dispatcher) {
		d.clock = clock
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = recorder
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// Dispatcher owns every ranging session of this node. Request primitives,
// radio events and timer expiries are turned into events on the lane of the
// peer they concern.
type Dispatcher struct {
	opts     Options
	pib      *pib.PIB
	radio    Radio
	store    ResultStore
	confirm  ConfirmHandler
	clock    Clock
	recorder Recorder
	logger   zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	mu         sync.Mutex
	sessions   map[models.PeerAddress]*Session
	generation uint64
	closed     bool

	nextTxID atomic.Uint32

	laneMu  sync.Mutex
	lanes   map[models.PeerAddress]*lane
	running int
	idle    *sync.Cond
}

func NewDispatcher(opts Options, p *pib.PIB, radio Radio, store ResultStore, confirm ConfirmHandler, options ...Option) *Dispatcher {
	defaults := DefaultOptions()
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = defaults.ResponseTimeout
	}
	if opts.MeasurementWindow <= 0 {
		opts.MeasurementWindow = defaults.MeasurementWindow
	}
	if opts.MeasurementGuard < 0 {
		opts.MeasurementGuard = 0
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = defaults.MinSamples
	}
	if opts.DefaultStrategy == nil {
		opts.DefaultStrategy = defaults.DefaultStrategy
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaults.StoreTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		opts:     opts,
		pib:      p,
		radio:    radio,
		store:    store,
		confirm:  confirm,
		clock:    SystemClock(),
		recorder: nopRecorder{},
		logger:   zerolog.Nop(),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[models.PeerAddress]*Session),
		lanes:    make(map[models.PeerAddress]*lane),
	}
	d.idle = sync.NewCond(&d.laneMu)
	for _, option := range options {
		option(d)
	}

	return d
}

// RangeRequest starts a ranging session and returns the request id. Exactly
// one range confirmation follows, immediately for rejected requests.
func (d *Dispatcher) RangeRequest(req RangeRequest) string {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	if err := d.startRange(req, nil); err != nil {
		confirm := Confirm{
			Primitive: PrimitiveRange,
			RequestID: req.RequestID,
			Status:    StatusFromError(err),
			Peer:      peerRef(req.Peer),
			Origin:    models.OriginLocal,
			Reason:    err.Error(),
		}
		if d.isRemote(req) {
			confirm.Origin = models.OriginRemote
		}
		d.emit(confirm)
	}

	return req.RequestID
}

func (d *Dispatcher) isRemote(req RangeRequest) bool {
	return req.Initiator != 0 && req.Initiator != d.opts.LocalAddress
}

func (d *Dispatcher) startRange(req RangeRequest, coordinator *coordinatorRef) error {
	if req.Peer == 0 || req.Peer == d.opts.LocalAddress || req.Peer == models.BroadcastAddress {
		return fmt.Errorf("%w: peer %s cannot be ranged", ErrInvalidParameter, req.Peer)
	}

	role := models.RoleInitiator
	key := req.Peer
	if coordinator == nil && d.isRemote(req) {
		if req.Initiator == req.Peer || req.Initiator == models.BroadcastAddress {
			return fmt.Errorf("%w: initiator %s cannot range %s", ErrInvalidParameter, req.Initiator, req.Peer)
		}
		role = models.RoleCoordinator
		key = req.Initiator
	}

	values := d.pib.SnapshotFor(req.Peer)
	if !values.RangingEnabled {
		return ErrUnsupportedRanging
	}
	if req.Method != 0 && req.Method != values.RangingMethod {
		return fmt.Errorf("%w: method %s not supported", ErrInvalidParameter, req.Method)
	}
	if req.Config != nil {
		values = req.Config.Apply(values)
	}
	if err := values.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	var caps frames.Caps
	if values.EnableAntennaDiv {
		caps |= frames.CapInitiatorAntennaDiv
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errClosed
	}
	if _, busy := d.sessions[key]; busy {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBusy, key)
	}

	d.generation++
	s := &Session{
		peer:        key,
		role:        role,
		requestID:   req.RequestID,
		txID:        uint8(d.nextTxID.Add(1)),
		values:      values,
		caps:        caps,
		startedAt:   d.clock.Now(),
		coordinator: coordinator,
		state:       StateIdle,
		generation:  d.generation,
	}
	if role == models.RoleCoordinator {
		s.reflector = req.Peer
	}
	if err := s.transition(StateRequested); err != nil {
		d.mu.Unlock()
		return err
	}
	d.sessions[key] = s
	active := len(d.sessions)
	d.mu.Unlock()

	d.recorder.SessionStarted(role)
	d.recorder.ActiveSessions(active)

	d.logger.Info().
		Str("peer", key.String()).
		Str("role", string(role)).
		Str("request_id", req.RequestID).
		Uint8("txid", s.txID).
		Msg("Ranging session requested")

	d.post(key, func() { d.sendRequest(s) })
	return nil
}

func (d *Dispatcher) sendRequest(s *Session) {
	if !d.alive(s) {
		return
	}

	header := frames.Header{TxID: s.txID, Src: d.opts.LocalAddress, Dst: s.peer}

	var frame frames.Frame
	switch s.role {
	case models.RoleCoordinator:
		frame = &frames.RemoteRequest{
			Header:    header,
			Reflector: s.reflector,
			Method:    s.values.RangingMethod,
			Caps:      s.caps,
			Config:    frames.ConfigFromValues(s.values),
		}
	default:
		request := &frames.RangeRequest{
			Header:  header,
			Version: frames.ProtocolVersion,
			Method:  s.values.RangingMethod,
			Config:  frames.ConfigFromValues(s.values),
			Caps:    s.caps,
		}
		if s.values.ProvideRangingTransmitPower {
			power := s.values.TransmitPower
			request.TransmitPower = &power
		}
		frame = request
	}

	d.armTimer(s, d.opts.ResponseTimeout)
	d.radio.SendFrame(frame, func(err error) {
		d.post(s.peer, func() { d.onRequestSent(s, err) })
	})
}

func (d *Dispatcher) onRequestSent(s *Session, err error) {
	if !d.alive(s) || s.state != StateRequested {
		return
	}
	if err != nil {
		d.finish(s, StateFailed, models.StatusFailed, nil, fmt.Sprintf("sending request failed: %v", err))
		return
	}

	d.transition(s, StateAwaitingRemote)
	d.armTimer(s, d.opts.ResponseTimeout)
}

// HandleFrame routes a received frame to the lane of its sender.
func (d *Dispatcher) HandleFrame(frame frames.Frame) {
	header := frame.FrameHeader()
	if header.Dst != d.opts.LocalAddress && header.Dst != models.BroadcastAddress {
		d.discard(frame, "not addressed to this node")
		return
	}
	if header.Src == d.opts.LocalAddress {
		d.discard(frame, "sent by this node")
		return
	}

	d.post(header.Src, func() {
		switch f := frame.(type) {
		case *frames.RangeAnswer:
			d.onRangeAnswer(f)
		case *frames.RangeRequest:
			d.onRangeRequestFrame(f)
		case *frames.RemoteRequest:
			d.onRemoteRequest(f)
		case *frames.RemoteConfirm:
			d.onRemoteConfirm(f)
		default:
			d.discard(frame, "unexpected frame type")
		}
	})
}

func (d *Dispatcher) onRangeAnswer(f *frames.RangeAnswer) {
	s := d.current(f.Src)
	if s == nil || s.role != models.RoleInitiator || s.txID != f.TxID ||
		(s.state != StateRequested && s.state != StateAwaitingRemote) {
		d.discard(f, "no matching session")
		return
	}

	if !f.Accepted {
		d.finish(s, StateFailed, statusForReject(f.Reason), nil, "rejected by peer: "+f.Reason.String())
		return
	}

	// the answer may overtake the transmit confirmation of our request
	if s.state == StateRequested {
		d.transition(s, StateAwaitingRemote)
	}
	d.startMeasuring(s, f.Caps)
}

func (d *Dispatcher) startMeasuring(s *Session, peerCaps frames.Caps) {
	if err := d.transition(s, StateMeasuring); err != nil {
		return
	}
	s.peerCaps = peerCaps
	s.aggregator = NewAggregator(d.clock.Now(), d.opts.MeasurementWindow)
	d.armTimer(s, d.opts.MeasurementWindow+d.opts.MeasurementGuard)

	d.logger.Debug().
		Str("peer", s.peer.String()).
		Str("role", string(s.role)).
		Int("antennas", s.values.AntennaCount(peerCaps.Has(frames.CapReflectorAntennaDiv))).
		Msg("Measurement window opened")
}

func (d *Dispatcher) onRangeRequestFrame(f *frames.RangeRequest) {
	values := d.pib.SnapshotFor(f.Src)

	reason := frames.RejectNone
	switch {
	case !values.RangingEnabled:
		reason = frames.RejectRangingDisabled
	case f.Version != frames.ProtocolVersion:
		reason = frames.RejectUnsupportedVersion
	case f.Method != values.RangingMethod:
		reason = frames.RejectUnsupportedMethod
	default:
		values = f.Config.Apply(values)
		if err := values.Validate(); err != nil {
			reason = frames.RejectInvalidConfig
		}
	}

	caps := f.Caps & frames.CapInitiatorAntennaDiv
	if values.EnableAntennaDiv {
		caps |= frames.CapReflectorAntennaDiv
	}

	answer := &frames.RangeAnswer{
		Header:   frames.Header{TxID: f.TxID, Src: d.opts.LocalAddress, Dst: f.Src},
		Accepted: reason == frames.RejectNone,
		Reason:   reason,
		Method:   values.RangingMethod,
		Caps:     caps,
		Config:   f.Config,
	}

	if !answer.Accepted {
		d.sendReject(answer)
		return
	}

	d.mu.Lock()
	if existing, busy := d.sessions[f.Src]; busy || d.closed {
		d.mu.Unlock()
		if busy && existing.role == models.RoleReflector && existing.txID == f.TxID {
			d.discard(f, "retransmitted range request")
			return
		}
		answer.Accepted = false
		answer.Reason = frames.RejectBusy
		d.sendReject(answer)
		return
	}

	// A reflector session begins at the accepted request.
	d.generation++
	s := &Session{
		peer:       f.Src,
		role:       models.RoleReflector,
		txID:       f.TxID,
		values:     values,
		caps:       caps,
		peerCaps:   f.Caps,
		startedAt:  d.clock.Now(),
		state:      StateRequested,
		generation: d.generation,
	}
	d.sessions[f.Src] = s
	active := len(d.sessions)
	d.mu.Unlock()

	d.recorder.SessionStarted(models.RoleReflector)
	d.recorder.ActiveSessions(active)

	d.logger.Info().
		Str("peer", f.Src.String()).
		Uint8("txid", f.TxID).
		Msg("Accepting range request as reflector")

	d.armTimer(s, d.opts.ResponseTimeout)
	d.radio.SendFrame(answer, func(err error) {
		d.post(s.peer, func() { d.onAnswerSent(s, err) })
	})
}

func (d *Dispatcher) sendReject(answer *frames.RangeAnswer) {
	d.logger.Info().
		Str("peer", answer.Dst.String()).
		Uint8("txid", answer.TxID).
		Str("reason", answer.Reason.String()).
		Msg("Rejecting range request")

	d.radio.SendFrame(answer, d.logSendError(answer))
}

func (d *Dispatcher) onAnswerSent(s *Session, err error) {
	if !d.alive(s) || s.state != StateRequested {
		return
	}
	if err != nil {
		d.finish(s, StateFailed, models.StatusFailed, nil, fmt.Sprintf("sending answer failed: %v", err))
		return
	}
	d.startMeasuring(s, s.peerCaps)
}

func (d *Dispatcher) onRemoteRequest(f *frames.RemoteRequest) {
	config := f.Config
	req := RangeRequest{
		RequestID: uuid.NewString(),
		Peer:      f.Reflector,
		Method:    f.Method,
		Config:    &config,
	}

	if err := d.startRange(req, &coordinatorRef{address: f.Src, txID: f.TxID}); err != nil {
		d.logger.Warn().Err(err).
			Str("coordinator", f.Src.String()).
			Str("reflector", f.Reflector.String()).
			Msg("Cannot range on behalf of coordinator")
		d.replyRemote(coordinatorRef{address: f.Src, txID: f.TxID}, f.Reflector, StatusFromError(err), nil)
	}
}

func (d *Dispatcher) onRemoteConfirm(f *frames.RemoteConfirm) {
	s := d.current(f.Src)
	if s == nil || s.role != models.RoleCoordinator || s.txID != f.TxID || s.reflector != f.Reflector ||
		(s.state != StateRequested && s.state != StateAwaitingRemote) {
		d.discard(f, "no matching session")
		return
	}
	if s.state == StateRequested {
		d.transition(s, StateAwaitingRemote)
	}

	if f.Status != models.StatusSuccess {
		to := StateFailed
		if f.Status == models.StatusTimedOut {
			to = StateTimedOut
		}
		d.finish(s, to, f.Status, nil, "remote initiator reported "+f.Status.String())
		return
	}
	if f.Distance == models.InvalidDistance {
		d.finish(s, StateFailed, models.StatusFailed, nil, "remote initiator reported an invalid distance")
		return
	}

	result := models.RangingResult{
		Distance:   float64(f.Distance) / 100,
		Quality:    f.Quality,
		Method:     s.values.RangingMethod,
		Strategy:   "remote",
		MeasuredAt: d.clock.Now(),
	}
	if s.values.ProvideAntennaDivResults {
		for _, antenna := range f.Antennas {
			result.Antennas = append(result.Antennas, models.AntennaEstimate{
				Antenna:  antenna.Antenna,
				Distance: float64(antenna.Distance) / 100,
				Quality:  antenna.Quality,
			})
		}
	}

	d.complete(s, result)
}

// HandlePmuSample hands a sample reported by the radio to the measuring
// session of peer.
func (d *Dispatcher) HandlePmuSample(peer models.PeerAddress, sample models.PmuSample) {
	receivedAt := d.clock.Now()
	d.post(peer, func() {
		s := d.current(peer)
		if s == nil || s.state != StateMeasuring || s.aggregator == nil {
			d.recorder.FrameDiscarded("sample without measuring session")
			d.logger.Debug().
				Str("peer", peer.String()).
				Uint16("sequence", sample.Sequence).
				Msg("Dropping PMU sample without measuring session")
			return
		}

		verdict := s.aggregator.Add(sample, receivedAt)
		d.recorder.SampleVerdict(verdict)
		if verdict != Accepted {
			d.logger.Debug().
				Str("peer", peer.String()).
				Uint16("sequence", sample.Sequence).
				Str("verdict", verdict.String()).
				Msg("PMU sample dropped")
		}
	})
}

// HandlePmuComplete closes the measurement window of peer's session.
func (d *Dispatcher) HandlePmuComplete(peer models.PeerAddress, txID uint8) {
	d.post(peer, func() {
		s := d.current(peer)
		if s == nil || s.state != StateMeasuring || s.txID != txID {
			d.recorder.FrameDiscarded("completion without measuring session")
			d.logger.Warn().
				Str("peer", peer.String()).
				Uint8("txid", txID).
				Msg("Discarding PMU completion without matching session")
			return
		}

		if s.role == models.RoleReflector {
			d.finish(s, StateCompleted, models.StatusSuccess, nil, "")
			return
		}
		d.reduce(s)
	})
}

func (d *Dispatcher) reduce(s *Session) {
	accepted := s.aggregator.Accepted()
	if accepted < d.opts.MinSamples {
		d.finish(s, StateFailed, models.StatusInsufficientSamples, nil,
			fmt.Sprintf("%d samples collected, need %d", accepted, d.opts.MinSamples))
		return
	}

	if err := d.transition(s, StateReducing); err != nil {
		return
	}

	started := time.Now()
	result, err := s.aggregator.Reduce(d.reducerFor(s.values))
	d.recorder.ReductionDuration(time.Since(started))
	if err != nil {
		d.finish(s, StateFailed, StatusFromError(err), nil, err.Error())
		return
	}

	d.complete(s, result)
}

func (d *Dispatcher) reducerFor(values pib.Values) Reducer {
	strategy := d.opts.DefaultStrategy
	if configured, ok := d.opts.Strategies[values.RangingMethod]; ok && configured != nil {
		strategy = configured
	}

	return Reducer{
		Method:                values.RangingMethod,
		Strategy:              strategy,
		MinSamples:            d.opts.MinSamples,
		AntennaThreshold:      d.opts.AntennaThreshold,
		DQFThreshold:          d.opts.DQFThreshold,
		QualityScale:          d.opts.QualityScale,
		ProvideAntennaResults: values.ProvideAntennaDivResults,
		ApplyMinDistThreshold: values.ApplyMinDistThreshold,
	}
}

// complete stores the result and ends the session. A failing store turns the
// session into a failure so no confirmation reports an unstored result.
func (d *Dispatcher) complete(s *Session, result models.RangingResult) {
	peer, origin := s.resultKey()

	ctx, cancel := context.WithTimeout(d.ctx, d.opts.StoreTimeout)
	defer cancel()

	if err := d.store.Put(ctx, peer, origin, result); err != nil {
		d.logger.Error().Err(err).
			Str("peer", peer.String()).
			Str("origin", string(origin)).
			Msg("Could not store ranging result")
		d.finish(s, StateFailed, models.StatusFailed, nil, fmt.Sprintf("storing result failed: %v", err))
		return
	}

	d.finish(s, StateCompleted, models.StatusSuccess, &result, "")
}

func (d *Dispatcher) onTimer(s *Session, generation uint64) {
	d.mu.Lock()
	live := d.sessions[s.peer] == s && s.generation == generation
	d.mu.Unlock()
	if !live {
		d.logger.Debug().
			Str("peer", s.peer.String()).
			Msg("Ignoring stale session timer")
		return
	}

	d.logger.Warn().
		Str("peer", s.peer.String()).
		Str("role", string(s.role)).
		Str("state", s.state.String()).
		Msg("Ranging session timed out")

	d.finish(s, StateTimedOut, models.StatusTimedOut, nil, "timed out in "+s.state.String())
}

func (d *Dispatcher) armTimer(s *Session, after time.Duration) {
	s.stopTimer()

	d.mu.Lock()
	d.generation++
	s.generation = d.generation
	generation := s.generation
	d.mu.Unlock()

	s.timer = d.clock.AfterFunc(after, func() {
		d.post(s.peer, func() { d.onTimer(s, generation) })
	})
}

// finish moves s into a terminal state, releases it and emits whatever the
// session owes: a range confirmation, a remote confirm frame, or nothing for
// reflector sessions. Finishing a released session does nothing.
func (d *Dispatcher) finish(s *Session, to State, status models.Status, result *models.RangingResult, reason string) {
	s.stopTimer()

	d.mu.Lock()
	if d.sessions[s.peer] != s {
		d.mu.Unlock()
		return
	}
	if err := s.transition(to); err != nil {
		d.logger.Error().Err(err).Str("peer", s.peer.String()).Msg("Forcing session into failed state")
		s.state = StateFailed
		if status == models.StatusSuccess {
			status = models.StatusFailed
		}
		result = nil
	}
	delete(d.sessions, s.peer)
	d.generation++
	s.generation = d.generation
	active := len(d.sessions)
	d.mu.Unlock()

	s.aggregator = nil
	d.recorder.SessionFinished(s.role, s.state)
	d.recorder.ActiveSessions(active)

	d.logger.Info().
		Str("peer", s.peer.String()).
		Str("role", string(s.role)).
		Str("state", s.state.String()).
		Str("status", status.String()).
		Str("reason", reason).
		Msg("Ranging session finished")

	switch {
	case s.coordinator != nil:
		d.replyRemote(*s.coordinator, s.peer, status, result)
	case s.role == models.RoleReflector:
	default:
		peer, origin := s.resultKey()
		d.emit(Confirm{
			Primitive: PrimitiveRange,
			RequestID: s.requestID,
			Status:    status,
			Peer:      peerRef(peer),
			Origin:    origin,
			Result:    result,
			Reason:    reason,
		})
	}
}

func (d *Dispatcher) replyRemote(coordinator coordinatorRef, reflector models.PeerAddress, status models.Status, result *models.RangingResult) {
	confirm := &frames.RemoteConfirm{
		Header:    frames.Header{TxID: coordinator.txID, Src: d.opts.LocalAddress, Dst: coordinator.address},
		Status:    status,
		Reflector: reflector,
		Distance:  models.InvalidDistance,
	}
	if result != nil {
		confirm.Distance = result.DistanceCentimetres()
		confirm.Quality = result.Quality
		for _, antenna := range result.Antennas {
			if len(confirm.Antennas) == 4 {
				break
			}
			confirm.Antennas = append(confirm.Antennas, frames.AntennaResult{
				Antenna:  antenna.Antenna,
				Distance: models.RangingResult{Distance: antenna.Distance}.DistanceCentimetres(),
				Quality:  antenna.Quality,
			})
		}
	}

	d.radio.SendFrame(confirm, d.logSendError(confirm))
}

// SetRequest changes a PIB attribute, globally or for one peer. Running
// sessions keep the values they started with.
func (d *Dispatcher) SetRequest(req SetRequest) string {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	var err error
	if req.Peer != nil {
		err = d.pib.SetFor(*req.Peer, req.Attribute, req.Value)
	} else {
		err = d.pib.Set(req.Attribute, req.Value)
	}

	value := req.Value
	confirm := Confirm{
		Primitive: PrimitiveSet,
		RequestID: req.RequestID,
		Status:    StatusFromError(err),
		Peer:      req.Peer,
		Attribute: req.Attribute.String(),
		Value:     &value,
	}
	if err != nil {
		confirm.Reason = err.Error()
	}
	d.emit(confirm)

	return req.RequestID
}

func (d *Dispatcher) GetRequest(req GetRequest) string {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	var (
		value uint32
		err   error
	)
	if req.Peer != nil {
		value, err = d.pib.GetFor(*req.Peer, req.Attribute)
	} else {
		value, err = d.pib.Get(req.Attribute)
	}

	confirm := Confirm{
		Primitive: PrimitiveGet,
		RequestID: req.RequestID,
		Status:    StatusFromError(err),
		Peer:      req.Peer,
		Attribute: req.Attribute.String(),
	}
	if err != nil {
		confirm.Reason = err.Error()
	} else {
		confirm.Value = &value
	}
	d.emit(confirm)

	return req.RequestID
}

// ResetRequest terminates the sessions of one peer, or of all peers, and
// confirms once every targeted lane has processed the termination.
func (d *Dispatcher) ResetRequest(req ResetRequest) string {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	targets := d.sessionsFor(req.Peer)

	if req.RestoreDefaults {
		if req.Peer != nil {
			d.pib.ResetPeer(*req.Peer)
		} else {
			d.pib.Reset()
		}
	}

	cleared := make([]models.PeerAddress, 0, len(targets))
	for _, s := range targets {
		cleared = append(cleared, s.peer)
	}

	confirm := Confirm{
		Primitive: PrimitiveReset,
		RequestID: req.RequestID,
		Status:    models.StatusSuccess,
		Peer:      req.Peer,
		Cleared:   cleared,
	}

	if len(targets) == 0 {
		d.emit(confirm)
		return req.RequestID
	}

	var remaining atomic.Int32
	remaining.Store(int32(len(targets)))
	for _, s := range targets {
		s := s
		d.post(s.peer, func() {
			d.finish(s, StateFailed, models.StatusFailed, nil, "reset")
			if remaining.Add(-1) == 0 {
				d.emit(confirm)
			}
		})
	}

	return req.RequestID
}

func (d *Dispatcher) sessionsFor(peer *models.PeerAddress) []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()

	var targets []*Session
	if peer != nil {
		if s, ok := d.sessions[*peer]; ok {
			targets = append(targets, s)
		}
		return targets
	}

	for _, s := range d.sessions {
		targets = append(targets, s)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].peer < targets[j].peer })
	return targets
}

// Close terminates every session, waits for queued events and rejects
// further requests.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	for _, s := range d.sessionsFor(nil) {
		s := s
		d.post(s.peer, func() {
			d.finish(s, StateFailed, models.StatusFailed, nil, "shutdown")
		})
	}

	d.Flush()
	d.cancel()
}

// SessionState returns the state of peer's active session.
func (d *Dispatcher) SessionState(peer models.PeerAddress) (State, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[peer]
	if !ok {
		return StateIdle, false
	}
	return s.state, true
}

func (d *Dispatcher) Sessions() []SessionInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	infos := make([]SessionInfo, 0, len(d.sessions))
	for _, s := range d.sessions {
		infos = append(infos, SessionInfo{
			Peer:      s.peer,
			Role:      s.role,
			State:     s.state.String(),
			TxID:      s.txID,
			RequestID: s.requestID,
			StartedAt: s.startedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Peer < infos[j].Peer })
	return infos
}

func (d *Dispatcher) current(peer models.PeerAddress) *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[peer]
}

func (d *Dispatcher) alive(s *Session) bool {
	return d.current(s.peer) == s
}

func (d *Dispatcher) transition(s *Session, to State) error {
	d.mu.Lock()
	err := s.transition(to)
	d.mu.Unlock()

	if err != nil {
		d.logger.Error().Err(err).Str("peer", s.peer.String()).Msg("Rejected session transition")
	}
	return err
}

func (d *Dispatcher) emit(confirm Confirm) {
	confirm.Timestamp = d.clock.Now()
	d.recorder.Confirmed(confirm.Primitive, confirm.Status)

	event := d.logger.Info()
	if confirm.Status != models.StatusSuccess {
		event = d.logger.Warn()
	}
	event.
		Str("primitive", string(confirm.Primitive)).
		Str("request_id", confirm.RequestID).
		Str("status", confirm.Status.String()).
		Str("reason", confirm.Reason).
		Msg("Confirmation issued")

	if d.confirm != nil {
		d.confirm(confirm)
	}
}

func (d *Dispatcher) discard(frame frames.Frame, reason string) {
	header := frame.FrameHeader()
	d.recorder.FrameDiscarded(reason)
	d.logger.Warn().
		Str("command", frame.Command().String()).
		Str("src", header.Src.String()).
		Str("dst", header.Dst.String()).
		Uint8("txid", header.TxID).
		Str("reason", reason).
		Msg("Discarding frame")
}

func (d *Dispatcher) logSendError(frame frames.Frame) func(error) {
	return func(err error) {
		if err != nil {
			d.logger.Error().Err(err).
				Str("command", frame.Command().String()).
				Str("dst", frame.FrameHeader().Dst.String()).
				Msg("Could not send frame")
		}
	}
}

func statusForReject(reason frames.RejectReason) models.Status {
	switch reason {
	case frames.RejectRangingDisabled:
		return models.StatusUnsupportedRanging
	case frames.RejectBusy:
		return models.StatusBusy
	}
	return models.StatusFailed
}
