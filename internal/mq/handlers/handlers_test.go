package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"rtb-engine/internal/frames"
	"rtb-engine/internal/models"
	"rtb-engine/internal/mq"
	"rtb-engine/internal/mq/mqtest"
	"rtb-engine/internal/pib"
	"rtb-engine/internal/ranging"
	"rtb-engine/internal/ranging/rangingtest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu        sync.Mutex
	ranges    []ranging.RangeRequest
	sets      []ranging.SetRequest
	gets      []ranging.GetRequest
	resets    []ranging.ResetRequest
	frames    []frames.Frame
	samples   []models.PmuSample
	completes []uint8
	peers     []models.PeerAddress
}

func (e *fakeEngine) RangeRequest(req ranging.RangeRequest) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ranges = append(e.ranges, req)
	return req.RequestID
}

func (e *fakeEngine) SetRequest(req ranging.SetRequest) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sets = append(e.sets, req)
	return req.RequestID
}

func (e *fakeEngine) GetRequest(req ranging.GetRequest) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gets = append(e.gets, req)
	return req.RequestID
}

func (e *fakeEngine) ResetRequest(req ranging.ResetRequest) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resets = append(e.resets, req)
	return req.RequestID
}

func (e *fakeEngine) HandleFrame(frame frames.Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames = append(e.frames, frame)
}

func (e *fakeEngine) HandlePmuSample(peer models.PeerAddress, sample models.PmuSample) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.peers = append(e.peers, peer)
	e.samples = append(e.samples, sample)
}

func (e *fakeEngine) HandlePmuComplete(peer models.PeerAddress, txID uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.peers = append(e.peers, peer)
	e.completes = append(e.completes, txID)
}

func topics() *mq.TopicManager {
	return mq.NewTopicManager("rtb", zerolog.Nop())
}

func request(t *testing.T, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]interface{}{"data": json.RawMessage(raw), "source": "api"})
	require.NoError(t, err)
	return payload
}

func TestFrameHandlerDecodes(t *testing.T) {
	engine := &fakeEngine{}
	handler := NewFrameHandler(topics(), engine, zerolog.Nop())
	assert.Equal(t, []string{"rtb/v1/radio/+/rx"}, handler.Topics())

	frame := &frames.RemoteRequest{
		Header:    frames.Header{TxID: 3, Src: 0x0C01, Dst: 0x0001},
		Reflector: 0x0A01,
		Method:    models.MethodPMU233R,
		Config:    frames.PmuConfig{FreqStart: 2403, FreqStep: 2, FreqStop: 2443},
	}
	payload, err := frames.Encode(frame)
	require.NoError(t, err)

	require.NoError(t, handler.Process(context.Background(), mqtest.NewMessage("rtb/v1/radio/0001/rx", payload)))
	require.Len(t, engine.frames, 1)
	assert.Equal(t, frame, engine.frames[0])
}

func TestFrameHandlerRejectsGarbage(t *testing.T) {
	engine := &fakeEngine{}
	handler := NewFrameHandler(topics(), engine, zerolog.Nop())

	err := handler.Process(context.Background(), mqtest.NewMessage("rtb/v1/radio/0001/rx", []byte("XYZ\x01")))
	assert.Error(t, err)
	assert.Empty(t, engine.frames)

	assert.NoError(t, handler.Process(context.Background(), mqtest.NewMessage("rtb/v1/radio/0001/rx", nil)))
}

func TestPmuHandlerSamples(t *testing.T) {
	engine := &fakeEngine{}
	handler := NewPmuHandler(topics(), engine, zerolog.Nop())
	ctx := context.Background()

	single := []byte(`{"sequence":1,"antenna":0,"frequency_mhz":2403,"phase":0.5}`)
	batch := []byte(` [{"sequence":2,"frequency_mhz":2405},{"sequence":3,"frequency_mhz":2407}]`)

	require.NoError(t, handler.Process(ctx, mqtest.NewMessage("rtb/v1/pmu/0a01/samples", single)))
	require.NoError(t, handler.Process(ctx, mqtest.NewMessage("rtb/v1/pmu/0a01/samples", batch)))

	require.Len(t, engine.samples, 3)
	assert.Equal(t, uint16(1), engine.samples[0].Sequence)
	assert.Equal(t, 0.5, engine.samples[0].Phase)
	assert.Equal(t, 2407.0, engine.samples[2].Frequency)
	for _, peer := range engine.peers {
		assert.Equal(t, models.PeerAddress(0x0A01), peer)
	}

	assert.Error(t, handler.Process(ctx, mqtest.NewMessage("rtb/v1/pmu/0a01/samples", []byte("{"))))
	assert.Error(t, handler.Process(ctx, mqtest.NewMessage("rtb/v1/pmu/zz/samples", single)))
}

func TestPmuHandlerComplete(t *testing.T) {
	engine := &fakeEngine{}
	handler := NewPmuHandler(topics(), engine, zerolog.Nop())

	require.NoError(t, handler.Process(context.Background(), mqtest.NewMessage("rtb/v1/pmu/0x0a02/complete", []byte(`{"txid":9}`))))

	assert.Equal(t, []uint8{9}, engine.completes)
	assert.Equal(t, []models.PeerAddress{0x0A02}, engine.peers)
}

// nodeSamples renders samples the way a radio node reports them, with an
// optional node-side timestamp.
func nodeSamples(t *testing.T, samples []models.PmuSample, stamp *time.Time) []byte {
	t.Helper()

	var reported []map[string]interface{}
	for _, sample := range samples {
		entry := map[string]interface{}{
			"sequence":      sample.Sequence,
			"antenna":       sample.Antenna,
			"frequency_mhz": sample.Frequency,
			"phase":         sample.Phase,
			"amplitude":     sample.Amplitude,
		}
		if stamp != nil {
			entry["timestamp"] = *stamp
		}
		reported = append(reported, entry)
	}
	payload, err := json.Marshal(reported)
	require.NoError(t, err)
	return payload
}

func TestPmuHandlerFeedsRangingSession(t *testing.T) {
	const (
		local = models.PeerAddress(0x0001)
		peer  = models.PeerAddress(0x0A01)
	)
	skewed := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		stamp *time.Time
	}{
		{"without timestamp", nil},
		{"node clock behind", &skewed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := rangingtest.NewManualClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
			radio := rangingtest.NewRadio()
			confirms := &rangingtest.Confirms{}

			opts := ranging.DefaultOptions()
			opts.LocalAddress = local
			dispatcher := ranging.NewDispatcher(opts, pib.New(), radio, ranging.NewMemoryStore(), confirms.Handle, ranging.WithClock(clock))
			t.Cleanup(dispatcher.Close)

			id := dispatcher.RangeRequest(ranging.RangeRequest{Peer: peer})
			dispatcher.Flush()

			var txID uint8
			for _, sent := range radio.Sent() {
				if req, ok := sent.(*frames.RangeRequest); ok {
					txID = req.TxID
				}
			}
			dispatcher.HandleFrame(&frames.RangeAnswer{
				Header:   frames.Header{TxID: txID, Src: peer, Dst: local},
				Accepted: true,
				Method:   models.MethodPMU233R,
				Config:   frames.ConfigFromValues(pib.Defaults()),
			})
			dispatcher.Flush()

			handler := NewPmuHandler(topics(), dispatcher, zerolog.Nop())
			ctx := context.Background()

			clock.Advance(100 * time.Millisecond)
			samples := rangingtest.PhaseSamples(10, 0, 1, 2403, 2, 6, time.Time{})
			require.NoError(t, handler.Process(ctx, mqtest.NewMessage("rtb/v1/pmu/0a01/samples", nodeSamples(t, samples, tc.stamp))))

			complete := []byte(fmt.Sprintf(`{"txid":%d}`, txID))
			require.NoError(t, handler.Process(ctx, mqtest.NewMessage("rtb/v1/pmu/0a01/complete", complete)))
			dispatcher.Flush()

			got := confirms.For(id)
			require.Len(t, got, 1)
			assert.Equal(t, models.StatusSuccess, got[0].Status)
			require.NotNil(t, got[0].Result)
			assert.Equal(t, 6, got[0].Result.SampleCount)
			assert.InDelta(t, 10.0, got[0].Result.Distance, 1e-6)
			assert.Equal(t, clock.Now(), got[0].Result.MeasuredAt)
		})
	}
}

func TestRequestHandlerDispatches(t *testing.T) {
	engine := &fakeEngine{}
	var rejected []ranging.Confirm
	handler := NewRequestHandler(topics(), engine, func(c ranging.Confirm) { rejected = append(rejected, c) }, zerolog.Nop())
	ctx := context.Background()

	start, step, stop := uint16(2410), uint8(1), uint16(2450)
	require.NoError(t, handler.Process(ctx, mqtest.NewMessage("rtb/v1/requests/range", request(t, map[string]interface{}{
		"request_id": "r1",
		"peer":       "0a01",
		"initiator":  "0c01",
		"method":     "pmu-233r",
		"freq_start": start,
		"freq_step":  step,
		"freq_stop":  stop,
	}))))

	value := uint32(0)
	require.NoError(t, handler.Process(ctx, mqtest.NewMessage("rtb/v1/requests/set", request(t, map[string]interface{}{
		"request_id": "s1",
		"attribute":  "RangingEnabled",
		"value":      value,
	}))))
	require.NoError(t, handler.Process(ctx, mqtest.NewMessage("rtb/v1/requests/get", request(t, map[string]interface{}{
		"request_id": "g1",
		"peer":       "0a01",
		"attribute":  "pmufreqstart",
	}))))
	require.NoError(t, handler.Process(ctx, mqtest.NewMessage("rtb/v1/requests/reset", request(t, map[string]interface{}{
		"request_id":       "x1",
		"restore_defaults": true,
	}))))

	assert.Empty(t, rejected)

	require.Len(t, engine.ranges, 1)
	assert.Equal(t, models.PeerAddress(0x0A01), engine.ranges[0].Peer)
	assert.Equal(t, models.PeerAddress(0x0C01), engine.ranges[0].Initiator)
	assert.Equal(t, models.MethodPMU233R, engine.ranges[0].Method)
	assert.Equal(t, &frames.PmuConfig{FreqStart: 2410, FreqStep: 1, FreqStop: 2450}, engine.ranges[0].Config)

	require.Len(t, engine.sets, 1)
	assert.Equal(t, pib.RangingEnabled, engine.sets[0].Attribute)
	assert.Nil(t, engine.sets[0].Peer)

	require.Len(t, engine.gets, 1)
	assert.Equal(t, pib.PMUFreqStart, engine.gets[0].Attribute)
	require.NotNil(t, engine.gets[0].Peer)

	require.Len(t, engine.resets, 1)
	assert.True(t, engine.resets[0].RestoreDefaults)
	assert.Nil(t, engine.resets[0].Peer)
}

func TestRequestHandlerRejectsMalformed(t *testing.T) {
	engine := &fakeEngine{}
	var rejected []ranging.Confirm
	handler := NewRequestHandler(topics(), engine, func(c ranging.Confirm) { rejected = append(rejected, c) }, zerolog.Nop())
	ctx := context.Background()

	cases := []struct {
		topic  string
		data   interface{}
		status models.Status
	}{
		{"rtb/v1/requests/range", map[string]interface{}{"request_id": "a", "peer": "nothex"}, models.StatusInvalidParameter},
		{"rtb/v1/requests/range", map[string]interface{}{"request_id": "b", "peer": "0a01", "freq_start": 2403}, models.StatusInvalidParameter},
		{"rtb/v1/requests/set", map[string]interface{}{"request_id": "c", "attribute": "Bogus", "value": 1}, models.StatusUnsupportedAttribute},
		{"rtb/v1/requests/set", map[string]interface{}{"request_id": "d", "attribute": "RangingEnabled"}, models.StatusInvalidParameter},
		{"rtb/v1/requests/calibrate", map[string]interface{}{"request_id": "e"}, models.StatusInvalidParameter},
	}

	for _, tc := range cases {
		require.NoError(t, handler.Process(ctx, mqtest.NewMessage(tc.topic, request(t, tc.data))))
	}

	require.Len(t, rejected, len(cases))
	for i, tc := range cases {
		assert.Equal(t, tc.status, rejected[i].Status, tc.topic)
	}
	assert.Equal(t, "a", rejected[0].RequestID)
	assert.Equal(t, ranging.PrimitiveSet, rejected[2].Primitive)
	assert.Empty(t, engine.ranges)
	assert.Empty(t, engine.sets)
}

func TestRequestHandlerIgnoresOwnMessages(t *testing.T) {
	engine := &fakeEngine{}
	handler := NewRequestHandler(topics(), engine, func(ranging.Confirm) { t.Fatal("unexpected reject") }, zerolog.Nop())

	payload := []byte(`{"data":{"request_id":"r","peer":"0a01"},"source":"RTB"}`)
	require.NoError(t, handler.Process(context.Background(), mqtest.NewMessage("rtb/v1/requests/range", payload)))
	assert.Empty(t, engine.ranges)
}
