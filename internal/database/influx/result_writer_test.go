package influx

import (
	"context"
	"rtb-engine/internal/models"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	points []*write.Point
}

func (c *capture) WritePoint(point *write.Point) {
	c.points = append(c.points, point)
}

func TestWriteResult(t *testing.T) {
	sink := &capture{}
	writer := NewResultWriter(sink, "ranging_result", zerolog.Nop())

	measuredAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result := models.RangingResult{
		Distance:    12.5,
		Quality:     87,
		Method:      models.MethodPMU233R,
		Strategy:    "median",
		SampleCount: 21,
		MeasuredAt:  measuredAt,
		Antennas: []models.AntennaEstimate{
			{Antenna: 0, Distance: 12.4, Quality: 90},
			{Antenna: 1, Distance: 12.6, Quality: 84},
		},
	}

	require.NoError(t, writer.WriteResult(context.Background(), 0x0A01, models.OriginLocal, result))
	require.Len(t, sink.points, 1)

	line := write.PointToLineProtocol(sink.points[0], time.Nanosecond)
	assert.True(t, strings.HasPrefix(line, "ranging_result,"), line)
	assert.Contains(t, line, "peer=0000000000000a01")
	assert.Contains(t, line, "origin=LOCAL")
	assert.Contains(t, line, "strategy=median")
	assert.Contains(t, line, "distance=12.5")
	assert.Contains(t, line, "antenna_1_quality=84i")
	assert.Equal(t, measuredAt, sink.points[0].Time())
}

func TestWriteResultRefusesUntimedResults(t *testing.T) {
	sink := &capture{}
	writer := NewResultWriter(sink, "ranging_result", zerolog.Nop())

	assert.Error(t, writer.WriteResult(context.Background(), 0x0A01, models.OriginLocal, models.RangingResult{Distance: 1}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, writer.WriteResult(ctx, 0x0A01, models.OriginLocal, models.RangingResult{MeasuredAt: time.Now()}))

	assert.Empty(t, sink.points)
}
