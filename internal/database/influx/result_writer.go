package influx

import (
	"context"
	"fmt"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"rtb-engine/internal/models"
)

// PointWriter is the subset of the non-blocking write API used for results.
type PointWriter interface {
	WritePoint(point *write.Point)
}

// ResultWriter appends every completed ranging result to the history bucket.
type ResultWriter struct {
	writer      PointWriter
	measurement string
	logger      zerolog.Logger
}

func NewResultWriter(writer PointWriter, measurement string, logger zerolog.Logger) *ResultWriter {
	return &ResultWriter{
		writer:      writer,
		measurement: measurement,
		logger:      logger,
	}
}

func (w *ResultWriter) WriteResult(ctx context.Context, peer models.PeerAddress, origin models.Origin, result models.RangingResult) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("result for %s not written: %w", peer, err)
	}

	timestamp := result.MeasuredAt
	if timestamp.IsZero() {
		return fmt.Errorf("result for %s has no measurement time", peer)
	}

	point := influxdb2.NewPoint(
		w.measurement,
		result.ToInfluxTags(peer, origin),
		result.ToInfluxFields(),
		timestamp,
	)

	w.writer.WritePoint(point)

	w.logger.Debug().
		Str("peer", peer.String()).
		Str("origin", string(origin)).
		Float64("distance", result.Distance).
		Msg("Added ranging result to influxDB")

	return nil
}
