package wal

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type walMetrics struct {
	appends         metric.Int64Counter
	framesWritten   metric.Int64Counter
	recordsReplayed metric.Int64Counter
	replayStops     metric.Int64Counter
}

func newWalMetrics(meter metric.Meter) (*walMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("")
	}
	m := &walMetrics{}
	var err error
	if m.appends, err = meter.Int64Counter("kagedb.wal.appends",
		metric.WithDescription("Records durably appended to the log")); err != nil {
		return nil, fmt.Errorf("failed to create appends counter: %w", err)
	}
	if m.framesWritten, err = meter.Int64Counter("kagedb.wal.frames_written",
		metric.WithDescription("Fixed-size frames written, across all appends")); err != nil {
		return nil, fmt.Errorf("failed to create frames_written counter: %w", err)
	}
	if m.recordsReplayed, err = meter.Int64Counter("kagedb.wal.records_replayed",
		metric.WithDescription("Fully reassembled records delivered during replay")); err != nil {
		return nil, fmt.Errorf("failed to create records_replayed counter: %w", err)
	}
	if m.replayStops, err = meter.Int64Counter("kagedb.wal.replay_torn_tail_stops",
		metric.WithDescription("Replays that ended at a malformed or torn trailing frame")); err != nil {
		return nil, fmt.Errorf("failed to create replay_torn_tail_stops counter: %w", err)
	}
	return m, nil
}
