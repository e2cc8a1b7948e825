package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kfrancois/fieldsync/core/metrics"
	"github.com/kfrancois/fieldsync/infra/logger"
)

// InfluxSink writes sync activity to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.SyncSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordFetch writes a schedule fetch event.
func (s *InfluxSink) RecordFetch(ev coremetrics.FetchEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_fetch").
		AddTag("company_id", ev.CompanyID).
		AddTag("success", strconv.FormatBool(ev.Err == nil)).
		AddTag("component", "sync_controller").
		AddField("jobs", ev.Jobs).
		AddField("latency_ms", ev.Latency.Seconds()*1000).
		AddField("window_start", ev.Range.Start.Format(time.RFC3339)).
		AddField("window_end", ev.Range.End.Format(time.RFC3339)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordFeedEvent writes a change-feed event outcome.
func (s *InfluxSink) RecordFeedEvent(ev coremetrics.FeedEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("feed_event").
		AddTag("company_id", ev.CompanyID).
		AddTag("kind", ev.Kind).
		AddTag("component", "reconciler").
		AddField("applied", ev.Applied).
		AddField("resync", ev.Resync).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordJobCount writes the current store size.
func (s *InfluxSink) RecordJobCount(count int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_store").
		AddTag("component", "store").
		AddField("jobs", count).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying InfluxDB client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
