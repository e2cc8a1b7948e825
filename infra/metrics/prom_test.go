package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kfrancois/fieldsync/core/metrics"
)

func TestPromSink_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	if err := sink.RecordFetch(coremetrics.FetchEvent{Jobs: 3, Latency: 120 * time.Millisecond}); err != nil {
		t.Fatalf("record fetch: %v", err)
	}
	if err := sink.RecordFetch(coremetrics.FetchEvent{Err: errors.New("boom")}); err != nil {
		t.Fatalf("record failed fetch: %v", err)
	}
	if err := sink.RecordFeedEvent(coremetrics.FeedEvent{Kind: "update", Applied: true}); err != nil {
		t.Fatalf("record feed event: %v", err)
	}
	if err := sink.RecordJobCount(42); err != nil {
		t.Fatalf("record job count: %v", err)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{"schedule_fetches_total", "schedule_fetch_seconds", "feed_events_total", "schedule_jobs"} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestPromSink_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	// Registering twice on the same registry reuses the existing collectors.
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("second registration: %v", err)
	}
}
