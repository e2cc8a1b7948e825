package metrics

import (
	"time"

	"github.com/kfrancois/fieldsync/core/timerange"
)

// FetchEvent captures one round trip to the remote schedule service.
type FetchEvent struct {
	CompanyID string
	Range     timerange.Range
	Jobs      int
	Latency   time.Duration
	Err       error
	Time      time.Time
}

// FeedEvent captures a change-feed event after reconciliation.
type FeedEvent struct {
	CompanyID string
	Kind      string
	Applied   bool
	Resync    bool
	Time      time.Time
}

// SyncSink records synchronization activity for observability purposes.
type SyncSink interface {
	RecordFetch(ev FetchEvent) error
	RecordFeedEvent(ev FeedEvent) error
	RecordJobCount(count int) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordFetch(FetchEvent) error    { return nil }
func (NopSink) RecordFeedEvent(FeedEvent) error { return nil }
func (NopSink) RecordJobCount(int) error        { return nil }
