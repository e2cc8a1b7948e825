package metrics

// MultiSink fans events out to several sinks. The first error is returned
// after all sinks have been attempted.
type MultiSink struct {
	Sinks []SyncSink
}

// NewMultiSink creates a MultiSink from the given sinks.
func NewMultiSink(sinks ...SyncSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordFetch(ev FetchEvent) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordFetch(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiSink) RecordFeedEvent(ev FeedEvent) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordFeedEvent(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiSink) RecordJobCount(count int) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordJobCount(count); err != nil && first == nil {
			first = err
		}
	}
	return first
}
