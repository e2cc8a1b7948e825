package timerange

// HasCoverage decides whether a previously fetched window makes a new fetch
// unnecessary for the requested window. Coverage is deliberately conservative:
// the tracker holds a single contiguous window and only full containment
// counts. A nil last range or an empty store always misses, so the first load
// and the post-clear case both trigger a fetch even when the window matches.
func HasCoverage(last *Range, requested Range, jobCount int) bool {
	if last == nil || jobCount == 0 {
		return false
	}
	return Contains(*last, requested)
}
