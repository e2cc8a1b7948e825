package timerange

import "time"

// Range is a closed time window [Start, End].
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the two ranges share any instant.
func Overlaps(a, b Range) bool {
	return !a.Start.After(b.End) && !a.End.Before(b.Start)
}

// Contains reports whether outer fully contains inner.
func Contains(outer, inner Range) bool {
	return !outer.Start.After(inner.Start) && !outer.End.Before(inner.End)
}
