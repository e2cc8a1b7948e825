package timerange

import (
	"testing"
	"time"
)

func r(startDay, endDay int) Range {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Range{Start: base.AddDate(0, 0, startDay-1), End: base.AddDate(0, 0, endDay-1)}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Range
		want bool
	}{
		{"disjoint", r(1, 5), r(10, 20), false},
		{"partial", r(1, 12), r(10, 20), true},
		{"contained", r(12, 15), r(10, 20), true},
		{"touching edge", r(1, 10), r(10, 20), true},
		{"identical", r(10, 20), r(10, 20), true},
	}
	for _, c := range cases {
		if got := Overlaps(c.a, c.b); got != c.want {
			t.Errorf("%s: Overlaps = %v, want %v", c.name, got, c.want)
		}
		if got := Overlaps(c.b, c.a); got != c.want {
			t.Errorf("%s: Overlaps not symmetric", c.name)
		}
	}
}

func TestContains(t *testing.T) {
	if !Contains(r(1, 31), r(10, 20)) {
		t.Fatal("inner window should be contained")
	}
	if Contains(r(10, 20), r(1, 31)) {
		t.Fatal("outer window must not be contained by inner")
	}
	if Contains(r(1, 15), r(10, 20)) {
		t.Fatal("partial overlap is not containment")
	}
	if !Contains(r(10, 20), r(10, 20)) {
		t.Fatal("equal windows contain each other")
	}
}
