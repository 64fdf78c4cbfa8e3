// Package minutes provides minute-index primitives for interval arithmetic
// against a fixed local anchor.
//
// A minute index k counts whole minutes backwards from the anchor: k=1 is the
// minute ending at the anchor, larger k is further in the past. Intervals are
// half-open [Lo, Hi) in index space, so an interval covering the last hour is
// [1, 61).
package minutes

import "time"

// Canonical report bands in index space
var (
	BandHour = Interval{Lo: 1, Hi: 61}
	BandDay  = Interval{Lo: 1, Hi: 1441}
	BandWeek = Interval{Lo: 1, Hi: 10081}
)

// Interval is a half-open [Lo, Hi) range of minute indices
type Interval struct {
	Lo int
	Hi int
}

// Empty reports whether the interval covers no minutes
func (iv Interval) Empty() bool { return iv.Lo >= iv.Hi }

// Width returns the number of minutes covered
func (iv Interval) Width() int {
	if iv.Empty() {
		return 0
	}
	return iv.Hi - iv.Lo
}

// Overlap returns the number of minutes shared by a and b
func Overlap(a, b Interval) int {
	lo := a.Lo
	if b.Lo > lo {
		lo = b.Lo
	}
	hi := a.Hi
	if b.Hi < hi {
		hi = b.Hi
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// Merge collapses sorted-or-not intervals into a minimal sorted set.
// Touching intervals (end == next start) are joined
func Merge(ivals []Interval) []Interval {
	if len(ivals) == 0 {
		return nil
	}
	sorted := make([]Interval, len(ivals))
	copy(sorted, ivals)
	// insertion sort; BH interval lists are tiny
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && less(sorted[j], sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if iv.Lo <= last.Hi {
			if iv.Hi > last.Hi {
				last.Hi = iv.Hi
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

func less(a, b Interval) bool {
	if a.Lo != b.Lo {
		return a.Lo < b.Lo
	}
	return a.Hi < b.Hi
}

// FloorMinute zeroes seconds and smaller units
func FloorMinute(t time.Time) time.Time {
	return t.Add(-time.Duration(t.Second())*time.Second - time.Duration(t.Nanosecond()))
}

// CeilMinute rounds up to the next whole minute unless already aligned
func CeilMinute(t time.Time) time.Time {
	f := FloorMinute(t)
	if f.Equal(t) {
		return t
	}
	return f.Add(time.Minute)
}

// Index maps a local instant to its minute index relative to the anchor.
// Instants at or after the anchor collapse to index 1
func Index(tLocal, nowLocal time.Time) int {
	d := nowLocal.Sub(tLocal).Minutes()
	k := int(d) + 1
	if k < 1 {
		return 1
	}
	return k
}

// Localize builds a local wall-clock instant in loc.
// Ambiguous fall-back wall times resolve to the later instant; during a
// spring-forward gap the skipped hour is pushed forward (02:30 becomes
// 03:30). time.Date leaves the ambiguous choice unspecified, so the other
// instance one hour ahead is probed and preferred when it reads the same
func Localize(loc *time.Location, year int, month time.Month, day, hour, min, sec int) time.Time {
	t := time.Date(year, month, day, hour, min, sec, 0, loc)
	if later := t.Add(time.Hour); matchesWall(later, year, month, day, hour, min, sec) {
		return later
	}
	return t
}

func matchesWall(t time.Time, year int, month time.Month, day, hour, min, sec int) bool {
	y, mo, d := t.Date()
	h, m, s := t.Clock()
	return y == year && mo == month && d == day && h == hour && m == min && s == sec
}

// Clamp bounds v to [lo, hi]
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
