// Package uptime reconstructs per-store uptime and downtime over business
// hours using a carry-forward (seed-before) interval sweep in minute-index
// space. All interval math is integral, so coverage identities hold exactly
package uptime

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"storewatch/internal/core/minutes"
	perr "storewatch/internal/platform/errors"
)

// LookbackMinutes bounds the poll fetch window: one week of report range
// plus one day of slack so the week band can be seeded from older polls
const LookbackMinutes = 10080 + 1440

// Status is an observed store state
type Status uint8

// Observed states. Anything else in the feed is dropped at normalization
const (
	StatusInactive Status = iota
	StatusActive
)

func (s Status) String() string {
	if s == StatusActive {
		return "active"
	}
	return "inactive"
}

// ParseStatus folds case and whitespace; ok=false means the sample is unusable
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active":
		return StatusActive, true
	case "inactive":
		return StatusInactive, true
	default:
		return StatusInactive, false
	}
}

// Sample is one raw poll: a UTC observation instant and its reported status
type Sample struct {
	TS     time.Time
	Status string
}

// Poll is a normalized sample: one status per minute index
type Poll struct {
	K      int
	Status Status
}

// Schedule is one business-hours rule. Day uses 0=Monday .. 6=Sunday,
// matching the ingested menu-hours data. Start and End are local
// times of day as "HH:MM" or "HH:MM:SS"; End <= Start means the window
// wraps past midnight into the next day
type Schedule struct {
	Day   int
	Start string
	End   string
}

// Row is one computed report line. Values are whole minutes; unit
// conversion for presentation happens at artifact-write time
type Row struct {
	StoreID         string
	UptimeHourMin   int
	UptimeDayMin    int
	UptimeWeekMin   int
	DowntimeHourMin int
	DowntimeDayMin  int
	DowntimeWeekMin int
}

// Span is a contiguous run of one status in index space, half-open [Lo, Hi)
type Span struct {
	Lo     int
	Hi     int
	Status Status
}

// NormalizePolls floors each sample to its local minute, maps it to an index
// against nowLocal, and keeps only the newest-by-UTC sample per index.
// Unparseable statuses are dropped. The result is sorted by descending index
func NormalizePolls(samples []Sample, loc *time.Location, nowLocal time.Time) []Poll {
	type winner struct {
		ts     time.Time
		status Status
	}
	perMin := make(map[int]winner, len(samples))
	for _, smp := range samples {
		st, ok := ParseStatus(smp.Status)
		if !ok {
			continue
		}
		lt := minutes.FloorMinute(smp.TS.In(loc))
		k := minutes.Index(lt, nowLocal)
		if w, seen := perMin[k]; !seen || smp.TS.After(w.ts) {
			perMin[k] = winner{ts: smp.TS, status: st}
		}
	}

	out := make([]Poll, 0, len(perMin))
	for k, w := range perMin {
		out = append(out, Poll{K: k, Status: w.status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].K > out[j].K })
	return out
}

// BuildBH materializes business-hours rules into merged index intervals.
// No rules means the store is always open: the whole week band.
//
// Local dates from eight days back through one day ahead are walked so every
// window that can touch the week band is considered. Overnight windows are
// split at midnight: the first part runs to end-of-day (23:59:59, ceiled to
// the next midnight), the second from the next day's midnight to the end time
func BuildBH(rules []Schedule, loc *time.Location, nowLocal time.Time) []minutes.Interval {
	if len(rules) == 0 {
		return []minutes.Interval{minutes.BandWeek}
	}

	byDay := make(map[int][]Schedule, 7)
	for _, r := range rules {
		byDay[r.Day] = append(byDay[r.Day], r)
	}

	var ivals []minutes.Interval

	startY, startM, startD := nowLocal.AddDate(0, 0, -8).Date()
	endY, endM, endD := nowLocal.AddDate(0, 0, 1).Date()
	cur := time.Date(startY, startM, startD, 0, 0, 0, 0, time.UTC)
	end := time.Date(endY, endM, endD, 0, 0, 0, 0, time.UTC)

	for !cur.After(end) {
		y, mo, d := cur.Date()
		day := mondayWeekday(cur.Weekday())
		for _, r := range byDay[day] {
			sh, sm, ss, okS := parseTimeOfDay(r.Start)
			eh, em, es, okE := parseTimeOfDay(r.End)
			if !okS || !okE {
				// a corrupt rule must not widen coverage; drop it
				continue
			}
			sDt := minutes.Localize(loc, y, mo, d, sh, sm, ss)

			if secondsOfDay(eh, em, es) <= secondsOfDay(sh, sm, ss) {
				// wraps past midnight: split at end-of-day
				eod := minutes.Localize(loc, y, mo, d, 23, 59, 59)
				appendIval(&ivals, sDt, eod, nowLocal)

				ny, nmo, nd := cur.AddDate(0, 0, 1).Date()
				sod := minutes.Localize(loc, ny, nmo, nd, 0, 0, 0)
				eDt := minutes.Localize(loc, ny, nmo, nd, eh, em, es)
				appendIval(&ivals, sod, eDt, nowLocal)
			} else {
				eDt := minutes.Localize(loc, y, mo, d, eh, em, es)
				appendIval(&ivals, sDt, eDt, nowLocal)
			}
		}
		cur = cur.AddDate(0, 0, 1)
	}

	return minutes.Merge(ivals)
}

// appendIval converts a local [start, end] wall window into an index interval.
// Indexes run backwards, so the end instant yields the lower bound
func appendIval(ivals *[]minutes.Interval, start, end, nowLocal time.Time) {
	a := minutes.Index(minutes.FloorMinute(start), nowLocal)
	b := minutes.Index(minutes.CeilMinute(end), nowLocal)
	if a > b {
		*ivals = append(*ivals, minutes.Interval{Lo: b, Hi: a})
	}
}

// mondayWeekday converts Go's Sunday=0 convention to Monday=0
func mondayWeekday(wd time.Weekday) int { return (int(wd) + 6) % 7 }

func secondsOfDay(h, m, s int) int { return h*3600 + m*60 + s }

// parseTimeOfDay accepts "HH:MM" or "HH:MM:SS". ok=false marks an
// unusable rule; an unparseable seconds field degrades to :00
func parseTimeOfDay(s string) (h, m, sec int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return 0, 0, 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, 0, false
	}
	if len(parts) > 2 {
		if v, err := strconv.Atoi(parts[2]); err == nil && v >= 0 && v <= 59 {
			sec = v
		}
	}
	return h, m, sec, true
}

// BuildSpans tiles the whole week band with status spans via carry-forward.
//
// The seed is the status in effect at the far edge of the band: the nearest
// poll at or beyond index 10080 wins; failing that, the newest in-window poll;
// failing that, inactive. The walk then moves from the far edge toward the
// anchor, each poll's status carrying forward until the next poll. Adjacent
// spans with equal status are merged
func BuildSpans(polls []Poll) []Span {
	w := minutes.BandWeek
	if len(polls) == 0 {
		return []Span{{Lo: w.Lo, Hi: w.Hi, Status: StatusInactive}}
	}

	startK := w.Hi - 1
	seed := StatusInactive

	if p, ok := nearestBeyond(polls, startK); ok {
		seed = p.Status
	} else if p, ok := newestInWindow(polls, w); ok {
		seed = p.Status
	}

	win := make([]Poll, 0, len(polls))
	for _, p := range polls {
		if p.K >= w.Lo && p.K < w.Hi {
			win = append(win, p)
		}
	}
	if len(win) == 0 {
		return []Span{{Lo: w.Lo, Hi: w.Hi, Status: seed}}
	}
	sort.Slice(win, func(i, j int) bool { return win[i].K > win[j].K })

	// the walk starts at the band's upper edge so the spans tile the whole
	// window; startK only governs seed selection
	var segs []Span
	prevK, prevS := w.Hi, seed
	for _, p := range win {
		lo, hi := ordered(p.K, prevK)
		if lo < hi {
			segs = append(segs, Span{Lo: lo, Hi: hi, Status: prevS})
		}
		prevK, prevS = p.K, p.Status
	}
	if lo, hi := ordered(w.Lo, prevK); lo < hi {
		segs = append(segs, Span{Lo: lo, Hi: hi, Status: prevS})
	}

	sort.Slice(segs, func(i, j int) bool {
		if segs[i].Lo != segs[j].Lo {
			return segs[i].Lo < segs[j].Lo
		}
		return segs[i].Hi < segs[j].Hi
	})

	var out []Span
	for _, sg := range segs {
		if n := len(out); n > 0 && out[n-1].Status == sg.Status && out[n-1].Hi == sg.Lo {
			out[n-1].Hi = sg.Hi
			continue
		}
		out = append(out, sg)
	}
	return out
}

// nearestBeyond returns the poll with the smallest index at or beyond k
func nearestBeyond(polls []Poll, k int) (Poll, bool) {
	var best Poll
	found := false
	for _, p := range polls {
		if p.K >= k && (!found || p.K < best.K) {
			best, found = p, true
		}
	}
	return best, found
}

// newestInWindow returns the in-window poll with the smallest index
func newestInWindow(polls []Poll, w minutes.Interval) (Poll, bool) {
	var best Poll
	found := false
	for _, p := range polls {
		if p.K >= w.Lo && p.K < w.Hi && (!found || p.K < best.K) {
			best, found = p, true
		}
	}
	return best, found
}

func ordered(a, b int) (int, int) {
	if a <= b {
		return a, b
	}
	return b, a
}

// Sweep intersects business-hours intervals with status spans using two
// pointers over the sorted inputs and accumulates active minutes per band
func Sweep(bh []minutes.Interval, spans []Span) (uHour, uDay, uWeek int) {
	i, j := 0, 0
	for i < len(bh) && j < len(spans) {
		b, sp := bh[i], spans[j]
		lo := b.Lo
		if sp.Lo > lo {
			lo = sp.Lo
		}
		hi := b.Hi
		if sp.Hi < hi {
			hi = sp.Hi
		}
		if lo < hi && sp.Status == StatusActive {
			iv := minutes.Interval{Lo: lo, Hi: hi}
			uHour += minutes.Overlap(iv, minutes.BandHour)
			uDay += minutes.Overlap(iv, minutes.BandDay)
			uWeek += minutes.Overlap(iv, minutes.BandWeek)
		}
		if b.Hi <= sp.Hi {
			i++
		}
		if sp.Hi <= b.Hi {
			j++
		}
	}
	return uHour, uDay, uWeek
}

// ComputeRow runs the full per-store pipeline against the report anchor.
// ok=false means the store had no usable polls in the window and is excluded
// from the report. The returned error only fires on a broken coverage
// identity, which would indicate a bug rather than bad data
func ComputeRow(
	storeID string,
	samples []Sample,
	rules []Schedule,
	loc *time.Location,
	anchorUTC time.Time,
) (Row, bool, error) {
	nowLocal := minutes.FloorMinute(anchorUTC.In(loc))

	polls := NormalizePolls(samples, loc, nowLocal)
	if len(polls) == 0 {
		return Row{}, false, nil
	}

	bh := BuildBH(rules, loc, nowLocal)

	bHour, bDay, bWeek := 0, 0, 0
	for _, iv := range bh {
		bHour += minutes.Overlap(iv, minutes.BandHour)
		bDay += minutes.Overlap(iv, minutes.BandDay)
		bWeek += minutes.Overlap(iv, minutes.BandWeek)
	}

	spans := BuildSpans(polls)
	uHour, uDay, uWeek := Sweep(bh, spans)

	uHour = minutes.Clamp(uHour, 0, bHour)
	uDay = minutes.Clamp(uDay, 0, bDay)
	uWeek = minutes.Clamp(uWeek, 0, bWeek)

	row := Row{
		StoreID:         storeID,
		UptimeHourMin:   uHour,
		UptimeDayMin:    uDay,
		UptimeWeekMin:   uWeek,
		DowntimeHourMin: bHour - uHour,
		DowntimeDayMin:  bDay - uDay,
		DowntimeWeekMin: bWeek - uWeek,
	}

	if row.UptimeHourMin+row.DowntimeHourMin != bHour ||
		row.UptimeDayMin+row.DowntimeDayMin != bDay ||
		row.UptimeWeekMin+row.DowntimeWeekMin != bWeek {
		return Row{}, false, perr.Invariantf("uptime+downtime != coverage for store %s", storeID)
	}

	return row, true, nil
}
